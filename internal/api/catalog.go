package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/auth"
	"github.com/dharsanguruparan/DocDesk/internal/model"
	"github.com/dharsanguruparan/DocDesk/internal/storage"
)

const maxPageSize = 500

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid login body")
		return
	}
	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "login and password are required")
		return
	}
	user, err := s.catalog.FindUser(r.Context(), req.Login)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Error("find user", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "login unavailable")
		return
	}
	if err != nil || auth.CheckPassword(user.PasswordHash, req.Password) != nil {
		respondError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}
	token, expires, err := s.issuer.Issue(user.Login, user.Permissions)
	if err != nil {
		s.log.Error("issue token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "login unavailable")
		return
	}
	respondJSON(w, http.StatusOK, model.LoginResponse{Token: token, ExpiresAt: expires, Permissions: user.Permissions})
}

func (s *Server) handleDocumentTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.catalog.ActiveDocumentTypes(r.Context())
	if err != nil {
		s.internalError(w, "list document types", err)
		return
	}
	respondJSON(w, http.StatusOK, types)
}

func (s *Server) handleSearchStudents(w http.ResponseWriter, r *http.Request) {
	page, size, ok := paging(w, r)
	if !ok {
		return
	}
	out, err := s.catalog.SearchStudents(r.Context(), strings.TrimSpace(r.URL.Query().Get("termoBusca")), page, size)
	if err != nil {
		s.internalError(w, "search students", err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	student, err := s.catalog.GetStudent(r.Context(), id)
	if err != nil {
		s.lookupError(w, "student", err)
		return
	}
	respondJSON(w, http.StatusOK, student)
}

func (s *Server) handleListStaff(w http.ResponseWriter, r *http.Request) {
	page, size, ok := paging(w, r)
	if !ok {
		return
	}
	out, err := s.catalog.ListStaff(r.Context(), page, size)
	if err != nil {
		s.internalError(w, "list staff", err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	staff, err := s.catalog.GetStaff(r.Context(), id)
	if err != nil {
		s.lookupError(w, "staff", err)
		return
	}
	respondJSON(w, http.StatusOK, staff)
}

func (s *Server) lookupError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, what+" not found")
		return
	}
	s.internalError(w, "get "+what, err)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error(op, zap.Error(err))
	respondError(w, http.StatusInternalServerError, op+" failed")
}

func paging(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	page, size := 0, 10
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid page")
			return 0, 0, false
		}
		page = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid size")
			return 0, 0, false
		}
		size = min(n, maxPageSize)
	}
	return page, size, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
