// Package api is the reference REST backend: login, catalog lookups and the
// two multipart upload endpoints of the digitalization client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/auth"
	"github.com/dharsanguruparan/DocDesk/internal/model"
	"github.com/dharsanguruparan/DocDesk/internal/queue"
	"github.com/dharsanguruparan/DocDesk/internal/signing"
)

// UploadPermission is required by both upload endpoints.
const UploadPermission = "documento:digitalizar"

// Catalog serves the lookup endpoints and accounts.
type Catalog interface {
	ActiveDocumentTypes(ctx context.Context) ([]model.DocumentType, error)
	SearchStudents(ctx context.Context, term string, page, size int) (model.Page[model.Student], error)
	GetStudent(ctx context.Context, id int64) (model.Student, error)
	ListStaff(ctx context.Context, page, size int) (model.Page[model.Staff], error)
	GetStaff(ctx context.Context, id int64) (model.Staff, error)
	FindUser(ctx context.Context, login string) (model.User, error)
}

// Documents stores uploaded document records.
type Documents interface {
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
}

// ObjectStore keeps PDF bytes.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Presigner is implemented by object stores that can hand out their own
// download URLs. Other stores are served through /download.
type Presigner interface {
	PresignGet(ctx context.Context, key, fileName string, ttl time.Duration) (string, error)
}

// Dispatcher schedules post-processing of a stored document.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload queue.ProcessPayload) error
}

// Options carries the tunables of the server.
type Options struct {
	Address      string
	MaxFileSize  int64
	SignedURLTTL time.Duration
	TempDir      string
}

// Server exposes the HTTP endpoints.
type Server struct {
	opts       Options
	catalog    Catalog
	docs       Documents
	objects    ObjectStore
	dispatcher Dispatcher
	issuer     *auth.Issuer
	signer     *signing.Signer
	log        *zap.Logger
	now        func() time.Time

	handler http.Handler
	once    sync.Once
}

// New constructs a Server.
func New(opts Options, catalog Catalog, docs Documents, objects ObjectStore, dispatcher Dispatcher, issuer *auth.Issuer, signer *signing.Signer, log *zap.Logger) *Server {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 50 << 20
	}
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = 5 * time.Minute
	}
	return &Server{
		opts:       opts,
		catalog:    catalog,
		docs:       docs,
		objects:    objects,
		dispatcher: dispatcher,
		issuer:     issuer,
		signer:     signer,
		log:        log.With(zap.String("component", "api")),
		now:        time.Now,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	s.once.Do(func() {
		s.handler = s.routes()
	})
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /user/login", s.handleLogin)
	mux.HandleFunc("GET /download", s.handleDownload)

	mux.Handle("GET /tipo-documento/ativos", s.authenticated(s.handleDocumentTypes))
	mux.Handle("GET /alunos/all", s.authenticated(s.handleSearchStudents))
	mux.Handle("GET /alunos/{id}", s.authenticated(s.handleGetStudent))
	mux.Handle("GET /colaboradores", s.authenticated(s.handleListStaff))
	mux.Handle("GET /colaboradores/{id}", s.authenticated(s.handleGetStaff))
	mux.Handle("POST /documentos/create/{pessoaId}", s.authorized(UploadPermission, s.handleOwnerUpload))
	mux.Handle("POST /institucional/upload", s.authorized(UploadPermission, s.handleInstitutionUpload))
	mux.Handle("GET /documentos/{id}", s.authenticated(s.handleGetDocument))
	mux.Handle("GET /documentos/{id}/download-url", s.authenticated(s.handleDownloadURL))
	return corsMiddleware(s.loggingMiddleware(mux))
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("api listening", zap.String("address", s.opts.Address))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, model.ErrorResponse{Error: msg})
}
