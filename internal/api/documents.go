package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/model"
	pdfutil "github.com/dharsanguruparan/DocDesk/internal/pdf"
	"github.com/dharsanguruparan/DocDesk/internal/queue"
	"github.com/dharsanguruparan/DocDesk/internal/storage"
)

const maxFieldSize = 8 << 10

type uploadError struct {
	status int
	msg    string
}

func (e *uploadError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &uploadError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func (s *Server) handleOwnerUpload(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "pessoaId")
	if !ok {
		return
	}
	entity, err := s.ownerEntity(r.Context(), ownerID)
	if err != nil {
		s.uploadFailed(w, err)
		return
	}
	s.receive(w, r, func(doc *model.Document, _ map[string]string) error {
		doc.Entity = entity
		doc.OwnerID = &ownerID
		return nil
	})
}

func (s *Server) handleInstitutionUpload(w http.ResponseWriter, r *http.Request) {
	s.receive(w, r, func(doc *model.Document, fields map[string]string) error {
		title := strings.TrimSpace(fields["titulo"])
		if title == "" {
			return badRequest("titulo is required")
		}
		doc.Entity = model.EntityInstitution
		doc.Title = title
		return nil
	})
}

// ownerEntity resolves pessoaId against students first, then staff.
func (s *Server) ownerEntity(ctx context.Context, id int64) (model.EntityType, error) {
	if _, err := s.catalog.GetStudent(ctx, id); err == nil {
		return model.EntityStudent, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	if _, err := s.catalog.GetStaff(ctx, id); err == nil {
		return model.EntityStaff, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	return "", &uploadError{status: http.StatusNotFound, msg: fmt.Sprintf("person %d not found", id)}
}

// receive streams the multipart body, validates it, stores the PDF, records
// the document and schedules processing. describe fills the category
// specific fields.
func (s *Server) receive(w http.ResponseWriter, r *http.Request, describe func(*model.Document, map[string]string) error) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxFileSize+64<<10)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	fields, tmp, err := s.readParts(mr)
	if tmp != nil {
		defer os.Remove(tmp.path)
		defer tmp.f.Close()
	}
	if err != nil {
		s.uploadFailed(w, err)
		return
	}

	doc, err := s.validateShared(fields, tmp)
	if err == nil {
		err = describe(doc, fields)
	}
	if err != nil {
		s.uploadFailed(w, err)
		return
	}
	if claims, ok := ClaimsFrom(ctx); ok {
		doc.UploadedBy = claims.Subject
	}

	doc.ObjectKey = fmt.Sprintf("documentos/%s/%s/%s", doc.Entity, doc.ID, doc.FileName)
	if _, err := tmp.f.Seek(0, io.SeekStart); err != nil {
		s.internalError(w, "rewind upload", err)
		return
	}
	if err := s.objects.Put(ctx, doc.ObjectKey, tmp.f, tmp.size, "application/pdf"); err != nil {
		s.internalError(w, "store file", err)
		return
	}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		s.internalError(w, "store metadata", err)
		return
	}
	payload := queue.ProcessPayload{DocumentID: doc.ID, ObjectKey: doc.ObjectKey, FileName: doc.FileName}
	if err := s.dispatcher.Dispatch(ctx, payload); err != nil {
		// The document is stored; it stays queued until reprocessed.
		s.log.Warn("dispatch processing", zap.String("documentId", doc.ID), zap.Error(err))
	}
	s.log.Info("document received",
		zap.String("documentId", doc.ID),
		zap.String("entity", string(doc.Entity)),
		zap.Int("pages", doc.PageCount),
		zap.Int64("size", doc.Size))
	respondJSON(w, http.StatusCreated, model.UploadResponse{ID: doc.ID, Message: "Documento enviado com sucesso"})
}

// validateShared checks the fields every category sends, and the file.
func (s *Server) validateShared(fields map[string]string, tmp *tempUpload) (*model.Document, error) {
	docType := strings.TrimSpace(fields["tipoDocumento"])
	if docType == "" {
		return nil, badRequest("tipoDocumento is required")
	}
	rawDate := strings.TrimSpace(fields["dataDocumento"])
	date, err := time.ParseInLocation(model.DateLayout, rawDate, time.Local)
	if err != nil {
		return nil, badRequest("dataDocumento must be YYYY-MM-DD")
	}
	if date.After(s.now()) {
		return nil, badRequest("dataDocumento is in the future")
	}
	if tmp.contentType != "application/pdf" {
		return nil, badRequest("only PDF files supported")
	}
	pages, err := pdfutil.PageCount(tmp.path)
	if err != nil || pages == 0 {
		return nil, badRequest("file is not a readable PDF")
	}
	return &model.Document{
		ID:           uuid.NewString(),
		DocumentType: docType,
		DocumentDate: date.Format(model.DateLayout),
		Location:     strings.TrimSpace(fields["localizacao"]),
		FileName:     tmp.filename,
		Size:         tmp.size,
		PageCount:    pages,
	}, nil
}

func (s *Server) uploadFailed(w http.ResponseWriter, err error) {
	var ue *uploadError
	if errors.As(err, &ue) {
		respondError(w, ue.status, ue.msg)
		return
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "request too large")
		return
	}
	s.internalError(w, "upload", err)
}

// readParts collects the text fields and persists the first file part.
func (s *Server) readParts(mr *multipart.Reader) (map[string]string, *tempUpload, error) {
	fields := make(map[string]string)
	var tmp *tempUpload
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, tmp, badRequest("failed to read upload")
		}
		name := part.FormName()
		switch {
		case name == "file" && tmp == nil:
			tmp, err = s.persistTemp(part)
			part.Close()
			if err != nil {
				return nil, nil, err
			}
		case part.FileName() == "":
			value, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
			part.Close()
			if err != nil {
				return nil, tmp, badRequest("failed to read field %s", name)
			}
			if len(value) > maxFieldSize {
				return nil, tmp, badRequest("field %s too long", name)
			}
			fields[name] = string(value)
		default:
			part.Close()
		}
	}
	if tmp == nil {
		return nil, nil, badRequest("missing file part")
	}
	return fields, tmp, nil
}

type tempUpload struct {
	f           *os.File
	path        string
	size        int64
	contentType string
	filename    string
}

func (s *Server) persistTemp(part *multipart.Part) (*tempUpload, error) {
	tmpFile, err := os.CreateTemp(s.opts.TempDir, "docdesk-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	discard := func(err error) (*tempUpload, error) {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return nil, err
	}
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > s.opts.MaxFileSize {
				return discard(&uploadError{
					status: http.StatusRequestEntityTooLarge,
					msg:    fmt.Sprintf("file exceeds limit (%d bytes)", s.opts.MaxFileSize),
				})
			}
			if len(sniff) < 512 {
				chunk := min(n, 512-len(sniff))
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				return discard(fmt.Errorf("write temp file: %w", err))
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			var tooLarge *http.MaxBytesError
			if errors.As(readErr, &tooLarge) {
				return discard(readErr)
			}
			return discard(badRequest("read file: %v", readErr))
		}
	}
	if written == 0 {
		return discard(badRequest("empty file"))
	}
	filename := filepath.Base(part.FileName())
	if filename == "." || filename == string(filepath.Separator) || filename == "" {
		filename = "document.pdf"
	}
	return &tempUpload{
		f:           tmpFile,
		path:        tmpFile.Name(),
		size:        written,
		contentType: http.DetectContentType(sniff),
		filename:    filename,
	}, nil
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.lookupError(w, "document", err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.lookupError(w, "document", err)
		return
	}
	expires := s.now().Add(s.opts.SignedURLTTL)
	var link string
	if p, ok := s.objects.(Presigner); ok {
		link, err = p.PresignGet(r.Context(), doc.ObjectKey, doc.FileName, s.opts.SignedURLTTL)
		if err != nil {
			s.internalError(w, "presign download", err)
			return
		}
	} else {
		link = s.signer.URL("/download", doc.ID, expires)
	}
	respondJSON(w, http.StatusOK, map[string]any{"url": link, "expiresAt": expires.UTC()})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := s.signer.Verify(r.URL.Query(), s.now())
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	doc, err := s.docs.GetDocument(r.Context(), id)
	if err != nil {
		s.lookupError(w, "document", err)
		return
	}
	data, err := s.objects.Get(r.Context(), doc.ObjectKey)
	if err != nil {
		s.lookupError(w, "file", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.FileName))
	http.ServeContent(w, r, doc.FileName, doc.UpdatedAt, bytes.NewReader(data))
}
