// Package upload turns the captured pages and metadata into a single PDF and
// submits it to the endpoint of the document's category.
package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/apiclient"
	"github.com/dharsanguruparan/DocDesk/internal/model"
	pdfutil "github.com/dharsanguruparan/DocDesk/internal/pdf"
)

// FailureProcessing marks a result that failed before anything was sent.
const FailureProcessing = "processing"

// ErrMissingOutput is returned when the PDF was not written.
var ErrMissingOutput = errors.New("generated PDF not found")

// Uploader posts a multipart upload.
type Uploader interface {
	Upload(ctx context.Context, req apiclient.UploadRequest) (model.UploadResponse, error)
}

// Stage runs the upload pipeline. It holds no per-document state, so one Stage
// serves every attempt.
type Stage struct {
	client  Uploader
	workDir string
	log     *zap.Logger
}

func NewStage(client Uploader, workDir string, log *zap.Logger) *Stage {
	return &Stage{client: client, workDir: workDir, log: log.With(zap.String("component", "upload"))}
}

// Run assembles, verifies, submits and cleans up. It never returns an error:
// every failure becomes an unsuccessful UploadResult with the most specific
// message available.
func (s *Stage) Run(ctx context.Context, meta model.Metadata, pages []*model.CapturedPage, progress ProgressFunc) model.UploadResult {
	r := newReporter(progress)
	r.report(0, "Preparing pages")

	if err := os.MkdirAll(s.workDir, 0o750); err != nil {
		return s.fail(r, FailureProcessing, fmt.Errorf("prepare work dir: %w", err))
	}
	pdfPath := filepath.Join(s.workDir, "document-"+uuid.NewString()+".pdf")
	defer func() {
		if err := pdfutil.Remove(pdfPath); err != nil {
			s.log.Warn("could not remove temporary PDF", zap.String("path", pdfPath), zap.Error(err))
		}
	}()

	if err := pdfutil.Assemble(ctx, pages, pdfPath); err != nil {
		return s.fail(r, FailureProcessing, fmt.Errorf("generate PDF: %w", err))
	}
	r.report(50, "PDF generated")

	if !pdfutil.Exists(pdfPath) {
		return s.fail(r, FailureProcessing, ErrMissingOutput)
	}
	count, err := pdfutil.PageCount(pdfPath)
	if err != nil {
		return s.fail(r, FailureProcessing, fmt.Errorf("verify PDF: %w", err))
	}
	if count != len(pages) {
		return s.fail(r, FailureProcessing, fmt.Errorf("verify PDF: %d pages written, %d captured", count, len(pages)))
	}
	r.report(60, "PDF verified")

	file, err := os.Open(pdfPath)
	if err != nil {
		return s.fail(r, FailureProcessing, fmt.Errorf("open PDF: %w", err))
	}
	defer file.Close()

	req, err := BuildRequest(meta, filepath.Base(pdfPath), file)
	if err != nil {
		return s.fail(r, FailureProcessing, err)
	}
	r.report(65, "Sending document")

	resp, err := s.client.Upload(ctx, req)
	if err != nil {
		return s.fail(r, string(apiclient.Classify(err)), err)
	}
	s.log.Info("document uploaded",
		zap.String("endpoint", req.Endpoint),
		zap.String("documentId", resp.ID),
		zap.Int("pages", count))
	r.report(100, "Upload complete")

	msg := resp.Message
	if msg == "" {
		msg = "Document uploaded successfully"
	}
	return model.UploadResult{Success: true, DocumentID: resp.ID, Message: msg}
}

func (s *Stage) fail(r *reporter, kind string, err error) model.UploadResult {
	s.log.Warn("upload failed", zap.String("kind", kind), zap.Error(err))
	r.report(100, "Upload failed")
	return model.UploadResult{Success: false, Message: err.Error(), Failure: kind}
}
