// Package worker post-processes uploaded PDFs: it counts pages, extracts the
// text layer and records the outcome on the document.
package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	pdfutil "github.com/dharsanguruparan/DocDesk/internal/pdf"
	"github.com/dharsanguruparan/DocDesk/internal/queue"
)

// Documents records processing progress.
type Documents interface {
	MarkProcessing(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, msg string) error
	MarkCompleted(ctx context.Context, id string, pageCount int, content string) error
}

// Objects reads stored PDFs.
type Objects interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Processor is plugged into the asynq worker loop and into the in-process
// pool.
type Processor struct {
	docs    Documents
	objects Objects
	log     *zap.Logger
}

func NewProcessor(docs Documents, objects Objects, log *zap.Logger) *Processor {
	return &Processor{docs: docs, objects: objects, log: log.With(zap.String("component", "worker"))}
}

// Handler registers the process job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ProcessDocumentTask, p.handleProcess)
	return mux
}

func (p *Processor) handleProcess(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodeProcessPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return p.Process(ctx, payload)
}

// Process runs the job. Failures are recorded on the document and returned so
// the queue can retry.
func (p *Processor) Process(ctx context.Context, payload queue.ProcessPayload) error {
	log := p.log.With(zap.String("documentId", payload.DocumentID))
	failure := func(err error) error {
		log.Warn("processing failed", zap.Error(err))
		if markErr := p.docs.MarkFailed(ctx, payload.DocumentID, err.Error()); markErr != nil {
			log.Error("mark failed", zap.Error(markErr))
		}
		return err
	}
	if err := p.docs.MarkProcessing(ctx, payload.DocumentID); err != nil {
		return failure(err)
	}
	data, err := p.objects.Get(ctx, payload.ObjectKey)
	if err != nil {
		return failure(err)
	}
	pages, err := pdfutil.PageCountBytes(data)
	if err != nil {
		return failure(fmt.Errorf("count pages: %w", err))
	}
	// Scanned pages usually carry no text layer; an empty result is fine.
	text, err := pdfutil.ExtractText(data)
	if err != nil {
		log.Debug("text extraction failed", zap.Error(err))
		text = ""
	}
	if err := p.docs.MarkCompleted(ctx, payload.DocumentID, pages, text); err != nil {
		return failure(err)
	}
	log.Info("document processed", zap.Int("pages", pages), zap.Int("textBytes", len(text)))
	return nil
}
