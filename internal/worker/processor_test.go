package worker

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/model"
	pdfutil "github.com/dharsanguruparan/DocDesk/internal/pdf"
	"github.com/dharsanguruparan/DocDesk/internal/queue"
	"github.com/dharsanguruparan/DocDesk/internal/storage"
)

func scannedPDF(t *testing.T, pages int) []byte {
	t.Helper()
	dir := t.TempDir()
	var captured []*model.CapturedPage
	for i := 0; i < pages; i++ {
		path := filepath.Join(dir, "page"+string(rune('0'+i))+".jpg")
		require.NoError(t, imaging.Save(imaging.New(120, 160, color.White), path))
		captured = append(captured, model.NewCapturedPage(path, 120, 160))
	}
	dst := filepath.Join(dir, "out.pdf")
	require.NoError(t, pdfutil.Assemble(context.Background(), captured, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	return data
}

func setup(t *testing.T, data []byte) (*Processor, *storage.MemoryStore, queue.ProcessPayload) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	blobs := storage.NewMemoryBlobs()
	doc := &model.Document{ID: "doc-1", Entity: model.EntityInstitution, FileName: "ata.pdf", ObjectKey: "documentos/institucional/doc-1/ata.pdf"}
	require.NoError(t, store.CreateDocument(ctx, doc))
	if data != nil {
		require.NoError(t, blobs.Put(ctx, doc.ObjectKey, bytes.NewReader(data), int64(len(data)), "application/pdf"))
	}
	payload := queue.ProcessPayload{DocumentID: doc.ID, ObjectKey: doc.ObjectKey, FileName: doc.FileName}
	return NewProcessor(store, blobs, zap.NewNop()), store, payload
}

func TestProcessCompletes(t *testing.T) {
	p, store, payload := setup(t, scannedPDF(t, 3))

	require.NoError(t, p.Process(context.Background(), payload))

	doc, err := store.GetDocument(context.Background(), payload.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, doc.Status)
	assert.Equal(t, 3, doc.PageCount)
	assert.Empty(t, doc.ErrorMessage)
}

func TestProcessMissingObject(t *testing.T) {
	p, store, payload := setup(t, nil)

	err := p.Process(context.Background(), payload)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	doc, err := store.GetDocument(context.Background(), payload.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, doc.Status)
	assert.NotEmpty(t, doc.ErrorMessage)
}

func TestProcessCorruptPDF(t *testing.T) {
	p, store, payload := setup(t, []byte("%PDF-1.4 garbage"))

	assert.Error(t, p.Process(context.Background(), payload))

	doc, err := store.GetDocument(context.Background(), payload.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, doc.Status)
}

func TestHandleProcessSkipsRetryOnBadPayload(t *testing.T) {
	p, _, _ := setup(t, nil)
	err := p.handleProcess(context.Background(), asynq.NewTask(queue.ProcessDocumentTask, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleProcessRunsJob(t *testing.T) {
	p, store, payload := setup(t, scannedPDF(t, 1))
	task, err := queue.NewProcessTask(payload)
	require.NoError(t, err)

	require.NoError(t, p.handleProcess(context.Background(), task))

	doc, err := store.GetDocument(context.Background(), payload.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, doc.Status)
}
