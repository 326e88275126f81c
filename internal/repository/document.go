package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/DocDesk/internal/model"
	"github.com/dharsanguruparan/DocDesk/internal/storage"
)

// DocumentRepository stores uploaded document records. The API creates
// rows, the worker moves them through processing.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// CreateDocument inserts a queued document.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *model.Document) error {
	now := time.Now().UTC()
	doc.Status = model.StatusQueued
	doc.CreatedAt = now
	doc.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (id, entity, owner_id, title, document_type, document_date, location,
			file_name, object_key, size, page_count, status, content, error_message, uploaded_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,'',NULL,$13,$14,$15)
	`, doc.ID, doc.Entity, doc.OwnerID, doc.Title, doc.DocumentType, doc.DocumentDate, doc.Location,
		doc.FileName, doc.ObjectKey, doc.Size, doc.PageCount, doc.Status, doc.UploadedBy, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument returns a document by id.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var (
		doc      model.Document
		ownerID  sql.NullInt64
		date     time.Time
		errorMsg sql.NullString
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, entity, owner_id, title, document_type, document_date, location, file_name, object_key,
			size, page_count, status, COALESCE(content,''), error_message, uploaded_by, created_at, updated_at
		FROM documents WHERE id=$1
	`, id)
	err := row.Scan(&doc.ID, &doc.Entity, &ownerID, &doc.Title, &doc.DocumentType, &date, &doc.Location,
		&doc.FileName, &doc.ObjectKey, &doc.Size, &doc.PageCount, &doc.Status, &doc.Content, &errorMsg,
		&doc.UploadedBy, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("select document: %w", err)
	}
	if ownerID.Valid {
		v := ownerID.Int64
		doc.OwnerID = &v
	}
	doc.DocumentDate = date.Format(model.DateLayout)
	doc.ErrorMessage = errorMsg.String
	return &doc, nil
}

// MarkProcessing sets the status to processing.
func (r *DocumentRepository) MarkProcessing(ctx context.Context, id string) error {
	return r.updateStatus(ctx, id, model.StatusProcessing, nil, nil, nil)
}

// MarkFailed marks the processing attempt as failed and stores the message.
func (r *DocumentRepository) MarkFailed(ctx context.Context, id string, msg string) error {
	return r.updateStatus(ctx, id, model.StatusFailed, nil, nil, &msg)
}

// MarkCompleted stores the page count and extracted text.
func (r *DocumentRepository) MarkCompleted(ctx context.Context, id string, pageCount int, content string) error {
	return r.updateStatus(ctx, id, model.StatusCompleted, &pageCount, &content, nil)
}

func (r *DocumentRepository) updateStatus(ctx context.Context, id string, status model.DocumentStatus, pageCount *int, content *string, errorMsg *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET status=$1,
			page_count = COALESCE($2, page_count),
			content = COALESCE($3, content),
			error_message = $4,
			updated_at=$5
		WHERE id=$6
	`, status, pageCount, content, errorMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update document %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
