package model

import "time"

// DocumentStatus describes the backend processing lifecycle of an uploaded
// PDF. "type X string" gives the status its own named type, so a plain string
// cannot be passed where a status is expected by accident.
type DocumentStatus string

const (
	StatusQueued     DocumentStatus = "queued"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Document is the backend record of an uploaded document.
type Document struct {
	ID           string         `json:"id"`
	Entity       EntityType     `json:"entity"`
	OwnerID      *int64         `json:"pessoaId,omitempty"`
	Title        string         `json:"titulo,omitempty"`
	DocumentType string         `json:"tipoDocumento"`
	DocumentDate string         `json:"dataDocumento"`
	Location     string         `json:"localizacao"`
	FileName     string         `json:"fileName"`
	ObjectKey    string         `json:"-"`
	Size         int64          `json:"size"`
	PageCount    int            `json:"pageCount,omitempty"`
	Status       DocumentStatus `json:"status"`
	Content      string         `json:"-"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	UploadedBy   string         `json:"uploadedBy,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// User is a backend account allowed to log in.
type User struct {
	Login        string   `json:"login"`
	PasswordHash string   `json:"-"`
	Permissions  []string `json:"permissions"`
}
