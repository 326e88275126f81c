package model

import "time"

// DocumentType is an entry of GET /tipo-documento/ativos. The category flags
// decide which owner category may use it: institucional for institution
// documents, colaborador for staff, neither for students.
type DocumentType struct {
	ID            int64  `json:"id"`
	Nome          string `json:"nome"`
	Institucional bool   `json:"institucional"`
	Colaborador   bool   `json:"colaborador"`
	Ativo         bool   `json:"ativo"`
}

// AppliesTo reports whether the document type belongs to the entity category.
func (d DocumentType) AppliesTo(entity EntityType) bool {
	switch entity {
	case EntityInstitution:
		return d.Institucional
	case EntityStaff:
		return d.Colaborador
	case EntityStudent:
		return !d.Institucional && !d.Colaborador
	}
	return false
}

// FilterDocumentTypes keeps the active types that apply to the entity, in the
// order the server returned them.
func FilterDocumentTypes(types []DocumentType, entity EntityType) []DocumentType {
	out := make([]DocumentType, 0, len(types))
	for _, t := range types {
		if t.Ativo && t.AppliesTo(entity) {
			out = append(out, t)
		}
	}
	return out
}

// Student is the record returned by /alunos endpoints.
type Student struct {
	ID        int64  `json:"id"`
	Nome      string `json:"nome"`
	Matricula string `json:"matricula,omitempty"`
	CPF       string `json:"cpf,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Staff is the record returned by /colaboradores endpoints.
type Staff struct {
	ID    int64  `json:"id"`
	Nome  string `json:"nome"`
	Cargo string `json:"cargo,omitempty"`
	Email string `json:"email,omitempty"`
}

// Owner converts the record into the owner reference stored in metadata.
func (s Student) Owner() Owner { return Owner{ID: s.ID, Name: s.Nome} }

// Owner converts the record into the owner reference stored in metadata.
func (s Staff) Owner() Owner { return Owner{ID: s.ID, Name: s.Nome} }

// Page is the paginated envelope used by list endpoints.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

// NewPage slices items into the requested page.
func NewPage[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = 10
	}
	if page < 0 {
		page = 0
	}
	total := len(items)
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return Page[T]{
		Content:       append([]T(nil), items[start:end]...),
		TotalElements: int64(total),
		TotalPages:    (total + size - 1) / size,
		Number:        page,
		Size:          size,
	}
}

// LoginRequest is the body of POST /user/login.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /user/login.
type LoginResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Permissions []string  `json:"permissions"`
}

// UploadResponse is returned by both upload endpoints.
type UploadResponse struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the JSON body of every non-2xx backend response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HasAllPermissions reports whether granted contains every required entry.
func HasAllPermissions(granted, required []string) bool {
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[p] = struct{}{}
	}
	for _, p := range required {
		if _, ok := set[p]; !ok {
			return false
		}
	}
	return true
}
