// Package storage contains the in-memory persistence used when the backend
// runs without Postgres or MinIO.
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dharsanguruparan/DocDesk/internal/model"
)

var (
	// ErrNotFound is shared by every store so handlers can compare with
	// errors.Is regardless of the backing implementation.
	ErrNotFound = errors.New("not found")
)

// MemoryStore keeps the catalog (document types, students, staff), users and
// document records behind one RWMutex.
type MemoryStore struct {
	mu        sync.RWMutex
	types     []model.DocumentType
	students  map[int64]model.Student
	staff     map[int64]model.Staff
	users     map[string]model.User
	documents map[string]*model.Document
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		students:  make(map[int64]model.Student),
		staff:     make(map[int64]model.Staff),
		users:     make(map[string]model.User),
		documents: make(map[string]*model.Document),
	}
}

// AddDocumentTypes appends catalog entries.
func (m *MemoryStore) AddDocumentTypes(types ...model.DocumentType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types = append(m.types, types...)
}

func (m *MemoryStore) AddStudents(students ...model.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range students {
		m.students[s.ID] = s
	}
}

func (m *MemoryStore) AddStaff(staff ...model.Staff) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range staff {
		m.staff[s.ID] = s
	}
}

// SaveUser inserts or replaces an account.
func (m *MemoryStore) SaveUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Login] = u
	return nil
}

func (m *MemoryStore) FindUser(_ context.Context, login string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[login]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// ActiveDocumentTypes returns active types in insertion order.
func (m *MemoryStore) ActiveDocumentTypes(context.Context) ([]model.DocumentType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.DocumentType, 0, len(m.types))
	for _, t := range m.types {
		if t.Ativo {
			out = append(out, t)
		}
	}
	return out, nil
}

// SearchStudents matches term against name, enrolment number and CPF,
// case-insensitively, ordered by name.
func (m *MemoryStore) SearchStudents(_ context.Context, term string, page, size int) (model.Page[model.Student], error) {
	term = strings.ToLower(strings.TrimSpace(term))
	m.mu.RLock()
	matches := make([]model.Student, 0)
	for _, s := range m.students {
		if term == "" ||
			strings.Contains(strings.ToLower(s.Nome), term) ||
			strings.Contains(strings.ToLower(s.Matricula), term) ||
			strings.Contains(s.CPF, term) {
			matches = append(matches, s)
		}
	}
	m.mu.RUnlock()
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Nome == matches[j].Nome {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Nome < matches[j].Nome
	})
	return model.NewPage(matches, page, size), nil
}

func (m *MemoryStore) GetStudent(_ context.Context, id int64) (model.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok {
		return model.Student{}, ErrNotFound
	}
	return s, nil
}

// ListStaff pages through staff ordered by name.
func (m *MemoryStore) ListStaff(_ context.Context, page, size int) (model.Page[model.Staff], error) {
	m.mu.RLock()
	all := make([]model.Staff, 0, len(m.staff))
	for _, s := range m.staff {
		all = append(all, s)
	}
	m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool {
		if all[i].Nome == all[j].Nome {
			return all[i].ID < all[j].ID
		}
		return all[i].Nome < all[j].Nome
	})
	return model.NewPage(all, page, size), nil
}

func (m *MemoryStore) GetStaff(_ context.Context, id int64) (model.Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.staff[id]
	if !ok {
		return model.Staff{}, ErrNotFound
	}
	return s, nil
}

// CreateDocument stores a new record in the queued state.
func (m *MemoryStore) CreateDocument(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	doc.Status = model.StatusQueued
	doc.CreatedAt = now
	doc.UpdatedAt = now
	c := *doc
	m.documents[doc.ID] = &c
	return nil
}

// GetDocument returns a copy of the record.
func (m *MemoryStore) GetDocument(_ context.Context, id string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *doc
	return &c, nil
}

func (m *MemoryStore) MarkProcessing(_ context.Context, id string) error {
	return m.update(id, func(d *model.Document) {
		d.Status = model.StatusProcessing
		d.ErrorMessage = ""
	})
}

func (m *MemoryStore) MarkFailed(_ context.Context, id, msg string) error {
	return m.update(id, func(d *model.Document) {
		d.Status = model.StatusFailed
		d.ErrorMessage = msg
	})
}

func (m *MemoryStore) MarkCompleted(_ context.Context, id string, pageCount int, content string) error {
	return m.update(id, func(d *model.Document) {
		d.Status = model.StatusCompleted
		d.PageCount = pageCount
		d.Content = content
		d.ErrorMessage = ""
	})
}

func (m *MemoryStore) update(id string, fn func(*model.Document)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return ErrNotFound
	}
	fn(doc)
	doc.UpdatedAt = time.Now().UTC()
	return nil
}
