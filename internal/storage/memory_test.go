package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/DocDesk/internal/auth"
	"github.com/dharsanguruparan/DocDesk/internal/model"
)

func TestCatalogQueries(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	SeedDemo(m)

	types, err := m.ActiveDocumentTypes(ctx)
	require.NoError(t, err)
	for _, dt := range types {
		assert.True(t, dt.Ativo)
	}
	assert.Len(t, types, len(DefaultDocumentTypes)-1)

	page, err := m.SearchStudents(ctx, "mari", 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "Maria Silva", page.Content[0].Nome)
	assert.Equal(t, int64(2), page.TotalElements)

	page, err = m.SearchStudents(ctx, "2022", 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, int64(44), page.Content[0].ID)

	staff, err := m.ListStaff(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, staff.TotalPages)
	assert.Equal(t, "Ana Lúcia Prado", staff.Content[0].Nome)

	_, err = m.GetStudent(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetStaff(ctx, 7)
	assert.NoError(t, err)
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	doc := &model.Document{ID: "d1", Entity: model.EntityInstitution, Title: "Ata"}
	require.NoError(t, m.CreateDocument(ctx, doc))
	assert.Equal(t, model.StatusQueued, doc.Status)

	require.NoError(t, m.MarkProcessing(ctx, "d1"))
	got, err := m.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)

	require.NoError(t, m.MarkCompleted(ctx, "d1", 3, "hello"))
	got, err = m.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 3, got.PageCount)

	got.Title = "mutated"
	again, _ := m.GetDocument(ctx, "d1")
	assert.Equal(t, "Ata", again.Title)

	assert.ErrorIs(t, m.MarkFailed(ctx, "missing", "x"), ErrNotFound)
}

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, SeedAdmin(ctx, m, "admin", "pw", []string{"documento:digitalizar"}))

	u, err := m.FindUser(ctx, "admin")
	require.NoError(t, err)
	assert.NoError(t, auth.CheckPassword(u.PasswordHash, "pw"))
	_, err = m.FindUser(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBlobs(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBlobs()
	require.NoError(t, b.Put(ctx, "k", strings.NewReader("%PDF-1.4 body"), 4, "application/pdf"))

	data, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
	assert.Equal(t, "application/pdf", b.ContentType("k"))

	_, err = b.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
