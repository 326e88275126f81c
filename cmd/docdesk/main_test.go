package main

import (
	"bytes"
	"context"
	"image/color"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/api"
	"github.com/dharsanguruparan/DocDesk/internal/auth"
	"github.com/dharsanguruparan/DocDesk/internal/model"
	"github.com/dharsanguruparan/DocDesk/internal/queue"
	"github.com/dharsanguruparan/DocDesk/internal/signing"
	"github.com/dharsanguruparan/DocDesk/internal/storage"
)

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, queue.ProcessPayload) error { return nil }

type cli struct {
	t      *testing.T
	config string
	store  *storage.MemoryStore
}

func startBackend(t *testing.T) *cli {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	storage.SeedDemo(store)
	require.NoError(t, storage.SeedAdmin(ctx, store, "admin", "secret", []string{api.UploadPermission}))
	require.NoError(t, storage.SeedAdmin(ctx, store, "reader", "secret", []string{"documento:visualizar"}))
	srv := api.New(api.Options{TempDir: t.TempDir()}, store, store, storage.NewMemoryBlobs(), nopDispatcher{},
		auth.NewIssuer([]byte("jwt"), time.Hour), signing.NewSigner([]byte("sig")), zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("searchDebounce: 10ms\nlogLevel: error\n"), 0o600))
	t.Setenv("DOCDESK_API_URL", ts.URL)
	t.Setenv("DOCDESK_SESSION_FILE", filepath.Join(dir, "session.json"))
	t.Setenv("DOCDESK_WORK_DIR", filepath.Join(dir, "work"))
	return &cli{t: t, config: cfg, store: store}
}

func (c *cli) execute(input string, args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCommand(&app{})
	out := &bytes.Buffer{}
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--config", c.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func scans(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	var files []string
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, "scan"+string(rune('1'+i))+".png")
		require.NoError(t, imaging.Save(imaging.New(300, 400, color.Gray{Y: 200}), path))
		files = append(files, path)
	}
	return files
}

func TestDigitalizeRequiresLogin(t *testing.T) {
	c := startBackend(t)
	_, err := c.execute("", "digitalize", scans(t, 1)[0])
	assert.ErrorIs(t, err, errLoginRequired)
}

func TestLoginWithoutPermission(t *testing.T) {
	c := startBackend(t)
	_, err := c.execute("secret\n", "login", "-u", "reader")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lacks the permissions")
	_, err = os.Stat(os.Getenv("DOCDESK_SESSION_FILE"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoginStatusLogout(t *testing.T) {
	c := startBackend(t)
	out, err := c.execute("admin\nsecret\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as admin")

	out, err = c.execute("", "status")
	require.NoError(t, err)
	assert.Contains(t, out, api.UploadPermission)

	out, err = c.execute("", "search", "student", "mari")
	require.NoError(t, err)
	assert.Contains(t, out, "Maria Silva")
	assert.Contains(t, out, "Mariana Costa")

	out, err = c.execute("", "doc-types", "-e", "institution")
	require.NoError(t, err)
	assert.Contains(t, out, "Portaria")
	assert.NotContains(t, out, "RG")

	_, err = c.execute("", "logout")
	require.NoError(t, err)
	_, err = c.execute("", "status")
	assert.ErrorIs(t, err, errLoginRequired)
}

func TestDigitalizeUploadsTwoPages(t *testing.T) {
	c := startBackend(t)
	_, err := c.execute("admin\nsecret\n", "login")
	require.NoError(t, err)

	files := scans(t, 2)
	// submit the prefilled form, add the second page, upload, back to the dashboard
	input := "\na\nu\n2\n"
	out, err := c.execute(input, "digitalize",
		"-e", "student", "--owner", "pedro", "-t", "RG", "-d", "2024-01-02", "-l", "Arquivo B",
		files[0], files[1])
	require.NoError(t, err, out)

	m := regexp.MustCompile(`\(id ([0-9a-f-]+)\)`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	doc, err := c.store.GetDocument(context.Background(), m[1])
	require.NoError(t, err)
	assert.Equal(t, model.EntityStudent, doc.Entity)
	assert.Equal(t, int64(44), *doc.OwnerID)
	assert.Equal(t, "RG", doc.DocumentType)
	assert.Equal(t, "2024-01-02", doc.DocumentDate)
	assert.Equal(t, "Arquivo B", doc.Location)
	assert.Equal(t, 2, doc.PageCount)
	assert.Contains(t, out, "100% Upload complete")
}

func TestDigitalizeClosedInputAtPageReview(t *testing.T) {
	c := startBackend(t)
	_, err := c.execute("admin\nsecret\n", "login")
	require.NoError(t, err)

	out, err := c.execute("\n", "digitalize",
		"-e", "student", "--owner", "pedro", "-t", "RG", "-d", "2024-01-02", "-l", "Arquivo B",
		scans(t, 1)[0])
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 page(s)")
	assert.NotContains(t, out, "(id ")
}
