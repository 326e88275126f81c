package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOCDESK_ADDRESS", "")
	t.Setenv("DATABASE_URL", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address)
	assert.EqualValues(t, 50<<20, cfg.MaxFileSize)
	assert.Len(t, cfg.JWTSecret, 32)
	assert.False(t, cfg.UsesPostgres())
	assert.Equal(t, []string{"documento:digitalizar", "documento:visualizar"}, cfg.AdminPermissions)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DOCDESK_ADDRESS", ":9090")
	t.Setenv("DOCDESK_WORKERS", "-3")
	t.Setenv("DOCDESK_SESSION_TTL", "1h")
	t.Setenv("DATABASE_URL", "postgres://docdesk@localhost/docdesk")
	t.Setenv("S3_USE_SSL", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address)
	assert.Equal(t, defaultWorkerCount, cfg.ProcessingPool)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.UsesPostgres())
	assert.True(t, cfg.S3UseSSL)
}

func TestLoadClientFileAndEnv(t *testing.T) {
	t.Setenv("DOCDESK_API_TIMEOUT", "5s")
	path := filepath.Join(t.TempDir(), "docdesk.yaml")
	content := `
apiBaseURL: "http://backend:8080"
searchMaxResults: 5
jpegQuality: 80
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8080", cfg.APIBaseURL)
	assert.Equal(t, 5, cfg.SearchMaxResults)
	assert.Equal(t, 80, cfg.JPEGQuality)
	assert.Equal(t, 5*time.Second, cfg.APITimeout)
	assert.Equal(t, 2000, cfg.MaxImageWidth)
	assert.Equal(t, 500*time.Millisecond, cfg.SearchDebounce)
}

func TestLoadClientMissingFile(t *testing.T) {
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
}

func TestLoadClientRejectsBadQuality(t *testing.T) {
	t.Setenv("DOCDESK_JPEG_QUALITY", "140")
	_, err := LoadClient("")
	assert.Error(t, err)
}
