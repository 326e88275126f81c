// Package config centralizes how DocDesk reads its settings. The backend and
// worker read environment variables; the CLI reads an optional YAML file with
// environment overrides (see client.go).
package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the runtime configuration of the reference backend and worker.
// Fields are exported (capitalized) so the binaries in cmd/ can read them.
type Config struct {
	Environment string
	LogLevel    string

	Address      string
	MaxFileSize  int64
	SignedURLTTL time.Duration

	SigningSecret []byte
	JWTSecret     []byte
	SessionTTL    time.Duration
	AdminLogin    string
	AdminPassword string
	// AdminPermissions are granted to the seeded admin account.
	AdminPermissions []string

	ProcessingPool int

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3Region    string
	Bucket      string
}

const (
	defaultAddress     = ":8080"
	defaultMaxFileSize = 50 << 20 // 50 MiB
	defaultSignedTTL   = 5 * time.Minute
	defaultSessionTTL  = 8 * time.Hour
	defaultWorkerCount = 2
	defaultBucket      = "docdesk-documents"
	defaultRegion      = "us-east-1"
	defaultPermissions = "documento:digitalizar,documento:visualizar"
)

// Load reads configuration from environment variables, falling back to
// defaults. An empty DatabaseURL means the backend runs on in-memory stores.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:      readEnv("DOCDESK_ENV", "development"),
		LogLevel:         readEnv("DOCDESK_LOG_LEVEL", ""),
		Address:          readEnv("DOCDESK_ADDRESS", defaultAddress),
		MaxFileSize:      parseInt64("DOCDESK_MAX_FILE_BYTES", defaultMaxFileSize),
		SignedURLTTL:     parseDuration("DOCDESK_SIGNED_TTL", defaultSignedTTL),
		SigningSecret:    parseSecret("DOCDESK_SIGNING_SECRET"),
		JWTSecret:        parseSecret("DOCDESK_JWT_SECRET"),
		SessionTTL:       parseDuration("DOCDESK_SESSION_TTL", defaultSessionTTL),
		AdminLogin:       readEnv("DOCDESK_ADMIN_LOGIN", "admin"),
		AdminPassword:    readEnv("DOCDESK_ADMIN_PASSWORD", "admin"),
		AdminPermissions: parseList("DOCDESK_ADMIN_PERMISSIONS", defaultPermissions),
		ProcessingPool:   parseInt("DOCDESK_WORKERS", defaultWorkerCount),
		DatabaseURL:      readEnv("DATABASE_URL", ""),
		RedisAddr:        readEnv("REDIS_ADDR", ""),
		RedisPassword:    readEnv("REDIS_PASSWORD", ""),
		RedisDB:          parseInt("REDIS_DB", 0),
		S3Endpoint:       readEnv("S3_ENDPOINT", ""),
		S3AccessKey:      readEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:      readEnv("S3_SECRET_KEY", ""),
		S3UseSSL:         parseBool("S3_USE_SSL", false),
		S3Region:         readEnv("S3_REGION", defaultRegion),
		Bucket:           readEnv("S3_BUCKET", defaultBucket),
	}
	if cfg.SigningSecret == nil {
		cfg.SigningSecret = randomSecret()
	}
	if cfg.JWTSecret == nil {
		cfg.JWTSecret = randomSecret()
	}
	if cfg.ProcessingPool <= 0 {
		cfg.ProcessingPool = defaultWorkerCount
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	return cfg, nil
}

// UsesPostgres reports whether persistent storage is configured.
func (c *Config) UsesPostgres() bool { return c.DatabaseURL != "" }

// UsesObjectStorage reports whether a MinIO/S3 endpoint is configured.
func (c *Config) UsesObjectStorage() bool { return c.S3Endpoint != "" }

// UsesQueue reports whether uploads are processed through Redis/asynq.
func (c *Config) UsesQueue() bool { return c.RedisAddr != "" }

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseList(key, def string) []string {
	val := readEnv(key, def)
	if val == "" {
		return nil
	}
	out := strings.Split(val, ",")
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	// time.ParseDuration understands inputs like "5m" or "30s".
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte(hex.EncodeToString([]byte("fallbacksecret")))
	}
	return buf
}
