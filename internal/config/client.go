package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig is the configuration of the docdesk CLI. It is loaded from an
// optional YAML file and then overridden by DOCDESK_* environment variables.
type ClientConfig struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"logLevel"`

	APIBaseURL string        `yaml:"apiBaseURL"`
	APITimeout time.Duration `yaml:"apiTimeout"`

	SearchDebounce   time.Duration `yaml:"searchDebounce"`
	SearchMinQuery   int           `yaml:"searchMinQuery"`
	SearchMaxResults int           `yaml:"searchMaxResults"`
	StaffPageSize    int           `yaml:"staffPageSize"`

	MaxImageWidth int `yaml:"maxImageWidth"`
	JPEGQuality   int `yaml:"jpegQuality"`

	WorkDir     string `yaml:"workDir"`
	SessionFile string `yaml:"sessionFile"`

	// RequiredPermissions must all be granted by /user/login before the CLI
	// lets the user digitalize documents.
	RequiredPermissions []string `yaml:"requiredPermissions"`
}

// DefaultClientConfig returns the settings used when no file is present.
func DefaultClientConfig() ClientConfig {
	home, _ := os.UserConfigDir()
	return ClientConfig{
		Environment:         "development",
		APIBaseURL:          "http://localhost:8080",
		APITimeout:          30 * time.Second,
		SearchDebounce:      500 * time.Millisecond,
		SearchMinQuery:      2,
		SearchMaxResults:    10,
		StaffPageSize:       200,
		MaxImageWidth:       2000,
		JPEGQuality:         90,
		WorkDir:             filepath.Join(os.TempDir(), "docdesk"),
		SessionFile:         filepath.Join(home, "docdesk", "session.json"),
		RequiredPermissions: []string{"documento:digitalizar"},
	}
}

// LoadClient reads path (a missing file is not an error) on top of the
// defaults and applies environment overrides.
func LoadClient(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if v := os.Getenv("DOCDESK_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("DOCDESK_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.APITimeout = d
		}
	}
	if v := os.Getenv("DOCDESK_WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("DOCDESK_SESSION_FILE"); v != "" {
		cfg.SessionFile = v
	}
	if v := os.Getenv("DOCDESK_MAX_IMAGE_WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxImageWidth = n
		}
	}
	if v := os.Getenv("DOCDESK_JPEG_QUALITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.JPEGQuality = n
		}
	}
	if v := os.Getenv("DOCDESK_ENV"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("DOCDESK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the workflow cannot run with.
func (c ClientConfig) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("apiBaseURL is required")
	}
	if c.APITimeout <= 0 {
		return errors.New("apiTimeout must be positive")
	}
	if c.MaxImageWidth <= 0 {
		return errors.New("maxImageWidth must be positive")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpegQuality %d out of range 1-100", c.JPEGQuality)
	}
	if c.SearchMinQuery < 1 {
		return errors.New("searchMinQuery must be at least 1")
	}
	if c.SearchMaxResults < 1 {
		return errors.New("searchMaxResults must be at least 1")
	}
	return nil
}
