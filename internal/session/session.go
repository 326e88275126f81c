// Package session persists the CLI login between invocations.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dharsanguruparan/DocDesk/internal/model"
)

// ErrNoSession is returned by Load when nobody is logged in.
var ErrNoSession = errors.New("not logged in")

// Session is the token obtained from POST /user/login.
type Session struct {
	Login       string    `json:"login"`
	BaseURL     string    `json:"baseUrl"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Permissions []string  `json:"permissions"`
}

// FromLogin builds a session from a login response.
func FromLogin(login, baseURL string, resp model.LoginResponse) Session {
	return Session{
		Login:       login,
		BaseURL:     baseURL,
		Token:       resp.Token,
		ExpiresAt:   resp.ExpiresAt,
		Permissions: append([]string(nil), resp.Permissions...),
	}
}

// Expired reports whether the token is past its expiry. A zero expiry never
// expires locally; the backend still decides.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Allows reports whether the session carries every permission in required.
func (s Session) Allows(required []string) bool {
	return model.HasAllPermissions(s.Permissions, required)
}

// Save writes the session with owner-only permissions.
func Save(path string, s Session) error {
	if strings.TrimSpace(s.Token) == "" {
		return errors.New("save session: empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load reads the session at path. A missing file, an empty token and an
// expired token all yield ErrNoSession.
func Load(path string, now time.Time) (Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if strings.TrimSpace(s.Token) == "" || s.Expired(now) {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Clear removes the session file. Clearing twice is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
