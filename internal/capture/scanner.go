// Package capture obtains page images from a scanner and normalizes them
// before they join the page sequence.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrCancelled is returned by a Scanner when the user backs out.
var ErrCancelled = errors.New("capture cancelled")

// Scanner produces one raw page image per call and returns its local path.
type Scanner interface {
	Scan(ctx context.Context) (string, error)
}

// FileScanner hands out a fixed list of image files, one per Scan. When the
// list is exhausted it reports ErrCancelled.
type FileScanner struct {
	mu    sync.Mutex
	files []string
}

// NewFileScanner queues files in the given order.
func NewFileScanner(files ...string) *FileScanner {
	return &FileScanner{files: append([]string(nil), files...)}
}

// Scan returns the next queued file.
func (s *FileScanner) Scan(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.files) == 0 {
		return "", ErrCancelled
	}
	next := s.files[0]
	s.files = s.files[1:]
	if _, err := os.Stat(next); err != nil {
		return "", fmt.Errorf("scan %s: %w", next, err)
	}
	return next, nil
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".tif": true, ".tiff": true, ".bmp": true}

// DirScanner waits for the user to drop a scan into Dir (for example a
// network scanner's output folder) and returns the newest image that has not
// been returned before.
type DirScanner struct {
	Dir    string
	Prompt Prompter

	mu   sync.Mutex
	seen map[string]bool
}

// NewDirScanner watches dir, asking p before each scan.
func NewDirScanner(dir string, p Prompter) *DirScanner {
	return &DirScanner{Dir: dir, Prompt: p, seen: make(map[string]bool)}
}

// Scan asks the user to scan a page and picks it up from the inbox.
func (s *DirScanner) Scan(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !s.Prompt.Confirm(fmt.Sprintf("Scan one page into %s, then continue?", s.Dir)) {
			return "", ErrCancelled
		}
		path, err := s.newest()
		if err != nil {
			return "", err
		}
		if path != "" {
			return path, nil
		}
		s.Prompt.Notify("No new image found in " + s.Dir)
	}
}

func (s *DirScanner) newest() (string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return "", fmt.Errorf("read inbox: %w", err)
	}
	type candidate struct {
		path string
		mod  int64
	}
	var found []candidate
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(s.Dir, e.Name())
		if s.seen[path] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{path: path, mod: info.ModTime().UnixNano()})
	}
	if len(found) == 0 {
		return "", nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod > found[j].mod })
	s.seen[found[0].path] = true
	return found[0].path, nil
}
