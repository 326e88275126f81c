package model

import (
	"fmt"
	"os"
	"sync"
)

// CapturedPage is one normalized scan waiting to be assembled into the final
// PDF. Path points at a local JPEG produced by the capture stage.
type CapturedPage struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	once    sync.Once
	payload []byte
	err     error
}

// NewCapturedPage builds a page for an already normalized image.
func NewCapturedPage(path string, width, height int) *CapturedPage {
	return &CapturedPage{Path: path, Width: width, Height: height}
}

// Payload reads the image bytes the first time it is called and caches them
// for later calls.
func (p *CapturedPage) Payload() ([]byte, error) {
	p.once.Do(func() {
		data, err := os.ReadFile(p.Path)
		if err != nil {
			p.err = fmt.Errorf("read page %s: %w", p.Path, err)
			return
		}
		p.payload = data
	})
	return p.payload, p.err
}

// UploadResult is the terminal outcome of one upload attempt. A retry yields a
// new value instead of mutating an earlier one.
type UploadResult struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"documentId,omitempty"`
	Message    string `json:"message,omitempty"`
	// Failure carries the error kind of a failed attempt (for example
	// "session_expired") so the caller can pick the follow-up actions.
	Failure string `json:"failure,omitempty"`
}
