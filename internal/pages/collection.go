// Package pages keeps the ordered list of captured pages of one document.
package pages

import (
	"errors"
	"fmt"
	"os"

	"github.com/dharsanguruparan/DocDesk/internal/model"
)

// ErrIndexOutOfRange is returned when a removal targets a position that is not
// currently displayed.
var ErrIndexOutOfRange = errors.New("page index out of range")

// Collection is an ordered sequence of pages. Order is capture order and is
// the page order of the final PDF. Indices are positional: after a removal
// the pages behind it shift down by one.
type Collection struct {
	pages []*model.CapturedPage
}

// New returns a collection holding pages in the given order.
func New(pages ...*model.CapturedPage) *Collection {
	return &Collection{pages: append([]*model.CapturedPage(nil), pages...)}
}

// Add appends a page after the existing ones.
func (c *Collection) Add(p *model.CapturedPage) {
	c.pages = append(c.pages, p)
}

// Remove deletes the page at index, preserving the relative order of the
// rest, and returns it.
func (c *Collection) Remove(index int) (*model.CapturedPage, error) {
	if index < 0 || index >= len(c.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(c.pages))
	}
	removed := c.pages[index]
	c.pages = append(c.pages[:index:index], c.pages[index+1:]...)
	return removed, nil
}

// Pages returns a copy of the current sequence.
func (c *Collection) Pages() []*model.CapturedPage {
	return append([]*model.CapturedPage(nil), c.pages...)
}

// Len is the number of pages.
func (c *Collection) Len() int { return len(c.pages) }

// Empty reports whether there is nothing to upload.
func (c *Collection) Empty() bool { return len(c.pages) == 0 }

// Cleanup deletes the image files of every page. Missing files are ignored.
func (c *Collection) Cleanup() error {
	var errs []error
	for _, p := range c.pages {
		if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
