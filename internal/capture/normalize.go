package capture

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/dharsanguruparan/DocDesk/internal/model"
)

const (
	DefaultMaxWidth = 2000
	DefaultQuality  = 90
)

// Normalizer turns a raw scan into a CapturedPage: auto-oriented, at most
// MaxWidth pixels wide, re-encoded as JPEG at Quality. The original file is
// never handed on.
type Normalizer struct {
	MaxWidth int
	Quality  int
	Dir      string
}

// NewNormalizer returns a Normalizer writing into dir.
func NewNormalizer(dir string, maxWidth, quality int) *Normalizer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Normalizer{MaxWidth: maxWidth, Quality: quality, Dir: dir}
}

// Normalize reads src and writes the normalized copy into n.Dir.
func (n *Normalizer) Normalize(src string) (*model.CapturedPage, error) {
	const op = "capture.Normalize"

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if img.Bounds().Dx() > n.MaxWidth {
		img = imaging.Resize(img, n.MaxWidth, 0, imaging.Lanczos)
	}
	if err := os.MkdirAll(n.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	dst := filepath.Join(n.Dir, "page-"+uuid.NewString()+".jpg")
	if err := imaging.Save(img, dst, imaging.JPEGQuality(n.Quality)); err != nil {
		_ = os.Remove(dst)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	b := img.Bounds()
	return model.NewCapturedPage(dst, b.Dx(), b.Dy()), nil
}
