package capture

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedPrompter struct {
	answers  []bool
	asked    []string
	notified []string
}

func (p *scriptedPrompter) Confirm(q string) bool {
	p.asked = append(p.asked, q)
	if len(p.answers) == 0 {
		return false
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a
}

func (p *scriptedPrompter) Notify(m string) { p.notified = append(p.notified, m) }

type failingScanner struct {
	errs []error
	path string
}

func (s *failingScanner) Scan(context.Context) (string, error) {
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	return s.path, nil
}

func writeImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 180, B: 40, A: 255})
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestNormalizeDownscalesWideImages(t *testing.T) {
	src := writeImage(t, t.TempDir(), "wide.png", 3000, 1500)
	n := NewNormalizer(t.TempDir(), 2000, 90)

	page, err := n.Normalize(src)
	require.NoError(t, err)
	assert.Equal(t, 2000, page.Width)
	assert.Equal(t, 1000, page.Height)
	assert.Equal(t, ".jpg", filepath.Ext(page.Path))
	assert.NotEqual(t, src, page.Path)

	img, err := imaging.Open(page.Path)
	require.NoError(t, err)
	assert.Equal(t, 2000, img.Bounds().Dx())
}

func TestNormalizeKeepsNarrowImagesButReencodes(t *testing.T) {
	src := writeImage(t, t.TempDir(), "narrow.png", 800, 600)
	n := NewNormalizer(t.TempDir(), 0, 0)
	assert.Equal(t, DefaultMaxWidth, n.MaxWidth)
	assert.Equal(t, DefaultQuality, n.Quality)

	page, err := n.Normalize(src)
	require.NoError(t, err)
	assert.Equal(t, 800, page.Width)
	assert.Equal(t, 600, page.Height)
	assert.Equal(t, ".jpg", filepath.Ext(page.Path))
}

func TestNormalizeRejectsNonImages(t *testing.T) {
	src := filepath.Join(t.TempDir(), "notes.jpg")
	require.NoError(t, os.WriteFile(src, []byte("plain text"), 0o600))

	_, err := NewNormalizer(t.TempDir(), 2000, 90).Normalize(src)
	assert.Error(t, err)
}

func TestFileScannerQueue(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png", 10, 10)
	b := writeImage(t, dir, "b.png", 10, 10)
	s := NewFileScanner(a, b)

	got, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, got)

	got, err = s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = s.Scan(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestDirScannerPicksNewestUnseen(t *testing.T) {
	dir := t.TempDir()
	older := writeImage(t, dir, "older.png", 10, 10)
	newer := writeImage(t, dir, "newer.png", 10, 10)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o600))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	p := &scriptedPrompter{answers: []bool{true, true, true, false}}
	s := NewDirScanner(dir, p)

	got, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	got, err = s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, older, got)

	// Nothing new: the scanner notifies and asks again; the user declines.
	_, err = s.Scan(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Len(t, p.notified, 1)
}

func TestStageCaptureRetriesScannerErrors(t *testing.T) {
	src := writeImage(t, t.TempDir(), "scan.png", 100, 50)
	scanner := &failingScanner{errs: []error{errors.New("paper jam")}, path: src}
	p := &scriptedPrompter{answers: []bool{true}}
	stage := NewStage(scanner, NewNormalizer(t.TempDir(), 2000, 90), p, zap.NewNop())

	page, err := stage.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, page.Width)
	require.Len(t, p.asked, 1)
	assert.Contains(t, p.asked[0], "paper jam")
}

func TestStageCaptureCancelOnDeclinedRetry(t *testing.T) {
	src := filepath.Join(t.TempDir(), "broken.jpg")
	require.NoError(t, os.WriteFile(src, []byte("not an image"), 0o600))
	p := &scriptedPrompter{answers: []bool{false}}
	stage := NewStage(NewFileScanner(src), NewNormalizer(t.TempDir(), 2000, 90), p, zap.NewNop())

	_, err := stage.Capture(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Len(t, p.asked, 1)
}

func TestStageCaptureScannerCancel(t *testing.T) {
	p := &scriptedPrompter{}
	stage := NewStage(NewFileScanner(), NewNormalizer(t.TempDir(), 2000, 90), p, zap.NewNop())

	_, err := stage.Capture(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, p.asked)
}

func TestStageCaptureHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stage := NewStage(NewFileScanner("x.png"), NewNormalizer(t.TempDir(), 2000, 90), &scriptedPrompter{}, zap.NewNop())

	_, err := stage.Capture(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
