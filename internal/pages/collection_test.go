package pages

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/DocDesk/internal/model"
)

func page(name string) *model.CapturedPage {
	return model.NewCapturedPage(name, 10, 10)
}

func paths(c *Collection) []string {
	var out []string
	for _, p := range c.Pages() {
		out = append(out, p.Path)
	}
	return out
}

func TestRemovePreservesOrder(t *testing.T) {
	c := New(page("a"), page("b"), page("c"), page("d"))
	removed, err := c.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, "b", removed.Path)
	assert.Equal(t, []string{"a", "c", "d"}, paths(c))

	_, err = c.Remove(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, paths(c))
}

func TestRemoveOutOfRange(t *testing.T) {
	c := New(page("a"))
	_, err := c.Remove(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = c.Remove(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, 1, c.Len())
}

func TestRandomAddRemoveIsStable(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		c := New()
		var want []string
		next := 0
		for op := 0; op < 40; op++ {
			if c.Len() == 0 || rng.Intn(3) > 0 {
				name := string(rune('A'+next%26)) + string(rune('a'+next/26))
				next++
				c.Add(page(name))
				want = append(want, name)
				continue
			}
			i := rng.Intn(c.Len())
			_, err := c.Remove(i)
			require.NoError(t, err)
			want = append(want[:i:i], want[i+1:]...)
		}
		assert.Equal(t, want, paths(c))
	}
}

func TestPagesReturnsCopy(t *testing.T) {
	c := New(page("a"), page("b"))
	got := c.Pages()
	got[0] = page("z")
	assert.Equal(t, []string{"a", "b"}, paths(c))
}

func TestRemovingLastPageEmpties(t *testing.T) {
	c := New(page("a"))
	_, err := c.Remove(0)
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "p.jpg")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	c := New(page(p), page(filepath.Join(dir, "missing.jpg")))
	require.NoError(t, c.Cleanup())
	_, err := os.Stat(p)
	assert.True(t, os.IsNotExist(err))
}
