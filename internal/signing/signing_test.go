package signing

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	sig := s.Sign("doc123", 1700000000)
	require.NotEmpty(t, sig)

	assert.True(t, s.Validate("doc123", "1700000000", sig))
	assert.False(t, s.Validate("wrong", "1700000000", sig))
	assert.False(t, s.Validate("doc123", "42", sig))
	assert.False(t, s.Validate("doc123", "soon", sig))
	assert.False(t, NewSigner([]byte("other")).Validate("doc123", "1700000000", sig))
}

func TestURLRoundTrip(t *testing.T) {
	s := NewSigner([]byte("k"))
	now := time.Unix(1700000000, 0)
	raw := s.URL("/download", "doc-1", now.Add(time.Minute))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/download", u.Path)

	id, err := s.Verify(u.Query(), now)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)

	_, err = s.Verify(u.Query(), now.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrExpired)

	q := u.Query()
	q.Set("document", "doc-2")
	_, err = s.Verify(q, now)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = s.Verify(url.Values{}, now)
	assert.ErrorIs(t, err, ErrMissingParams)
}
