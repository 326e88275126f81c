// Package signing builds and checks the HMAC-signed download links the backend
// hands out when documents live in the in-memory object store.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	ErrMissingParams = errors.New("missing parameters")
	ErrExpired       = errors.New("url expired")
	ErrBadSignature  = errors.New("invalid signature")
)

// Signer generates and validates HMAC-SHA256 signatures.
type Signer struct {
	secret []byte
}

func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign returns the hex signature of documentID and expiry.
func (s *Signer) Sign(documentID string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", documentID, expiresUnix)
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate compares signature with the expected one in constant time.
func (s *Signer) Validate(documentID, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(s.Sign(documentID, exp)), []byte(signature))
}

// URL returns base with the document, expiry and signature query parameters.
func (s *Signer) URL(base, documentID string, expires time.Time) string {
	exp := expires.Unix()
	q := url.Values{}
	q.Set("document", documentID)
	q.Set("expires", strconv.FormatInt(exp, 10))
	q.Set("signature", s.Sign(documentID, exp))
	return base + "?" + q.Encode()
}

// Verify checks the parameters produced by URL and returns the document id.
func (s *Signer) Verify(q url.Values, now time.Time) (string, error) {
	id, expires, signature := q.Get("document"), q.Get("expires"), q.Get("signature")
	if id == "" || expires == "" || signature == "" {
		return "", ErrMissingParams
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: expires %q", ErrMissingParams, expires)
	}
	if time.Unix(exp, 0).Before(now) {
		return "", ErrExpired
	}
	if !s.Validate(id, expires, signature) {
		return "", ErrBadSignature
	}
	return id, nil
}
