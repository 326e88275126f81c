package apiclient

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dharsanguruparan/DocDesk/internal/model"
)

// FilterStaff keeps the staff whose name contains term, comparing without case
// or diacritics ("jose" matches "José"). At most limit entries are returned
// when limit is positive.
func FilterStaff(staff []model.Staff, term string, limit int) []model.Staff {
	needle := Fold(term)
	out := make([]model.Staff, 0)
	for _, s := range staff {
		if needle != "" && !strings.Contains(Fold(s.Nome), needle) {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Fold lower-cases s and strips combining marks.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
