package trend

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"scorelens/pkg/contracts/domain"
)

// sortHistory orders records chronologically. Dates decide only when every
// record carries one; otherwise records go by term. Ties fall back to the
// order they were read in.
func sortHistory(history []domain.CanonicalRecord) {
	byDate := true
	for _, r := range history {
		if r.Date == nil {
			byDate = false
			break
		}
	}

	sort.SliceStable(history, func(i, j int) bool {
		a, b := history[i], history[j]
		if byDate && !a.Date.Equal(*b.Date) {
			return a.Date.Before(*b.Date)
		}
		if a.Term != b.Term {
			return termLess(a.Term, b.Term)
		}
		return a.Seq < b.Seq
	})
}

type termKey struct {
	prefix   string
	numbered bool
	number   int
	folded   string
	label    string
}

func keyOf(term string) termKey {
	prefix, n, ok := splitTrailingNumber(term)
	return termKey{
		prefix:   strings.ToLower(prefix),
		numbered: ok,
		number:   n,
		folded:   strings.ToLower(term),
		label:    term,
	}
}

// termLess compares term labels so that "Term 2" sorts before "Term 10".
// Labels are compared field by field on (prefix, numbered, number, label),
// which keeps the order total when numbered and plain labels are mixed.
func termLess(a, b string) bool {
	ka, kb := keyOf(a), keyOf(b)
	switch {
	case ka.prefix != kb.prefix:
		return ka.prefix < kb.prefix
	case ka.numbered != kb.numbered:
		return !ka.numbered
	case ka.number != kb.number:
		return ka.number < kb.number
	case ka.folded != kb.folded:
		return ka.folded < kb.folded
	}
	return ka.label < kb.label
}

func splitTrailingNumber(s string) (string, int, bool) {
	s = strings.TrimSpace(s)
	i := len(s)
	for i > 0 && unicode.IsDigit(rune(s[i-1])) {
		i--
	}
	if i == len(s) {
		return s, 0, false
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return s, 0, false
	}
	return strings.TrimSpace(s[:i]), n, true
}
