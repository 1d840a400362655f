package schema

import (
	"sort"

	"scorelens/internal/config"
	"scorelens/internal/shared/textmatch"
	"scorelens/pkg/contracts/domain"
)

// MatchKind ranks how a column was resolved; lower is stronger.
type MatchKind int

const (
	MatchHint MatchKind = iota
	MatchExact
	MatchFuzzy
	MatchNone
)

func (k MatchKind) String() string {
	switch k {
	case MatchHint:
		return "hint"
	case MatchExact:
		return "exact"
	case MatchFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// Resolution is the outcome of resolving one column name.
type Resolution struct {
	Column   string
	Field    string
	Kind     MatchKind
	Distance int
}

// Resolver maps column names to canonical fields.
type Resolver struct {
	exact   map[string]string
	aliases []alias
	maxEdit int
}

type alias struct {
	key   string
	field string
}

// NewResolver indexes the synonym table. Canonical field names always
// resolve to themselves.
func NewResolver(tables *config.Tables, maxEdit int) *Resolver {
	r := &Resolver{exact: make(map[string]string), maxEdit: maxEdit}

	add := func(name, field string) {
		key := textmatch.NormalizeKey(name)
		if key == "" {
			return
		}
		if _, taken := r.exact[key]; taken {
			return
		}
		r.exact[key] = field
		r.aliases = append(r.aliases, alias{key: key, field: field})
	}

	for _, field := range domain.CanonicalFields {
		add(field, field)
	}
	fields := make([]string, 0, len(tables.Synonyms))
	for field := range tables.Synonyms {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		for _, name := range tables.Synonyms[field] {
			add(name, field)
		}
	}
	return r
}

// Resolve finds the canonical field for a column name. hints are keyed by
// normalized column name.
func (r *Resolver) Resolve(column string, hints map[string]string) Resolution {
	key := textmatch.NormalizeKey(column)
	res := Resolution{Column: column, Kind: MatchNone}
	if key == "" {
		return res
	}

	if field, ok := hints[key]; ok {
		res.Field, res.Kind = field, MatchHint
		return res
	}
	if field, ok := r.exact[key]; ok {
		res.Field, res.Kind = field, MatchExact
		return res
	}
	if r.maxEdit <= 0 {
		return res
	}

	keyLen := len([]rune(key))
	best := r.maxEdit + 1
	var candidates map[string]bool
	for _, a := range r.aliases {
		d := textmatch.EditDistance(key, a.key)
		if d > r.maxEdit || 2*d >= keyLen {
			continue
		}
		switch {
		case d < best:
			best = d
			candidates = map[string]bool{a.field: true}
		case d == best:
			candidates[a.field] = true
		}
	}

	// a tie between different fields is ambiguous
	if len(candidates) == 1 {
		for field := range candidates {
			res.Field, res.Kind, res.Distance = field, MatchFuzzy, best
		}
	}
	return res
}
