package schema

import (
	"fmt"
	"log/slog"
	"sort"

	"scorelens/internal/config"
	apperrors "scorelens/internal/errors"
	"scorelens/internal/shared/textmatch"
	"scorelens/pkg/contracts/domain"
)

// FieldHints maps a source column name to the canonical field it holds.
type FieldHints map[string]string

// Normalizer turns raw records into partial canonical records.
type Normalizer struct {
	resolver       *Resolver
	grades         map[string]float64
	defaultSubject string
	logger         *slog.Logger
}

// NewNormalizer creates a normalizer over the given tables.
func NewNormalizer(tables *config.Tables, cfg config.AnalyticsConfig, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		resolver:       NewResolver(tables, cfg.MaxEditDistance),
		grades:         tables.Grades,
		defaultSubject: cfg.DefaultSubject,
		logger:         logger.With(slog.String("component", "normalizer")),
	}
}

// Normalize maps every raw record onto the canonical fields. Row-level
// problems are attached to the partial record; only non-flat input or bad
// hints fail the call.
func (n *Normalizer) Normalize(raw []domain.RawRecord, hints FieldHints) ([]domain.PartialRecord, error) {
	normHints, err := normalizeHints(hints)
	if err != nil {
		return nil, err
	}

	for i, rec := range raw {
		for _, f := range rec.Fields {
			if !domain.IsScalar(f.Value) {
				return nil, apperrors.NewInputShapeError(
					fmt.Sprintf("record %d is not flat", i),
					&domain.ShapeError{Field: f.Name, Value: f.Value},
				).WithContext("record", i)
			}
		}
	}

	cache := make(map[string]Resolution)
	unmapped := make(map[string]bool)
	dropped := make(map[string]string)

	out := make([]domain.PartialRecord, len(raw))
	for i := range raw {
		out[i] = n.normalizeOne(&raw[i], i, normHints, cache, unmapped, dropped)
	}

	if len(unmapped) > 0 {
		n.logger.Warn("unmapped columns dropped",
			slog.Any("columns", sortedKeys(unmapped)),
			slog.Int("records", len(raw)))
	}
	for _, col := range sortedKeys(dropped) {
		n.logger.Warn("duplicate column mapping dropped",
			slog.String("column", col),
			slog.String("field", dropped[col]))
	}
	return out, nil
}

// slot tracks which column currently fills a canonical field.
type slot struct {
	column string
	value  any
	kind   MatchKind
}

func (n *Normalizer) normalizeOne(
	rec *domain.RawRecord,
	seq int,
	hints map[string]string,
	cache map[string]Resolution,
	unmapped map[string]bool,
	dropped map[string]string,
) domain.PartialRecord {
	p := domain.PartialRecord{Source: rec, Seq: seq}
	slots := make(map[string]*slot, len(domain.CanonicalFields))

	for _, f := range rec.Fields {
		res, ok := cache[f.Name]
		if !ok {
			res = n.resolver.Resolve(f.Name, hints)
			cache[f.Name] = res
		}
		if res.Kind == MatchNone {
			unmapped[f.Name] = true
			p.Unmapped = append(p.Unmapped, f.Name)
			continue
		}

		s := slots[res.Field]
		switch {
		case s == nil:
			slots[res.Field] = &slot{column: f.Name, value: f.Value, kind: res.Kind}
		case res.Kind < s.kind:
			// a stronger match displaces the earlier column
			dropped[s.column] = res.Field
			*s = slot{column: f.Name, value: f.Value, kind: res.Kind}
		default:
			dropped[f.Name] = res.Field
		}
	}

	for _, field := range domain.CanonicalFields {
		if slots[field] != nil {
			p.Present = append(p.Present, field)
		}
	}

	if s := slots[domain.FieldStudentID]; s != nil {
		p.StudentID = s.value
	}
	if s := slots[domain.FieldSubject]; s != nil {
		p.Subject = s.value
	} else {
		p.Subject = n.defaultSubject
	}
	if s := slots[domain.FieldMaxScore]; s != nil {
		p.MaxScore = s.value
	}
	if s := slots[domain.FieldTerm]; s != nil {
		p.Term = s.value
	}
	if s := slots[domain.FieldDate]; s != nil {
		p.Date = s.value
	}
	if s := slots[domain.FieldScore]; s != nil {
		sv := ConvertScore(s.value, n.grades)
		p.Score = sv.Score
		if sv.Max != nil {
			// the representation's own maximum wins over a max column
			p.MaxScore = *sv.Max
		}
		p.Failure = sv.Failure
	}
	return p
}

func normalizeHints(hints FieldHints) (map[string]string, error) {
	if len(hints) == 0 {
		return nil, nil
	}
	valid := make(map[string]bool, len(domain.CanonicalFields))
	for _, f := range domain.CanonicalFields {
		valid[f] = true
	}

	out := make(map[string]string, len(hints))
	for column, field := range hints {
		if !valid[field] {
			return nil, apperrors.NewInvalidArgumentError(
				fmt.Sprintf("hint for column %q names unknown field %q", column, field))
		}
		out[textmatch.NormalizeKey(column)] = field
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
