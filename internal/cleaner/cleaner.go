package cleaner

import (
	"fmt"
	"log/slog"
	"math"

	"scorelens/internal/config"
	apperrors "scorelens/internal/errors"
	"scorelens/pkg/contracts/domain"
)

// Result partitions the cleaner's input: every partial record ends up in
// exactly one of Valid or Rejected.
type Result struct {
	Valid      []domain.CanonicalRecord
	Rejected   []domain.Rejection
	Collisions int
}

// ByReason counts rejections per reason.
func (r Result) ByReason() map[domain.RejectReason]int {
	counts := make(map[domain.RejectReason]int)
	for _, rej := range r.Rejected {
		counts[rej.Reason]++
	}
	return counts
}

// Cleaner validates partial records and turns them into canonical ones.
type Cleaner struct {
	defaultMax float64
	logger     *slog.Logger
}

// NewCleaner creates a cleaner. A record without a max score gets cfg.DefaultMaxScore.
func NewCleaner(cfg config.AnalyticsConfig, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	defaultMax := cfg.DefaultMaxScore
	if defaultMax <= 0 {
		defaultMax = 100
	}
	return &Cleaner{
		defaultMax: defaultMax,
		logger:     logger.With(slog.String("component", "cleaner")),
	}
}

// rowError is a row-level failure; it never leaves this package as an error.
type rowError struct {
	reason domain.RejectReason
	field  string
	detail string
}

// Clean checks, in order, required fields, normalizer failures, type
// coercion and ranges. Records sharing (student, subject, term, date) are
// collapsed to the one parsed last; the earlier ones are rejected as
// duplicates. Scores are never clamped.
func (c *Cleaner) Clean(partial []domain.PartialRecord) (Result, error) {
	var res Result

	type kept struct {
		rec    domain.CanonicalRecord
		source *domain.RawRecord
		live   bool
	}
	valid := make([]kept, 0, len(partial))
	byKey := make(map[string]int)

	for i := range partial {
		p := &partial[i]
		if p.Source == nil {
			return Result{}, apperrors.NewInputShapeError(
				fmt.Sprintf("partial record %d has no source record", i), nil)
		}

		rec, rerr := c.cleanOne(p)
		if rerr != nil {
			res.Rejected = append(res.Rejected, domain.Rejection{
				Raw:    *p.Source,
				Reason: rerr.reason,
				Field:  rerr.field,
				Detail: rerr.detail,
			})
			continue
		}

		key := dedupKey(rec)
		if prev, dup := byKey[key]; dup {
			valid[prev].live = false
			res.Collisions++
			res.Rejected = append(res.Rejected, domain.Rejection{
				Raw:    *valid[prev].source,
				Reason: domain.ReasonDuplicate,
				Detail: fmt.Sprintf("superseded by record %d", rec.Seq),
			})
		}
		byKey[key] = len(valid)
		valid = append(valid, kept{rec: rec, source: p.Source, live: true})
	}

	res.Valid = make([]domain.CanonicalRecord, 0, len(valid)-res.Collisions)
	for _, k := range valid {
		if k.live {
			res.Valid = append(res.Valid, k.rec)
		}
	}

	if len(res.Rejected) > 0 {
		attrs := []any{
			slog.Int("input", len(partial)),
			slog.Int("valid", len(res.Valid)),
			slog.Int("rejected", len(res.Rejected)),
		}
		for reason, n := range res.ByReason() {
			attrs = append(attrs, slog.Int(string(reason), n))
		}
		c.logger.Info("records rejected during cleaning", attrs...)
	}
	return res, nil
}

func (c *Cleaner) cleanOne(p *domain.PartialRecord) (domain.CanonicalRecord, *rowError) {
	for _, req := range []struct {
		field string
		value any
	}{
		{domain.FieldStudentID, p.StudentID},
		{domain.FieldSubject, p.Subject},
		{domain.FieldScore, p.Score},
	} {
		if p.Failure != nil && p.Failure.Field == req.field {
			continue
		}
		if isBlank(req.value) {
			return domain.CanonicalRecord{}, &rowError{
				reason: domain.ReasonMissingField,
				field:  req.field,
				detail: fmt.Sprintf("%s is missing", req.field),
			}
		}
	}

	if p.Failure != nil {
		return domain.CanonicalRecord{}, &rowError{
			reason: p.Failure.Reason,
			field:  p.Failure.Field,
			detail: p.Failure.Detail,
		}
	}

	rec := domain.CanonicalRecord{Seq: p.Seq}
	var err error

	coercion := func(field string, e error) *rowError {
		return &rowError{reason: domain.ReasonTypeCoercion, field: field, detail: e.Error()}
	}

	if rec.StudentID, err = toText(p.StudentID); err != nil {
		return rec, coercion(domain.FieldStudentID, err)
	}
	if rec.Subject, err = toText(p.Subject); err != nil {
		return rec, coercion(domain.FieldSubject, err)
	}
	if rec.Score, err = toFloat(p.Score); err != nil {
		return rec, coercion(domain.FieldScore, err)
	}

	rec.MaxScore = c.defaultMax
	if !isBlank(p.MaxScore) {
		if rec.MaxScore, err = toFloat(p.MaxScore); err != nil {
			return rec, coercion(domain.FieldMaxScore, err)
		}
	}
	if !isBlank(p.Term) {
		if rec.Term, err = toText(p.Term); err != nil {
			return rec, coercion(domain.FieldTerm, err)
		}
	}
	if !isBlank(p.Date) {
		if rec.Date, err = toDate(p.Date); err != nil {
			return rec, coercion(domain.FieldDate, err)
		}
	}

	if rerr := checkRange(rec); rerr != nil {
		return rec, rerr
	}
	return rec, nil
}

func checkRange(rec domain.CanonicalRecord) *rowError {
	violation := func(field, format string, args ...any) *rowError {
		return &rowError{
			reason: domain.ReasonRangeViolation,
			field:  field,
			detail: fmt.Sprintf(format, args...),
		}
	}

	switch {
	case math.IsNaN(rec.Score) || math.IsInf(rec.Score, 0):
		return violation(domain.FieldScore, "score %v is not finite", rec.Score)
	case math.IsNaN(rec.MaxScore) || math.IsInf(rec.MaxScore, 0):
		return violation(domain.FieldMaxScore, "max score %v is not finite", rec.MaxScore)
	case rec.MaxScore <= 0:
		return violation(domain.FieldMaxScore, "max score %v must be positive", rec.MaxScore)
	case rec.Score < 0:
		return violation(domain.FieldScore, "score %v is negative", rec.Score)
	case rec.Score > rec.MaxScore:
		return violation(domain.FieldScore, "score %v exceeds max score %v", rec.Score, rec.MaxScore)
	}
	return nil
}

func dedupKey(rec domain.CanonicalRecord) string {
	date := ""
	if rec.Date != nil {
		date = rec.Date.Format("2006-01-02T15:04:05")
	}
	return rec.StudentID + "\x1f" + rec.Subject + "\x1f" + rec.Term + "\x1f" + date
}
