package statistics

import (
	"context"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	apperrors "scorelens/internal/errors"
	"scorelens/pkg/contracts/domain"
)

// GroupBy selects the key records are grouped under.
type GroupBy string

const (
	GroupNone           GroupBy = "none"
	GroupSubject        GroupBy = "subject"
	GroupStudent        GroupBy = "student"
	GroupTerm           GroupBy = "term"
	GroupStudentSubject GroupBy = "student_subject"
)

// AllKey is the single group key used by GroupNone.
const AllKey = "all"

// NoTermKey groups records without a term under GroupTerm.
const NoTermKey = "unspecified"

// ParseGroupBy maps a user supplied name to a GroupBy. Empty means subject.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(s); g {
	case "":
		return GroupSubject, nil
	case GroupNone, GroupSubject, GroupStudent, GroupTerm, GroupStudentSubject:
		return g, nil
	}
	return "", apperrors.NewInvalidArgumentError(fmt.Sprintf("unknown group_by %q", s))
}

// KeyOf returns the group key of rec under g.
func KeyOf(rec domain.CanonicalRecord, g GroupBy) string {
	switch g {
	case GroupSubject:
		return rec.Subject
	case GroupStudent:
		return rec.StudentID
	case GroupTerm:
		if rec.Term == "" {
			return NoTermKey
		}
		return rec.Term
	case GroupStudentSubject:
		return rec.StudentID + "/" + rec.Subject
	default:
		return AllKey
	}
}

// Options tune Summarize.
type Options struct {
	// IncludeKeys are reported even when no record falls into them, as the
	// empty-group sentinel.
	IncludeKeys []string
}

// Summarize groups records and summarizes each group. An empty input yields
// an empty map.
func Summarize(records []domain.CanonicalRecord, g GroupBy, opts ...Options) map[string]domain.StatisticsSummary {
	groups := group(records, g)
	out := make(map[string]domain.StatisticsSummary, len(groups))
	for key, values := range groups {
		out[key] = Describe(values)
	}
	addEmpty(out, opts)
	return out
}

// SummarizeParallel is Summarize with groups summarized concurrently by at
// most workers goroutines. It stops early when ctx is cancelled.
func SummarizeParallel(ctx context.Context, records []domain.CanonicalRecord, g GroupBy, workers int, opts ...Options) (map[string]domain.StatisticsSummary, error) {
	groups := group(records, g)
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	results := make([]domain.StatisticsSummary, len(keys))

	eg, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		eg.SetLimit(workers)
	}
	for i, key := range keys {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Describe(groups[key])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]domain.StatisticsSummary, len(keys))
	for i, key := range keys {
		out[key] = results[i]
	}
	addEmpty(out, opts)
	return out, nil
}

func group(records []domain.CanonicalRecord, g GroupBy) map[string][]float64 {
	groups := make(map[string][]float64)
	for _, rec := range records {
		key := KeyOf(rec, g)
		groups[key] = append(groups[key], rec.Percent())
	}
	return groups
}

func addEmpty(out map[string]domain.StatisticsSummary, opts []Options) {
	for _, o := range opts {
		for _, key := range o.IncludeKeys {
			if _, ok := out[key]; !ok {
				out[key] = domain.EmptySummary()
			}
		}
	}
}

// Describe summarizes a set of values. It does not modify values.
func Describe(values []float64) domain.StatisticsSummary {
	n := len(values)
	if n == 0 {
		return domain.EmptySummary()
	}

	// sorting first makes every sum below independent of input order
	sorted := make(stats.Float64Data, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	mean, _ := stats.Mean(sorted)
	median, _ := stats.Median(sorted)

	var stddev float64
	if n > 1 {
		stddev, _ = stats.StandardDeviationSample(sorted)
	}

	return domain.StatisticsSummary{
		Average: mean,
		Min:     sorted[0],
		Max:     sorted[n-1],
		Median:  median,
		StdDev:  stddev,
		Count:   n,
	}
}
