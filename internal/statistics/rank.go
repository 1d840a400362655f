package statistics

import (
	"fmt"
	"sort"

	apperrors "scorelens/internal/errors"
	"scorelens/pkg/contracts/domain"
)

// Metric is the summary value groups are ranked by.
type Metric string

const (
	MetricAverage Metric = "average"
	MetricMax     Metric = "max"
	MetricCount   Metric = "count"
)

// ParseMetric maps a user supplied name to a Metric. Empty means average.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case "":
		return MetricAverage, nil
	case MetricAverage, MetricMax, MetricCount:
		return m, nil
	}
	return "", apperrors.NewInvalidArgumentError(fmt.Sprintf("unknown metric %q", s))
}

func (m Metric) value(s domain.StatisticsSummary) (float64, error) {
	switch m {
	case MetricAverage:
		return s.Average, nil
	case MetricMax:
		return s.Max, nil
	case MetricCount:
		return float64(s.Count), nil
	}
	return 0, apperrors.NewInvalidArgumentError(fmt.Sprintf("unknown metric %q", string(m)))
}

// Rank returns the n strongest groups by metric, highest first. Ties are
// broken by key ascending. Empty groups are ranked only by count, where
// their value is 0; average and max are undefined for them.
func Rank(summaries map[string]domain.StatisticsSummary, n int, metric Metric) ([]domain.RankedEntry, error) {
	return rank(summaries, n, metric, true)
}

// Bottom returns the n weakest groups by metric, lowest first, with the same
// tie-breaking as Rank.
func Bottom(summaries map[string]domain.StatisticsSummary, n int, metric Metric) ([]domain.RankedEntry, error) {
	return rank(summaries, n, metric, false)
}

func rank(summaries map[string]domain.StatisticsSummary, n int, metric Metric, desc bool) ([]domain.RankedEntry, error) {
	if n <= 0 {
		return nil, apperrors.NewInvalidArgumentError(fmt.Sprintf("n must be at least 1, got %d", n))
	}

	if _, err := metric.value(domain.StatisticsSummary{}); err != nil {
		return nil, err
	}

	entries := make([]domain.RankedEntry, 0, len(summaries))
	for key, s := range summaries {
		if s.IsEmpty() && metric != MetricCount {
			continue
		}
		v, _ := metric.value(s)
		entries = append(entries, domain.RankedEntry{Key: key, Value: v, Summary: s})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Value != b.Value {
			if desc {
				return a.Value > b.Value
			}
			return a.Value < b.Value
		}
		return a.Key < b.Key
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}
