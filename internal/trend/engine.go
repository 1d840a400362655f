package trend

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"scorelens/internal/config"
	"scorelens/pkg/contracts/domain"
)

// Engine computes trends. It holds configuration only and is safe for
// concurrent use.
type Engine struct {
	epsilon float64
	window  int
	workers int
	logger  *slog.Logger
}

// NewEngine creates a trend engine from the analytics configuration.
func NewEngine(cfg config.AnalyticsConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	window := cfg.MomentumWindow
	if window <= 0 {
		window = 3
	}
	return &Engine{
		epsilon: math.Abs(cfg.TrendEpsilon),
		window:  window,
		workers: cfg.Workers,
		logger:  logger.With(slog.String("component", "trend")),
	}
}

// Analyze fits the history of a single (student, subject) pair. The input is
// not modified. Histories with fewer than two points are flat with zero
// confidence.
func (e *Engine) Analyze(history []domain.CanonicalRecord) domain.TrendResult {
	points := make([]domain.CanonicalRecord, len(history))
	copy(points, history)
	sortHistory(points)

	res := domain.TrendResult{
		Direction: domain.DirectionFlat,
		Momentum:  domain.MomentumUnknown,
		Points:    len(points),
	}
	if len(points) == 0 {
		return res
	}

	last := points[len(points)-1]
	res.StudentID = last.StudentID
	res.Subject = last.Subject
	res.MaxScore = last.MaxScore

	// every score on the scale of the most recent assessment
	ys := make([]float64, len(points))
	for i, p := range points {
		ys[i] = p.Score / p.MaxScore * last.MaxScore
	}

	if len(points) < 2 {
		next := ys[0]
		res.PredictedNext = &next
		return res
	}

	xs, nextX := positions(points)
	line := ols(xs, ys)

	res.Slope = line.slope
	res.RSquared = line.r2
	switch {
	case line.slope > e.epsilon:
		res.Direction = domain.DirectionRising
	case line.slope < -e.epsilon:
		res.Direction = domain.DirectionFalling
	}

	next := clamp(line.intercept+line.slope*nextX, 0, last.MaxScore)
	res.PredictedNext = &next

	n := float64(len(points))
	res.Confidence = clamp(line.r2*(1-1/n), 0, 1)

	e.momentum(&res, ys)
	return res
}

func (e *Engine) momentum(res *domain.TrendResult, ys []float64) {
	if len(ys) < e.window {
		return
	}
	recent := stat.Mean(ys[len(ys)-e.window:], nil)
	res.RecentAverage = &recent

	overall := stat.Mean(ys, nil)
	switch {
	case recent-overall > e.epsilon:
		res.Momentum = domain.MomentumAbove
	case overall-recent > e.epsilon:
		res.Momentum = domain.MomentumBelow
	default:
		res.Momentum = domain.MomentumConsistent
	}
}

// AnalyzeAll groups records by (student, subject) and analyzes every group
// with at most the configured number of workers. Results are ordered by
// student, then subject.
func (e *Engine) AnalyzeAll(ctx context.Context, records []domain.CanonicalRecord) ([]domain.TrendResult, error) {
	type key struct{ student, subject string }

	groups := make(map[key][]domain.CanonicalRecord)
	for _, rec := range records {
		k := key{rec.StudentID, rec.Subject}
		groups[k] = append(groups[k], rec)
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].student != keys[j].student {
			return keys[i].student < keys[j].student
		}
		return keys[i].subject < keys[j].subject
	})

	start := time.Now()
	results := make([]domain.TrendResult, len(keys))

	eg, ctx := errgroup.WithContext(ctx)
	if e.workers > 0 {
		eg.SetLimit(e.workers)
	}
	for i, k := range keys {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = e.Analyze(groups[k])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "trends analyzed",
		slog.Int("groups", len(results)),
		slog.Duration("duration", time.Since(start)),
	)
	return results, nil
}

// positions returns the x coordinate of each point and of the next one.
// Dated histories with distinct dates use elapsed time rescaled to a mean
// step of one; anything else uses the sequence index.
func positions(points []domain.CanonicalRecord) ([]float64, float64) {
	n := len(points)
	xs := make([]float64, n)

	if distinctDates(points) {
		first := *points[0].Date
		span := points[n-1].Date.Sub(first).Hours()
		step := span / float64(n-1)
		for i, p := range points {
			xs[i] = p.Date.Sub(first).Hours() / step
		}
		return xs, xs[n-1] + 1
	}

	for i := range xs {
		xs[i] = float64(i)
	}
	return xs, float64(n)
}

func distinctDates(points []domain.CanonicalRecord) bool {
	seen := make(map[int64]bool, len(points))
	for _, p := range points {
		if p.Date == nil {
			return false
		}
		u := p.Date.Unix()
		if seen[u] {
			return false
		}
		seen[u] = true
	}
	return true
}

type fit struct {
	slope, intercept, r2 float64
}

func ols(xs, ys []float64) fit {
	if stat.Variance(xs, nil) == 0 {
		return fit{intercept: stat.Mean(ys, nil)}
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	// a constant series is fitted exactly by the flat line
	r2 := 1.0
	if stat.Variance(ys, nil) > 0 {
		r2 = stat.RSquared(xs, ys, nil, intercept, slope)
	}
	return fit{slope: slope, intercept: intercept, r2: clamp(r2, 0, 1)}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
