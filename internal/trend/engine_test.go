package trend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorelens/internal/config"
	"scorelens/internal/shared/testutil"
	"scorelens/pkg/contracts/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewEngine(config.Default().Analytics, logger)
}

func history(scores ...float64) []domain.CanonicalRecord {
	out := make([]domain.CanonicalRecord, len(scores))
	for i, s := range scores {
		out[i] = domain.CanonicalRecord{StudentID: "s1", Subject: "Math", Score: s, MaxScore: 100, Seq: i}
	}
	return out
}

func day(d int) *time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
	return &t
}

func TestAnalyze_Rising(t *testing.T) {
	e := newTestEngine(t)
	res := e.Analyze(history(60, 70, 80))

	assert.Equal(t, domain.DirectionRising, res.Direction)
	assert.InDelta(t, 10.0, res.Slope, 1e-9)
	require.NotNil(t, res.PredictedNext)
	assert.InDelta(t, 90.0, *res.PredictedNext, 1e-9)
	assert.InDelta(t, 1.0, res.RSquared, 1e-9)
	assert.InDelta(t, 2.0/3, res.Confidence, 1e-9)
	assert.Equal(t, 3, res.Points)
	assert.Equal(t, "s1", res.StudentID)
	assert.Equal(t, "Math", res.Subject)
}

func TestAnalyze_Directions(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   domain.Direction
	}{
		{"falling", []float64{90, 80, 75, 60}, domain.DirectionFalling},
		{"constant", []float64{70, 70, 70}, domain.DirectionFlat},
		{"noise within epsilon", []float64{70, 70.005, 70.01}, domain.DirectionFlat},
		{"rising with noise", []float64{50, 65, 60, 80}, domain.DirectionRising},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestEngine(t).Analyze(history(tt.scores...))
			assert.Equal(t, tt.want, res.Direction)
			assert.GreaterOrEqual(t, res.Confidence, 0.0)
			assert.LessOrEqual(t, res.Confidence, 1.0)
		})
	}
}

func TestAnalyze_PredictionIsClamped(t *testing.T) {
	res := newTestEngine(t).Analyze(history(80, 90, 100))
	require.NotNil(t, res.PredictedNext)
	assert.Equal(t, 100.0, *res.PredictedNext)

	res = newTestEngine(t).Analyze(history(20, 10, 0))
	require.NotNil(t, res.PredictedNext)
	assert.Equal(t, 0.0, *res.PredictedNext)
}

func TestAnalyze_DegenerateHistories(t *testing.T) {
	e := newTestEngine(t)

	empty := e.Analyze(nil)
	assert.Equal(t, domain.DirectionFlat, empty.Direction)
	assert.Zero(t, empty.Confidence)
	assert.Nil(t, empty.PredictedNext)

	single := e.Analyze(history(73))
	assert.Equal(t, domain.DirectionFlat, single.Direction)
	assert.Zero(t, single.Confidence)
	require.NotNil(t, single.PredictedNext)
	assert.Equal(t, 73.0, *single.PredictedNext)
	assert.Equal(t, domain.MomentumUnknown, single.Momentum)
}

func TestAnalyze_ConfidenceGrowsWithPoints(t *testing.T) {
	e := newTestEngine(t)
	two := e.Analyze(history(60, 70))
	three := e.Analyze(history(60, 70, 80))
	four := e.Analyze(history(60, 70, 80, 90))

	assert.Less(t, two.Confidence, three.Confidence)
	assert.Less(t, three.Confidence, four.Confidence)

	noisy := e.Analyze(history(60, 80, 70, 90))
	assert.Less(t, noisy.Confidence, four.Confidence)
}

func TestAnalyze_RescalesToLastMax(t *testing.T) {
	h := []domain.CanonicalRecord{
		{StudentID: "s1", Subject: "Math", Score: 15, MaxScore: 20, Seq: 0},
		{StudentID: "s1", Subject: "Math", Score: 40, MaxScore: 50, Seq: 1},
	}
	res := newTestEngine(t).Analyze(h)
	assert.Equal(t, 50.0, res.MaxScore)
	assert.InDelta(t, 2.5, res.Slope, 1e-9)
	require.NotNil(t, res.PredictedNext)
	assert.InDelta(t, 42.5, *res.PredictedNext, 1e-9)
}

func TestAnalyze_UsesDates(t *testing.T) {
	h := history(40, 50, 70)
	h[0].Date = day(0)
	h[1].Date = day(10)
	h[2].Date = day(30)

	// reversed input order must not matter
	h[0], h[2] = h[2], h[0]

	res := newTestEngine(t).Analyze(h)
	assert.Equal(t, domain.DirectionRising, res.Direction)
	assert.InDelta(t, 1.0, res.RSquared, 1e-9)
	require.NotNil(t, res.PredictedNext)
	assert.InDelta(t, 85.0, *res.PredictedNext, 1e-9)
}

func TestAnalyze_Momentum(t *testing.T) {
	e := newTestEngine(t)

	res := e.Analyze(history(60, 70, 80, 90))
	assert.Equal(t, domain.MomentumAbove, res.Momentum)
	require.NotNil(t, res.RecentAverage)
	assert.InDelta(t, 80.0, *res.RecentAverage, 1e-9)

	res = e.Analyze(history(90, 80, 70, 60))
	assert.Equal(t, domain.MomentumBelow, res.Momentum)

	res = e.Analyze(history(70, 70, 70))
	assert.Equal(t, domain.MomentumConsistent, res.Momentum)

	res = e.Analyze(history(60, 70))
	assert.Equal(t, domain.MomentumUnknown, res.Momentum)
	assert.Nil(t, res.RecentAverage)
}

func TestAnalyzeAll(t *testing.T) {
	records := []domain.CanonicalRecord{
		{StudentID: "s2", Subject: "Math", Score: 50, MaxScore: 100, Term: "Term 10", Seq: 0},
		{StudentID: "s1", Subject: "Math", Score: 60, MaxScore: 100, Seq: 1},
		{StudentID: "s2", Subject: "Math", Score: 70, MaxScore: 100, Term: "Term 2", Seq: 2},
		{StudentID: "s1", Subject: "Art", Score: 90, MaxScore: 100, Seq: 3},
		{StudentID: "s1", Subject: "Math", Score: 70, MaxScore: 100, Seq: 4},
	}

	results, err := newTestEngine(t).AnalyzeAll(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "s1", results[0].StudentID)
	assert.Equal(t, "Art", results[0].Subject)
	assert.Equal(t, "Math", results[1].Subject)
	assert.Equal(t, domain.DirectionRising, results[1].Direction)

	// Term 2 precedes Term 10, so s2 is falling
	assert.Equal(t, "s2", results[2].StudentID)
	assert.Equal(t, domain.DirectionFalling, results[2].Direction)
}

func TestAnalyzeAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine(t).AnalyzeAll(ctx, history(1, 2, 3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTermLess(t *testing.T) {
	assert.True(t, termLess("Term 2", "Term 10"))
	assert.False(t, termLess("Term 10", "Term 2"))
	assert.True(t, termLess("", "T1"))
	assert.True(t, termLess("Autumn", "spring"))
}

func TestAnalyze_PartialDatesOrderIsInputIndependent(t *testing.T) {
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := domain.CanonicalRecord{StudentID: "s1", Subject: "Math", Score: 90, MaxScore: 100, Term: "Term 1", Date: &feb, Seq: 0}
	b := domain.CanonicalRecord{StudentID: "s1", Subject: "Math", Score: 60, MaxScore: 100, Term: "Term 2", Seq: 1}
	c := domain.CanonicalRecord{StudentID: "s1", Subject: "Math", Score: 75, MaxScore: 100, Term: "Term 3", Date: &jan, Seq: 2}

	orders := [][]domain.CanonicalRecord{
		{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}

	e := newTestEngine(t)
	want := e.Analyze(append([]domain.CanonicalRecord(nil), orders[0]...))
	for _, in := range orders[1:] {
		got := e.Analyze(append([]domain.CanonicalRecord(nil), in...))
		assert.Equal(t, want.Direction, got.Direction)
		assert.InDelta(t, want.Slope, got.Slope, 1e-9)
		require.NotNil(t, got.PredictedNext)
		assert.InDelta(t, *want.PredictedNext, *got.PredictedNext, 1e-9)
	}
	// without a date on every record the terms decide: 90, 60, 75
	assert.InDelta(t, -7.5, want.Slope, 1e-9)
}

func TestTermLess_TotalOrder(t *testing.T) {
	terms := []string{"Term 1a", "Term 2", "Term 10", "term 2", "Spring", "", "T1"}
	for _, x := range terms {
		assert.False(t, termLess(x, x), x)
		for _, y := range terms {
			if x != y {
				assert.NotEqual(t, termLess(x, y), termLess(y, x), "%q vs %q", x, y)
			}
			for _, z := range terms {
				if termLess(x, y) && termLess(y, z) {
					assert.True(t, termLess(x, z), "%q < %q < %q", x, y, z)
				}
			}
		}
	}
}
