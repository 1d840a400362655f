package domain

import (
	"encoding/json"
	"math"
	"time"
)

// StatisticsSummary describes one group of scores.
// An empty group has Count 0 and NaN in every numeric field; NaN is
// encoded as JSON null.
type StatisticsSummary struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Median  float64 `json:"median"`
	StdDev  float64 `json:"std_dev"`
	Count   int     `json:"count"`
}

// EmptySummary returns the sentinel summary for a group without data.
func EmptySummary() StatisticsSummary {
	nan := math.NaN()
	return StatisticsSummary{Average: nan, Min: nan, Max: nan, Median: nan, StdDev: nan}
}

// IsEmpty reports whether the summary was computed from no data.
func (s StatisticsSummary) IsEmpty() bool { return s.Count == 0 }

// MarshalJSON writes NaN fields as null.
func (s StatisticsSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Average *float64 `json:"average"`
		Min     *float64 `json:"min"`
		Max     *float64 `json:"max"`
		Median  *float64 `json:"median"`
		StdDev  *float64 `json:"std_dev"`
		Count   int      `json:"count"`
	}{
		Average: finite(s.Average),
		Min:     finite(s.Min),
		Max:     finite(s.Max),
		Median:  finite(s.Median),
		StdDev:  finite(s.StdDev),
		Count:   s.Count,
	})
}

// UnmarshalJSON reads null fields back as NaN.
func (s *StatisticsSummary) UnmarshalJSON(data []byte) error {
	var aux struct {
		Average *float64 `json:"average"`
		Min     *float64 `json:"min"`
		Max     *float64 `json:"max"`
		Median  *float64 `json:"median"`
		StdDev  *float64 `json:"std_dev"`
		Count   int      `json:"count"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Average = orNaN(aux.Average)
	s.Min = orNaN(aux.Min)
	s.Max = orNaN(aux.Max)
	s.Median = orNaN(aux.Median)
	s.StdDev = orNaN(aux.StdDev)
	s.Count = aux.Count
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// RankedEntry is one row of a top-N ranking.
type RankedEntry struct {
	Key     string            `json:"key"`
	Value   float64           `json:"value"`
	Summary StatisticsSummary `json:"summary"`
}

// Direction of a score trend.
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionFlat    Direction = "flat"
)

// Momentum compares the most recent scores against the whole history.
type Momentum string

const (
	MomentumAbove      Momentum = "above"
	MomentumBelow      Momentum = "below"
	MomentumConsistent Momentum = "consistent"
	MomentumUnknown    Momentum = "insufficient_data"
)

// TrendResult is the fitted trend of one (student, subject) history.
type TrendResult struct {
	StudentID     string    `json:"student_id"`
	Subject       string    `json:"subject"`
	Direction     Direction `json:"direction"`
	Slope         float64   `json:"slope"`
	PredictedNext *float64  `json:"predicted_next"`
	Confidence    float64   `json:"confidence"`
	RSquared      float64   `json:"r_squared"`
	Points        int       `json:"points"`
	MaxScore      float64   `json:"max_score,omitempty"`
	RecentAverage *float64  `json:"recent_average,omitempty"`
	Momentum      Momentum  `json:"momentum"`
}

// BehaviorTrait is a trait label found in narrative text.
// EvidenceSpan is always an exact substring of the analysed text.
type BehaviorTrait struct {
	Label        string  `json:"trait_label"`
	EvidenceSpan string  `json:"evidence_span"`
	Confidence   float64 `json:"confidence"`
	Offset       int     `json:"offset"`
}

// RatingPair is an attribute rated on a report card, e.g. "Punctuality: Good".
type RatingPair struct {
	Attribute string `json:"attribute"`
	Rating    string `json:"rating"`
	Line      int    `json:"line"`
}

// SubjectScore is a subject with its average percentage for a student.
type SubjectScore struct {
	Subject string  `json:"subject"`
	Average float64 `json:"average"`
}

// StudentProfile aggregates one student's records for a single run.
type StudentProfile struct {
	StudentID  string                       `json:"student_id"`
	Metadata   map[string]string            `json:"metadata,omitempty"`
	Overall    StatisticsSummary            `json:"overall"`
	Subjects   map[string]StatisticsSummary `json:"subjects"`
	Top        []RankedEntry                `json:"top_subjects"`
	Strength   *SubjectScore                `json:"strength,omitempty"`
	Weakness   *SubjectScore                `json:"weakness,omitempty"`
	Trends     []TrendResult                `json:"trends"`
	Traits     []BehaviorTrait              `json:"traits,omitempty"`
	Ratings    []RatingPair                 `json:"ratings,omitempty"`
	Activities []string                     `json:"activities,omitempty"`
	Records    []CanonicalRecord            `json:"records"`
}

// QualityReport accounts for every input row of a run.
type QualityReport struct {
	RowsIn     int                  `json:"rows_in"`
	Valid      int                  `json:"valid"`
	Rejected   int                  `json:"rejected"`
	ByReason   map[RejectReason]int `json:"by_reason"`
	Duplicates int                  `json:"duplicates"`
	Unmapped   []string             `json:"unmapped_columns,omitempty"`
}

// AnalyticsReport is the complete output of one pipeline run.
type AnalyticsReport struct {
	RunID       string                       `json:"run_id"`
	GeneratedAt time.Time                    `json:"generated_at"`
	GroupBy     string                       `json:"group_by"`
	Metric      string                       `json:"metric"`
	Statistics  map[string]StatisticsSummary `json:"statistics"`
	TopN        []RankedEntry                `json:"top_n"`
	Trends      []TrendResult                `json:"trends"`
	Traits      []BehaviorTrait              `json:"traits"`
	Ratings     []RatingPair                 `json:"ratings,omitempty"`
	Profiles    []StudentProfile             `json:"profiles"`
	Valid       []CanonicalRecord            `json:"valid"`
	Rejected    []Rejection                  `json:"rejected"`
	Quality     QualityReport                `json:"quality"`
}
