// Package api contains the HTTP contract of the scorelens analytics API.
// Version v1 is the current stable API version.
package api

import (
	"scorelens/pkg/contracts/domain"
)

// AnalyzeOptions selects how statistics are grouped and ranked.
type AnalyzeOptions struct {
	GroupBy    string            `json:"group_by,omitempty" validate:"omitempty,oneof=none subject student term student_subject"`
	Metric     string            `json:"metric,omitempty" validate:"omitempty,oneof=average max count"`
	TopN       int               `json:"top_n,omitempty" validate:"omitempty,min=1,max=100"`
	FieldHints map[string]string `json:"field_hints,omitempty" validate:"omitempty,dive,keys,required,endkeys,oneof=student_id subject score max_score term date"`
	Narrative  string            `json:"narrative,omitempty" validate:"omitempty,max=200000"`
}

// AnalyzeRequest carries raw records and options for one run.
type AnalyzeRequest struct {
	Records []domain.RawRecord `json:"records" validate:"required,min=1"`
	Source  string             `json:"source,omitempty" validate:"omitempty,max=256"`
	AnalyzeOptions
}

// TraitsRequest asks for behavioral traits in free text.
type TraitsRequest struct {
	Text string `json:"text" validate:"required,max=200000"`
}

// TraitsResponse lists traits and attribute ratings found in the text.
type TraitsResponse struct {
	Traits  []domain.BehaviorTrait `json:"traits"`
	Ratings []domain.RatingPair    `json:"ratings"`
	Grouped map[string][]string    `json:"grouped_ratings"`
}

// AnalyzeResponse wraps a report with the files written for it, if any.
type AnalyzeResponse struct {
	Report *domain.AnalyticsReport `json:"report"`
	Files  []string                `json:"files,omitempty"`
}
