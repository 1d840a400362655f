package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"scorelens/pkg/contracts/domain"
)

var (
	percentRe  = regexp.MustCompile(`^([+-]?\d+(?:\.\d+)?)\s*%$`)
	fractionRe = regexp.MustCompile(`(?i)^([+-]?\d+(?:\.\d+)?)\s*(?:/|of|out\s+of)\s*(\d+(?:\.\d+)?)$`)
	numericRe  = regexp.MustCompile(`^[+-]?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?$`)
	gradeRe    = regexp.MustCompile(`^[A-Za-z][0-9]?[+-]?$`)
)

// ScoreValue is a converted score cell.
type ScoreValue struct {
	// Score keeps the raw cell when Failure is set.
	Score any
	// Max is set when the representation itself carries the maximum.
	Max     *float64
	Failure *domain.Failure
}

// ConvertScore interprets a raw score cell. Plain numeric strings are
// returned unchanged for the cleaner to coerce.
func ConvertScore(v any, grades map[string]float64) ScoreValue {
	switch x := v.(type) {
	case nil:
		return ScoreValue{}
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return ScoreValue{Score: x}
	case json.Number:
		return ScoreValue{Score: x.String()}
	case string:
		return convertScoreString(x, grades)
	default:
		return ScoreValue{Score: v, Failure: &domain.Failure{
			Reason: domain.ReasonTypeCoercion,
			Field:  domain.FieldScore,
			Detail: fmt.Sprintf("score of type %T is not a number", v),
		}}
	}
}

func convertScoreString(s string, grades map[string]float64) ScoreValue {
	s = strings.TrimSpace(s)
	if s == "" {
		return ScoreValue{}
	}

	if m := percentRe.FindStringSubmatch(s); m != nil {
		hundred := 100.0
		return ScoreValue{Score: parseFloat(m[1]), Max: &hundred}
	}
	if m := fractionRe.FindStringSubmatch(s); m != nil {
		max := parseFloat(m[2])
		return ScoreValue{Score: parseFloat(m[1]), Max: &max}
	}
	if numericRe.MatchString(s) {
		return ScoreValue{Score: s}
	}
	if g, ok := lookupGrade(s, grades); ok {
		hundred := 100.0
		return ScoreValue{Score: g, Max: &hundred}
	}

	detail := fmt.Sprintf("unrecognized score format %q", s)
	switch {
	case gradeRe.MatchString(s):
		detail = fmt.Sprintf("grade %q is not in the grade table", s)
	case strings.IndexFunc(s, unicode.IsDigit) >= 0:
		detail = fmt.Sprintf("ambiguous score %q mixes digits and symbols", s)
	}
	return ScoreValue{Score: s, Failure: &domain.Failure{
		Reason: domain.ReasonTypeCoercion,
		Field:  domain.FieldScore,
		Detail: detail,
	}}
}

func lookupGrade(s string, grades map[string]float64) (float64, bool) {
	if g, ok := grades[s]; ok {
		return g, true
	}
	g, ok := grades[strings.ToUpper(s)]
	return g, ok
}

// parseFloat is only called on strings already matched by a numeric pattern.
func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
