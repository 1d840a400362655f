package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Canonical field names produced by the schema normalizer.
const (
	FieldStudentID = "student_id"
	FieldSubject   = "subject"
	FieldScore     = "score"
	FieldMaxScore  = "max_score"
	FieldTerm      = "term"
	FieldDate      = "date"
)

// CanonicalFields lists every canonical field in a stable order.
var CanonicalFields = []string{
	FieldStudentID,
	FieldSubject,
	FieldScore,
	FieldMaxScore,
	FieldTerm,
	FieldDate,
}

// Origin identifies where a raw record came from.
type Origin struct {
	Source string `json:"source,omitempty"`
	Row    int    `json:"row,omitempty"`
}

// RawField is a single column/value pair as found in the source.
type RawField struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// RawRecord is an ordered mapping of source column names to scalar values.
// Column order is preserved because duplicate resolution depends on it.
type RawRecord struct {
	Fields []RawField `json:"fields"`
	Origin Origin     `json:"origin,omitempty"`
}

// NewRawRecord builds a record from alternating name/value pairs.
func NewRawRecord(pairs ...any) RawRecord {
	r := RawRecord{Fields: make([]RawField, 0, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		r.Fields = append(r.Fields, RawField{Name: name, Value: pairs[i+1]})
	}
	return r
}

// Set appends a field, replacing the value of an existing field with the same name.
func (r *RawRecord) Set(name string, value any) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			r.Fields[i].Value = value
			return
		}
	}
	r.Fields = append(r.Fields, RawField{Name: name, Value: value})
}

// Get returns the value stored under name.
func (r RawRecord) Get(name string) (any, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Len returns the number of fields.
func (r RawRecord) Len() int { return len(r.Fields) }

// IsScalar reports whether v is a value a RawRecord may hold.
func IsScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, time.Time, json.Number:
		return true
	}
	return false
}

// ShapeError reports a raw value that is not a scalar.
type ShapeError struct {
	Field string
	Value any
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("field %q holds a non-scalar value of type %T", e.Field, e.Value)
}

// MarshalJSON encodes the record as a JSON object keeping column order.
func (r RawRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object, keeping key order.
// Nested objects and arrays produce a *ShapeError.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return &ShapeError{Field: "", Value: tok}
	}

	fields := make([]RawField, 0, 8)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
			return &ShapeError{Field: key, Value: string(trimmed)}
		}

		var v any
		vdec := json.NewDecoder(bytes.NewReader(trimmed))
		vdec.UseNumber()
		if err := vdec.Decode(&v); err != nil {
			return err
		}
		if n, ok := v.(json.Number); ok {
			v = numberValue(n)
		}
		fields = append(fields, RawField{Name: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	r.Fields = fields
	return nil
}

// maxExactInt is the largest integer a float64 holds exactly.
const maxExactInt = 1 << 53

// numberValue converts a JSON number to float64 unless it is an integer
// float64 cannot hold exactly, such as a long numeric student id. Those are
// kept as their literal text.
func numberValue(n json.Number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil || i > maxExactInt || i < -maxExactInt {
			return s
		}
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return s
}

// PartialRecord is the normalizer's view of one raw record: canonical slots
// filled where a column resolved, with values already converted when the
// source format allowed it.
type PartialRecord struct {
	StudentID any        `json:"student_id,omitempty"`
	Subject   any        `json:"subject,omitempty"`
	Score     any        `json:"score,omitempty"`
	MaxScore  any        `json:"max_score,omitempty"`
	Term      any        `json:"term,omitempty"`
	Date      any        `json:"date,omitempty"`
	Present   []string   `json:"present,omitempty"`
	Unmapped  []string   `json:"unmapped,omitempty"`
	Failure   *Failure   `json:"failure,omitempty"`
	Source    *RawRecord `json:"-"`
	Seq       int        `json:"seq"`
}

// Has reports whether the canonical field was resolved from a source column.
func (p PartialRecord) Has(field string) bool {
	for _, f := range p.Present {
		if f == field {
			return true
		}
	}
	return false
}

// Failure is a row-level problem found before cleaning.
type Failure struct {
	Reason RejectReason `json:"reason"`
	Field  string       `json:"field,omitempty"`
	Detail string       `json:"detail"`
}

// CanonicalRecord is a validated, typed academic record.
// Invariant: StudentID and Subject are non-empty, MaxScore > 0 and
// 0 <= Score <= MaxScore.
type CanonicalRecord struct {
	StudentID string     `json:"student_id"`
	Subject   string     `json:"subject"`
	Score     float64    `json:"score"`
	MaxScore  float64    `json:"max_score"`
	Term      string     `json:"term,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	Seq       int        `json:"-"`
}

// Percent returns the score scaled to 0..100.
func (c CanonicalRecord) Percent() float64 {
	if c.MaxScore <= 0 {
		return 0
	}
	return c.Score / c.MaxScore * 100
}

// RejectReason classifies why a row did not become a CanonicalRecord.
type RejectReason string

const (
	ReasonTypeCoercion   RejectReason = "TypeCoercionError"
	ReasonRangeViolation RejectReason = "RangeViolation"
	ReasonMissingField   RejectReason = "MissingField"
	ReasonDuplicate      RejectReason = "DuplicateRecord"
)

// Rejection pairs a raw record with the reason it was dropped.
type Rejection struct {
	Raw    RawRecord    `json:"raw"`
	Reason RejectReason `json:"reason"`
	Field  string       `json:"field,omitempty"`
	Detail string       `json:"detail"`
}
