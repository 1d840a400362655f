package dataprocessing

import (
	"strings"

	"scorelens/internal/schema"
	"scorelens/pkg/contracts/domain"
)

// StudentColumn is the column added to records of a document that names its
// student outside the score table.
const StudentColumn = "Student Name"

// ParsedDocument is everything an ingest parser recovered from one file.
type ParsedDocument struct {
	Source      string             `json:"source"`
	Records     []domain.RawRecord `json:"records"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
	Narrative   string             `json:"narrative,omitempty"`
	Activities  []string           `json:"activities,omitempty"`
	StudentName string             `json:"student_name,omitempty"`
}

// ApplyStudent sets the student of every record that has no column naming
// one. It does nothing when name is blank.
func (d *ParsedDocument) ApplyStudent(name string, resolver *schema.Resolver) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	d.StudentName = name
	for i := range d.Records {
		if !hasStudentColumn(d.Records[i], resolver) {
			d.Records[i].Set(StudentColumn, name)
		}
	}
}

func hasStudentColumn(rec domain.RawRecord, resolver *schema.Resolver) bool {
	for _, f := range rec.Fields {
		if resolver.Resolve(f.Name, nil).Field == domain.FieldStudentID {
			return true
		}
	}
	return false
}

// Merge concatenates documents into one analysis input. Metadata is taken
// from the first document that has any.
func Merge(docs ...*ParsedDocument) *ParsedDocument {
	out := &ParsedDocument{}
	var sources, narrative []string
	for _, d := range docs {
		if d == nil {
			continue
		}
		sources = append(sources, d.Source)
		out.Records = append(out.Records, d.Records...)
		out.Activities = append(out.Activities, d.Activities...)
		if d.Narrative != "" {
			narrative = append(narrative, d.Narrative)
		}
		if out.Metadata == nil && len(d.Metadata) > 0 {
			out.Metadata = d.Metadata
		}
		if out.StudentName == "" {
			out.StudentName = d.StudentName
		}
	}
	out.Source = strings.Join(sources, ",")
	out.Narrative = strings.Join(narrative, "\n")
	return out
}
