package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v2"

	"scorelens/pkg/contracts/domain"
)

// Tables is the reference data the normalizer, extractor and ingest layer
// consult. Nothing in it is hard-wired into the algorithms.
type Tables struct {
	// Grades maps a letter grade to a score out of 100.
	Grades map[string]float64 `yaml:"grades"`

	// Synonyms maps a canonical field to the column names that mean it.
	Synonyms map[string][]string `yaml:"synonyms"`

	// Lexicon maps a trait label to its indicator phrases.
	Lexicon map[string][]string `yaml:"lexicon"`

	// Ratings maps rating spellings, including common OCR misreads, to a
	// canonical rating.
	Ratings map[string]string `yaml:"ratings"`

	// Sections maps report-card section headers to a section kind.
	Sections map[string]string `yaml:"sections"`

	// MetadataLabels maps label text found above a score table or in OCR
	// text to a metadata key.
	MetadataLabels map[string]string `yaml:"metadata_labels"`

	KnownSubjects       []string `yaml:"known_subjects"`
	CoCurricularKeyword []string `yaml:"co_curricular_keywords"`
}

// Section kinds used in Tables.Sections.
const (
	SectionSubjects     = "subjects"
	SectionBehaviour    = "behaviour"
	SectionCoCurricular = "co_curricular"
)

// LoadTables reads a YAML tables file over the defaults. Maps merge key by
// key; lists in the file replace the default list.
func LoadTables(path string) (*Tables, error) {
	t := DefaultTables()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse tables file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the tables for entries the pipeline cannot use.
func (t *Tables) Validate() error {
	canonical := make(map[string]bool, len(domain.CanonicalFields))
	for _, f := range domain.CanonicalFields {
		canonical[f] = true
	}
	for field := range t.Synonyms {
		if !canonical[field] {
			return fmt.Errorf("synonyms: unknown canonical field %q", field)
		}
	}
	for grade, v := range t.Grades {
		if v < 0 || v > 100 {
			return fmt.Errorf("grades: %q maps to %v, want 0..100", grade, v)
		}
	}
	for label, phrases := range t.Lexicon {
		if len(phrases) == 0 {
			return fmt.Errorf("lexicon: trait %q has no phrases", label)
		}
	}
	for header, kind := range t.Sections {
		switch kind {
		case SectionSubjects, SectionBehaviour, SectionCoCurricular:
		default:
			return fmt.Errorf("sections: header %q has unknown kind %q", header, kind)
		}
	}
	return nil
}

// RatingLevels returns the distinct canonical ratings, sorted.
func (t *Tables) RatingLevels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.Ratings {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return out
}

// DefaultTables returns the built-in reference data.
func DefaultTables() *Tables {
	return &Tables{
		Grades: map[string]float64{
			"A+": 97, "A": 93, "A-": 90,
			"B+": 87, "B": 83, "B-": 80,
			"C+": 77, "C": 73, "C-": 70,
			"D+": 67, "D": 63, "D-": 60,
			"E": 55, "F": 40,
		},
		Synonyms: map[string][]string{
			domain.FieldStudentID: {
				"student id", "student", "student name", "name", "id",
				"pupil", "learner", "matric", "matric no", "admission no",
				"roll no", "index number",
			},
			domain.FieldSubject: {
				"subject", "subjects", "course", "course name", "label",
				"paper", "module", "discipline",
			},
			domain.FieldScore: {
				"score", "scores", "mark", "marks", "result", "grade",
				"percentage", "percent", "points", "total score", "exam score",
			},
			domain.FieldMaxScore: {
				"max score", "max", "maximum", "out of", "full marks",
				"total marks", "max marks", "possible",
			},
			domain.FieldTerm: {
				"term", "semester", "session", "period", "quarter",
			},
			domain.FieldDate: {
				"date", "exam date", "test date", "assessed on", "taken on",
			},
		},
		Lexicon: map[string][]string{
			"diligent": {
				"hardworking", "works hard", "diligent", "completes homework",
				"always prepared", "puts in effort",
			},
			"attentive": {
				"attentive", "pays attention", "focused in class", "listens carefully",
			},
			"participative": {
				"participates actively", "active participation", "contributes in class",
				"asks questions",
			},
			"collaborative": {
				"works well with others", "team player", "helps classmates",
				"cooperative",
			},
			"respectful": {
				"respectful", "polite", "well behaved", "courteous",
			},
			"punctual": {
				"punctual", "always on time", "never late",
			},
			"leadership": {
				"leadership", "class prefect", "takes initiative", "leads the group",
			},
			"creative": {
				"creative", "imaginative", "original ideas",
			},
			"disruptive": {
				"disruptive", "talks in class", "disturbs others", "distracts classmates",
			},
			"inattentive": {
				"easily distracted", "lacks focus", "daydreams",
			},
			"needs_improvement": {
				"needs improvement", "needs to improve", "must work harder",
				"can do better",
			},
		},
		Ratings: map[string]string{
			"excellent": "Excellent", "very good": "Very Good", "verygood": "Very Good",
			"good": "Good", "g00d": "Good", "g0od": "Good", "go0d": "Good",
			"satisfactory": "Good",
			"fair": "Fair", "average": "Fair", "avg": "Fair", "ok": "Fair",
			"okay": "Fair", "0k": "Fair",
			"poor": "Poor", "p00r": "Poor", "unsatisfactory": "Poor",
			"bad": "Bad", "b4d": "Bad", "b@d": "Bad",
		},
		Sections: map[string]string{
			"subjects":                 SectionSubjects,
			"academic performance":     SectionSubjects,
			"behaviour":                SectionBehaviour,
			"behavior":                 SectionBehaviour,
			"behaviour ratings":        SectionBehaviour,
			"conduct":                  SectionBehaviour,
			"co-curricular":            SectionCoCurricular,
			"co curricular":            SectionCoCurricular,
			"cocurricular":             SectionCoCurricular,
			"extra-curricular":         SectionCoCurricular,
			"co-curricular activities": SectionCoCurricular,
		},
		MetadataLabels: map[string]string{
			"name":         "name",
			"student name": "name",
			"gender":       "gender",
			"sex":          "gender",
			"state":        "state",
			"school":       "school",
			"school level": "school_level",
			"form":         "form",
			"class":        "class",
			"attendance":   "attendance",
			"nationality":  "nationality",
			"age":          "age",
		},
		KnownSubjects: []string{
			"mathematics", "math", "maths", "science", "physics", "chemistry",
			"biology", "history", "geography", "english", "language", "malay",
			"bahasa", "chinese", "mandarin", "tamil", "arabic",
			"physical education", "pe", "art", "music", "literature",
			"economics", "accounting", "business", "computer", "ict",
			"additional mathematics", "add math", "moral", "sejarah", "sains",
			"matematik",
		},
		CoCurricularKeyword: []string{
			"member", "club", "society", "team", "competition", "event",
			"activity", "activities", "award", "prize", "position", "role",
			"committee", "association",
		},
	}
}
