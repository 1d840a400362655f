package dataprocessing

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"scorelens/internal/config"
	"scorelens/internal/shared/textmatch"
	"scorelens/pkg/contracts/domain"
)

// Columns of records recovered from report-card text.
const (
	textSubjectColumn = "Subject"
	textScoreColumn   = "Score"
	textMaxColumn     = "Max Score"
)

var (
	// "Mathematics: 74 / 100", "Science 74 of 100", "English - 60 out of 80"
	fractionLineRe = regexp.MustCompile(`(?i)^(.*?[\p{L}].*?)[\s:\-]+(\d{1,3}(?:\.\d+)?)\s*(?:/|\bout\s+of\b|\bof\b)\s*(\d{1,4}(?:\.\d+)?)\b`)

	// "History 74", "Art: 88%"
	simpleLineRe = regexp.MustCompile(`^(.*?[\p{L}].*?)[\s:\-]+(\d{1,3}(?:\.\d+)?\s*%?)\s*$`)

	// "Name: Arif Bin Hassan", "Gender - Male"
	labelValueRe = regexp.MustCompile(`^([\p{L}][\p{L} ]*?)\s*[:\-]\s*(.+)$`)

	trailingNoiseRe = regexp.MustCompile(`(?i)[\s:\-]*\b(score|scores|marks?|result)\b[\s:\-]*$`)
)

type scoreLine struct {
	label, score, max string
}

// parseLines reads report-card text, typically OCR output, one line at a
// time. Section headers switch between subject, behaviour and co-curricular
// content. A label whose score landed on the next line is joined with it.
// Lines that carry no score are kept as narrative.
func (p *Parser) parseLines(source string, lines []string) *ParsedDocument {
	doc := &ParsedDocument{Source: source, Metadata: make(map[string]string)}
	labels := p.metadataLabelsByLength()

	section := config.SectionSubjects
	var narrative []string

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if kind, ok := p.sectionKind(line); ok {
			section = kind
			continue
		}
		if key, value, ok := p.metadataLine(line, labels); ok {
			doc.Metadata[key] = value
			continue
		}
		if section != config.SectionSubjects {
			if section == config.SectionCoCurricular {
				doc.Activities = append(doc.Activities, p.activities(line, section)...)
			}
			narrative = append(narrative, line)
			continue
		}

		row := i + 1
		sl, ok := p.matchScoreLine(line)
		if !ok && i+1 < len(lines) {
			// only a bare score may continue a label line
			next := strings.TrimSpace(lines[i+1])
			if next != "" && unicode.IsDigit(rune(next[0])) {
				if sl, ok = p.matchScoreLine(line + " " + next); ok {
					i++
				}
			}
		}
		if !ok {
			doc.Activities = append(doc.Activities, p.activities(line, section)...)
			narrative = append(narrative, line)
			continue
		}

		rec := domain.RawRecord{Origin: domain.Origin{Source: source, Row: row}}
		rec.Set(textSubjectColumn, sl.label)
		rec.Set(textScoreColumn, sl.score)
		if sl.max != "" {
			rec.Set(textMaxColumn, sl.max)
		}
		doc.Records = append(doc.Records, rec)
	}

	doc.Narrative = strings.Join(narrative, "\n")
	if len(doc.Metadata) == 0 {
		doc.Metadata = nil
	}
	doc.ApplyStudent(doc.Metadata["name"], p.resolver)
	return doc
}

// matchScoreLine finds a subject label followed by a score. Labels that
// cannot name a subject, such as "Total Attendance 180" or "Chess Club 2", are
// not scores.
func (p *Parser) matchScoreLine(line string) (scoreLine, bool) {
	if m := fractionLineRe.FindStringSubmatch(line); m != nil {
		if label := cleanLabel(m[1]); label != "" && p.isSubjectLabel(label) {
			return scoreLine{label: label, score: m[2], max: m[3]}, true
		}
	}
	if m := simpleLineRe.FindStringSubmatch(line); m != nil {
		if label := cleanLabel(m[1]); label != "" && p.isSubjectLabel(label) {
			return scoreLine{label: label, score: strings.ReplaceAll(m[2], " ", "")}, true
		}
	}
	return scoreLine{}, false
}

func cleanLabel(s string) string {
	s = trailingNoiseRe.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t:-|")
	return strings.Join(strings.Fields(s), " ")
}

// metadataLine recognises "Label: value", "Label - value" and "Label value"
// lines whose label is a known metadata label.
func (p *Parser) metadataLine(line string, labels []string) (string, string, bool) {
	if m := labelValueRe.FindStringSubmatch(line); m != nil {
		if key, ok := p.metadataKey(m[1]); ok {
			return key, strings.TrimSpace(m[2]), true
		}
	}

	norm := textmatch.NormalizeKey(line)
	for _, label := range labels {
		if rest, found := strings.CutPrefix(norm, label+" "); found && rest != "" {
			// keep the original casing of the value
			words := strings.Fields(line)
			n := len(strings.Fields(label))
			if n >= len(words) {
				continue
			}
			return p.metadata[label], strings.Join(words[n:], " "), true
		}
	}
	return "", "", false
}

// metadataLabelsByLength lists metadata labels longest first so that
// "student name" wins over "name".
func (p *Parser) metadataLabelsByLength() []string {
	labels := make([]string, 0, len(p.metadata))
	for l := range p.metadata {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if len(labels[i]) != len(labels[j]) {
			return len(labels[i]) > len(labels[j])
		}
		return labels[i] < labels[j]
	})
	return labels
}
