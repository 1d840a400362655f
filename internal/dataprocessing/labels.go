package dataprocessing

import (
	"regexp"
	"strings"

	"scorelens/internal/config"
	"scorelens/internal/shared/textmatch"
)

// maxSubjectWords bounds labels that are accepted as a subject without
// naming a known one.
const maxSubjectWords = 3

// activitySplitRe separates several activities written on one line.
var activitySplitRe = regexp.MustCompile(`\s*[|/;]\s*`)

// isSubjectLabel reports whether an OCR label can name a subject. A label
// containing a known subject, or contained in one, always can. Otherwise it
// must be short and carry no metadata or activity word.
func (p *Parser) isSubjectLabel(label string) bool {
	norm := textmatch.NormalizeKey(label)
	if norm == "" {
		return false
	}
	padded := " " + norm + " "
	for _, subject := range p.tables.KnownSubjects {
		s := textmatch.NormalizeKey(subject)
		if s == "" {
			continue
		}
		if strings.Contains(padded, " "+s+" ") || strings.Contains(" "+s+" ", padded) {
			return true
		}
	}

	words := strings.Fields(norm)
	if p.hasMetadataLabel(padded) || p.hasActivityWord(words) {
		return false
	}
	return len(words) <= maxSubjectWords
}

// activities splits a line into the activities it names. In a co-curricular
// section every part that is not metadata counts; elsewhere only parts with
// an activity word do.
func (p *Parser) activities(line, section string) []string {
	var out []string
	for _, part := range activitySplitRe.Split(strings.TrimSpace(line), -1) {
		part = strings.Join(strings.Fields(part), " ")
		if part == "" {
			continue
		}
		norm := textmatch.NormalizeKey(part)
		switch {
		case p.hasActivityWord(strings.Fields(norm)):
			out = append(out, part)
		case section == config.SectionCoCurricular && !p.hasMetadataLabel(" "+norm+" "):
			out = append(out, part)
		}
	}
	return out
}

func (p *Parser) hasActivityWord(words []string) bool {
	for _, w := range words {
		for _, k := range p.tables.CoCurricularKeyword {
			if strings.EqualFold(w, k) {
				return true
			}
		}
	}
	return false
}

// hasMetadataLabel expects padded to be a normalized key wrapped in spaces.
func (p *Parser) hasMetadataLabel(padded string) bool {
	for label := range p.metadata {
		if strings.Contains(padded, " "+label+" ") {
			return true
		}
	}
	return false
}
