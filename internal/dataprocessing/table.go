package dataprocessing

import (
	"strings"

	"scorelens/internal/config"
	"scorelens/internal/schema"
	"scorelens/internal/shared/textmatch"
	"scorelens/pkg/contracts/domain"
)

const (
	// headerSearchRows bounds how far down a sheet the header may start.
	headerSearchRows = 30

	// minHeaderFields is how many cells of a row must resolve to distinct
	// canonical fields for it to count as the header.
	minHeaderFields = 2

	sectionColumn = "section"

	// sectionDetails marks rows of a Section column that describe the
	// student rather than a result.
	sectionDetails = "details"
)

// parseTable reads a grid with a header row. Label/value rows above the
// header become metadata; rows routed to a non-subject section become
// narrative. It reports false when no header row is found.
func (p *Parser) parseTable(source string, rows [][]string) (*ParsedDocument, bool) {
	header := -1
	for i := 0; i < len(rows) && i < headerSearchRows; i++ {
		if n, core := p.headerFields(rows[i]); n >= minHeaderFields && core {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, false
	}

	doc := &ParsedDocument{Source: source, Metadata: make(map[string]string)}
	for _, row := range rows[:header] {
		p.readMetadataRow(row, doc.Metadata)
	}

	columns := rows[header]
	sectionCol := -1
	for j, c := range columns {
		if textmatch.NormalizeKey(c) == sectionColumn {
			sectionCol = j
			break
		}
	}

	current := config.SectionSubjects
	var narrative []string
	for i := header + 1; i < len(rows); i++ {
		row := rows[i]
		cells := nonEmpty(row)
		if len(cells) == 0 {
			continue
		}
		if len(cells) == 1 {
			if kind, ok := p.sectionKind(cells[0]); ok {
				current = kind
				continue
			}
		}

		kind := current
		if sectionCol >= 0 && sectionCol < len(row) && strings.TrimSpace(row[sectionCol]) != "" {
			kind = p.sectionOf(row[sectionCol])
		}
		if kind == sectionDetails {
			p.readMetadataRow(cellsExcept(row, sectionCol), doc.Metadata)
			continue
		}
		if kind != config.SectionSubjects {
			line := strings.Join(cellsExcept(row, sectionCol), " ")
			if kind == config.SectionCoCurricular {
				doc.Activities = append(doc.Activities, p.activities(line, kind)...)
			}
			narrative = append(narrative, line)
			continue
		}

		rec := domain.RawRecord{Origin: domain.Origin{Source: source, Row: i + 1}}
		for j, name := range columns {
			name = strings.TrimSpace(name)
			if name == "" || j == sectionCol {
				continue
			}
			value := ""
			if j < len(row) {
				value = strings.TrimSpace(row[j])
			}
			rec.Set(name, value)
		}
		doc.Records = append(doc.Records, rec)
	}

	doc.Narrative = strings.Join(narrative, "\n")
	if len(doc.Metadata) == 0 {
		doc.Metadata = nil
	}
	doc.ApplyStudent(doc.Metadata["name"], p.resolver)
	return doc, true
}

// headerFields counts the distinct canonical fields a row's cells resolve to
// and reports whether a subject or score column is among them.
func (p *Parser) headerFields(row []string) (int, bool) {
	seen := make(map[string]bool)
	for _, c := range row {
		if textmatch.NormalizeKey(c) == sectionColumn {
			continue
		}
		if res := p.resolver.Resolve(c, nil); res.Kind != schema.MatchNone {
			seen[res.Field] = true
		}
	}
	return len(seen), seen[domain.FieldSubject] || seen[domain.FieldScore]
}

// readMetadataRow accepts "Label: value" cells and label cells followed by a
// value cell.
func (p *Parser) readMetadataRow(row []string, into map[string]string) {
	cells := nonEmpty(row)
	for i := 0; i < len(cells); i++ {
		if label, value, found := strings.Cut(cells[i], ":"); found && strings.TrimSpace(value) != "" {
			if key, ok := p.metadataKey(label); ok {
				into[key] = strings.TrimSpace(value)
			}
			continue
		}
		key, ok := p.metadataKey(cells[i])
		if !ok || i+1 >= len(cells) {
			continue
		}
		into[key] = cells[i+1]
		i++
	}
}

func (p *Parser) metadataKey(label string) (string, bool) {
	key, ok := p.metadata[textmatch.NormalizeKey(strings.TrimRight(label, ": "))]
	return key, ok
}

// sectionKind reports the kind of a section header cell.
func (p *Parser) sectionKind(cell string) (string, bool) {
	kind, ok := p.sections[textmatch.NormalizeKey(strings.TrimRight(cell, ": "))]
	return kind, ok
}

// sectionOf classifies the value of a Section column. Unknown sections hold
// subjects.
func (p *Parser) sectionOf(cell string) string {
	if kind, ok := p.sectionKind(cell); ok {
		return kind
	}
	key := textmatch.NormalizeKey(cell)
	switch {
	case strings.Contains(key, "behav"), strings.Contains(key, "conduct"):
		return config.SectionBehaviour
	case strings.Contains(key, "curricular"):
		return config.SectionCoCurricular
	case strings.Contains(key, "detail"), strings.Contains(key, "student info"):
		return sectionDetails
	}
	return config.SectionSubjects
}

func nonEmpty(row []string) []string {
	var out []string
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func cellsExcept(row []string, skip int) []string {
	var out []string
	for j, c := range row {
		if j == skip {
			continue
		}
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
