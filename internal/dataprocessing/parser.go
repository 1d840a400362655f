package dataprocessing

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"scorelens/internal/config"
	apperrors "scorelens/internal/errors"
	"scorelens/internal/schema"
	"scorelens/internal/shared/textmatch"
)

// SupportedExtensions lists the file types ParseReader understands.
var SupportedExtensions = []string{".xlsx", ".xlsm", ".csv", ".txt"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parser turns uploaded documents into raw records plus narrative text.
type Parser struct {
	tables   *config.Tables
	resolver *schema.Resolver
	logger   *slog.Logger

	// keyed by textmatch.NormalizeKey
	sections map[string]string
	metadata map[string]string
}

// NewParser creates a parser that recognises headers, sections and
// metadata labels from tables.
func NewParser(tables *config.Tables, maxEdit int, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if tables == nil {
		tables = config.DefaultTables()
	}
	return &Parser{
		tables:   tables,
		resolver: schema.NewResolver(tables, maxEdit),
		logger:   logger.With(slog.String("component", "parser")),
		sections: normalizedKeys(tables.Sections),
		metadata: normalizedKeys(tables.MetadataLabels),
	}
}

func normalizedKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[textmatch.NormalizeKey(k)] = v
	}
	return out
}

// Resolver returns the column resolver the parser uses for header detection.
func (p *Parser) Resolver() *schema.Resolver {
	return p.resolver
}

// ParseFile reads the document at path.
func (p *Parser) ParseFile(path string) (*ParsedDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(path)
		}
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	return p.ParseReader(filepath.Base(path), f)
}

// ParseReader reads a document whose type is taken from the extension of name.
func (p *Parser) ParseReader(name string, r io.Reader) (*ParsedDocument, error) {
	var (
		doc *ParsedDocument
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		doc, err = p.parseWorkbook(name, r)
	case ".csv":
		doc, err = p.parseCSV(name, r)
	case ".txt":
		doc, err = p.parseText(name, r)
	default:
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("unsupported file type %q, want one of %s", filepath.Ext(name), strings.Join(SupportedExtensions, ", ")), nil)
	}
	if err != nil {
		return nil, err
	}

	p.logger.Info("document parsed",
		slog.String("source", name),
		slog.Int("records", len(doc.Records)),
		slog.Int("metadata", len(doc.Metadata)),
		slog.Bool("narrative", doc.Narrative != ""),
	)
	return doc, nil
}

func (p *Parser) parseWorkbook(name string, r io.Reader) (*ParsedDocument, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to open workbook %s", name), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var first [][]string
	for i, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			p.logger.Warn("skipping unreadable sheet",
				slog.String("source", name),
				slog.String("sheet", sheet),
				slog.String("error", err.Error()))
			continue
		}
		if i == 0 {
			first = rows
		}
		if doc, ok := p.parseTable(name, rows); ok {
			p.logger.Debug("score table found", slog.String("source", name), slog.String("sheet", sheet))
			return doc, nil
		}
	}

	if len(first) == 0 {
		return nil, apperrors.NewParsingError(fmt.Sprintf("workbook %s has no data", name), nil)
	}
	// no recognisable header: read the first sheet as report-card lines
	return p.parseLines(name, joinRows(first)), nil
}

func (p *Parser) parseCSV(name string, r io.Reader) (*ParsedDocument, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read %s", name), err)
	}
	content = bytes.TrimPrefix(content, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read CSV %s", name), err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewParsingError(fmt.Sprintf("CSV %s is empty", name), nil)
	}

	if doc, ok := p.parseTable(name, rows); ok {
		return doc, nil
	}
	return p.parseLines(name, joinRows(rows)), nil
}

func (p *Parser) parseText(name string, r io.Reader) (*ParsedDocument, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read %s", name), err)
	}
	content = bytes.TrimPrefix(content, utf8BOM)

	text := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(string(content))
	return p.parseLines(name, strings.Split(text, "\n")), nil
}

// joinRows flattens a grid into one line per row, the way OCR tools export
// tables.
func joinRows(rows [][]string) []string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		var cells []string
		for _, c := range row {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		lines[i] = strings.Join(cells, " ")
	}
	return lines
}
