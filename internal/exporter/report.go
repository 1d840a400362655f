package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"scorelens/internal/config"
	apperrors "scorelens/internal/errors"
	"scorelens/pkg/contracts/domain"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormats reads a comma separated format list such as "csv,json".
func ParseFormats(s string) ([]Format, error) {
	var formats []Format
	seen := make(map[Format]bool)
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		switch f {
		case "":
			continue
		case FormatCSV, FormatJSON, FormatXLSX:
		default:
			return nil, apperrors.NewInvalidArgumentError(fmt.Sprintf("unknown export format %q", part))
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return []Format{FormatCSV}, nil
	}
	return formats, nil
}

// table is one tabular view of a report.
type table struct {
	name    string
	sheet   string
	headers []string
	rows    [][]string
}

// ReportExporter writes analytics reports to the output directory.
type ReportExporter struct {
	csv    *CSVWriter
	paths  *config.Paths
	logger *slog.Logger
}

// NewReportExporter creates an exporter writing below paths.OutputDir.
func NewReportExporter(paths *config.Paths, logger *slog.Logger) *ReportExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportExporter{
		csv:    NewCSVWriter(paths, logger),
		paths:  paths,
		logger: logger.With(slog.String("component", "report_exporter")),
	}
}

// Export writes report in every requested format and returns the files
// written. File names start with prefix, or the run id when prefix is empty.
func (e *ReportExporter) Export(ctx context.Context, report *domain.AnalyticsReport, prefix string, formats ...Format) ([]string, error) {
	if report == nil {
		return nil, apperrors.NewInvalidArgumentError("no report to export")
	}
	if prefix == "" {
		prefix = report.RunID
	}
	if len(formats) == 0 {
		formats = []Format{FormatCSV}
	}

	var files []string
	for _, f := range formats {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		var (
			written []string
			err     error
		)
		switch f {
		case FormatCSV:
			written, err = e.exportCSV(report, prefix)
		case FormatJSON:
			written, err = e.exportJSON(report, prefix)
		case FormatXLSX:
			written, err = e.exportWorkbook(report, prefix)
		default:
			err = apperrors.NewInvalidArgumentError(fmt.Sprintf("unknown export format %q", f))
		}
		if err != nil {
			return files, apperrors.NewStorageError(fmt.Sprintf("failed to export %s report", f), err)
		}
		files = append(files, written...)
	}

	e.logger.InfoContext(ctx, "report exported",
		slog.String("run_id", report.RunID),
		slog.Int("files", len(files)))
	return files, nil
}

func (e *ReportExporter) exportCSV(report *domain.AnalyticsReport, prefix string) ([]string, error) {
	var files []string
	for _, t := range reportTables(report) {
		path, err := e.csv.WriteSimpleCSV(fmt.Sprintf("%s_%s.csv", prefix, t.name), t.headers, t.rows)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}

	path, err := e.writeRecords(report.Valid, prefix)
	if err != nil {
		return files, err
	}
	return append(files, path), nil
}

// writeRecords streams the cleaned records, which can be the largest table.
func (e *ReportExporter) writeRecords(records []domain.CanonicalRecord, prefix string) (string, error) {
	sw, err := e.csv.CreateStreamWriter(prefix+"_records.csv",
		[]string{"student_id", "subject", "score", "max_score", "percent", "term", "date"})
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if err := sw.WriteRecord([]string{
			r.StudentID, r.Subject,
			formatFloat(r.Score), formatFloat(r.MaxScore), formatFloat(r.Percent()),
			r.Term, formatDate(r.Date),
		}); err != nil {
			sw.Close()
			return "", err
		}
	}
	return sw.Path(), sw.Close()
}

func (e *ReportExporter) exportJSON(report *domain.AnalyticsReport, prefix string) ([]string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, err
	}
	path := e.outputPath(prefix + "_report.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// exportWorkbook writes one sheet per report table.
func (e *ReportExporter) exportWorkbook(report *domain.AnalyticsReport, prefix string) ([]string, error) {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	for i, t := range reportTables(report) {
		sheet := t.sheet
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}

		if err := f.SetSheetRow(sheet, "A1", &t.headers); err != nil {
			return nil, err
		}
		last, _ := excelize.CoordinatesToCellName(len(t.headers), 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return nil, err
		}
		for r, row := range t.rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+2)
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return nil, err
			}
		}
	}

	path := e.outputPath(prefix + "_report.xlsx")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	if err := f.SaveAs(path); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (e *ReportExporter) outputPath(name string) string {
	if e.paths == nil || e.paths.OutputDir == "" {
		return name
	}
	return e.paths.OutputPath(name)
}

func reportTables(report *domain.AnalyticsReport) []table {
	return []table{
		statisticsTable(report),
		topTable(report),
		trendsTable(report),
		rejectionsTable(report),
		profilesTable(report),
	}
}

func statisticsTable(report *domain.AnalyticsReport) table {
	keys := make([]string, 0, len(report.Statistics))
	for k := range report.Statistics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := table{
		name:    "statistics",
		sheet:   "Statistics",
		headers: []string{report.GroupBy, "count", "average", "median", "min", "max", "std_dev"},
	}
	for _, k := range keys {
		s := report.Statistics[k]
		t.rows = append(t.rows, []string{
			k, formatInt(s.Count),
			formatFloat(s.Average), formatFloat(s.Median),
			formatFloat(s.Min), formatFloat(s.Max), formatFloat(s.StdDev),
		})
	}
	return t
}

func topTable(report *domain.AnalyticsReport) table {
	t := table{name: "top_n", sheet: "Top N", headers: []string{"rank", "subject", report.Metric, "count"}}
	for i, e := range report.TopN {
		t.rows = append(t.rows, []string{formatInt(i + 1), e.Key, formatFloat(e.Value), formatInt(e.Summary.Count)})
	}
	return t
}

func trendsTable(report *domain.AnalyticsReport) table {
	t := table{
		name:  "trends",
		sheet: "Trends",
		headers: []string{"student_id", "subject", "direction", "slope", "predicted_next",
			"confidence", "r_squared", "points", "momentum", "recent_average"},
	}
	for _, tr := range report.Trends {
		t.rows = append(t.rows, []string{
			tr.StudentID, tr.Subject, string(tr.Direction),
			formatFloat(tr.Slope), formatOptional(tr.PredictedNext),
			formatFloat(tr.Confidence), formatFloat(tr.RSquared),
			formatInt(tr.Points), string(tr.Momentum), formatOptional(tr.RecentAverage),
		})
	}
	return t
}

func rejectionsTable(report *domain.AnalyticsReport) table {
	t := table{name: "rejections", sheet: "Rejections", headers: []string{"source", "row", "reason", "field", "detail", "raw"}}
	for _, r := range report.Rejected {
		raw, err := json.Marshal(r.Raw)
		if err != nil {
			raw = []byte{}
		}
		row := ""
		if r.Raw.Origin.Row > 0 {
			row = formatInt(r.Raw.Origin.Row)
		}
		t.rows = append(t.rows, []string{r.Raw.Origin.Source, row, string(r.Reason), r.Field, r.Detail, string(raw)})
	}
	return t
}

func profilesTable(report *domain.AnalyticsReport) table {
	t := table{
		name:    "profiles",
		sheet:   "Profiles",
		headers: []string{"student_id", "records", "average", "strength", "weakness", "top_subjects"},
	}
	for _, p := range report.Profiles {
		var strength, weakness string
		if p.Strength != nil {
			strength = fmt.Sprintf("%s (%s)", p.Strength.Subject, formatFloat(p.Strength.Average))
		}
		if p.Weakness != nil {
			weakness = fmt.Sprintf("%s (%s)", p.Weakness.Subject, formatFloat(p.Weakness.Average))
		}
		top := make([]string, len(p.Top))
		for i, e := range p.Top {
			top[i] = e.Key
		}
		t.rows = append(t.rows, []string{
			p.StudentID, formatInt(p.Overall.Count), formatFloat(p.Overall.Average),
			strength, weakness, strings.Join(top, "; "),
		})
	}
	return t
}
