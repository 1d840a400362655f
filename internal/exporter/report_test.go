package exporter

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"scorelens/internal/config"
	apperrors "scorelens/internal/errors"
	"scorelens/internal/shared/testutil"
	"scorelens/pkg/contracts/domain"
)

func sampleReport() *domain.AnalyticsReport {
	next := 90.0
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	math1 := domain.StatisticsSummary{Average: 75, Min: 60, Max: 90, Median: 75, StdDev: 12.91, Count: 4}

	return &domain.AnalyticsReport{
		RunID:   "run-1",
		GroupBy: "subject",
		Metric:  "average",
		Statistics: map[string]domain.StatisticsSummary{
			"Math":  math1,
			"Art":   {Average: 60, Min: 60, Max: 60, Median: 60, StdDev: 0, Count: 1},
			"Music": domain.EmptySummary(),
		},
		TopN: []domain.RankedEntry{{Key: "Math", Value: 75, Summary: math1}},
		Trends: []domain.TrendResult{{
			StudentID: "amy", Subject: "Math", Direction: domain.DirectionRising,
			Slope: 10, PredictedNext: &next, Confidence: 0.67, RSquared: 1, Points: 3,
			Momentum: domain.MomentumAbove,
		}},
		Valid: []domain.CanonicalRecord{
			{StudentID: "amy", Subject: "Math", Score: 45, MaxScore: 50, Term: "T1", Date: &date},
		},
		Rejected: []domain.Rejection{{
			Raw:    domain.RawRecord{Fields: []domain.RawField{{Name: "Marks", Value: "150%"}}, Origin: domain.Origin{Source: "a.csv", Row: 3}},
			Reason: domain.ReasonRangeViolation,
			Field:  "score",
			Detail: "score 150 exceeds max 100",
		}},
		Profiles: []domain.StudentProfile{{
			StudentID: "amy",
			Overall:   math1,
			Top:       []domain.RankedEntry{{Key: "Math", Value: 75}},
			Strength:  &domain.SubjectScore{Subject: "Math", Average: 75},
		}},
	}
}

func newTestExporter(t *testing.T) (*ReportExporter, string) {
	t.Helper()
	dir := t.TempDir()
	logger, _ := testutil.NewTestLogger(t)
	return NewReportExporter(&config.Paths{OutputDir: dir}, logger), dir
}

func TestReportExporter_CSV(t *testing.T) {
	exp, dir := newTestExporter(t)

	files, err := exp.Export(context.Background(), sampleReport(), "term1", FormatCSV)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		assert.Equal(t, dir, filepath.Dir(f))
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{
		"term1_statistics.csv",
		"term1_top_n.csv",
		"term1_trends.csv",
		"term1_rejections.csv",
		"term1_profiles.csv",
		"term1_records.csv",
	}, names)

	stats := readLines(t, filepath.Join(dir, "term1_statistics.csv"))
	assert.Equal(t, []string{
		"subject,count,average,median,min,max,std_dev",
		"Art,1,60.00,60.00,60.00,60.00,0.00",
		"Math,4,75.00,75.00,60.00,90.00,12.91",
		"Music,0,,,,,",
	}, stats)

	trends := readLines(t, filepath.Join(dir, "term1_trends.csv"))
	assert.Equal(t, "amy,Math,rising,10.00,90.00,0.67,1.00,3,above,", trends[1])

	rejections := readLines(t, filepath.Join(dir, "term1_rejections.csv"))
	assert.Equal(t, `a.csv,3,RangeViolation,score,score 150 exceeds max 100,"{""Marks"":""150%""}"`, rejections[1])

	records := readLines(t, filepath.Join(dir, "term1_records.csv"))
	assert.Equal(t, "amy,Math,45.00,50.00,90.00,T1,2024-03-15", records[1])

	profiles := readLines(t, filepath.Join(dir, "term1_profiles.csv"))
	assert.Equal(t, "amy,4,75.00,Math (75.00),,Math", profiles[1])
}

func TestReportExporter_JSON(t *testing.T) {
	exp, dir := newTestExporter(t)

	files, err := exp.Export(context.Background(), sampleReport(), "", FormatJSON)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "run-1_report.json")}, files)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var decoded domain.AnalyticsReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.True(t, math.IsNaN(decoded.Statistics["Music"].Average))
	assert.Contains(t, string(data), `"average": null`)
}

func TestReportExporter_Workbook(t *testing.T) {
	exp, _ := newTestExporter(t)

	files, err := exp.Export(context.Background(), sampleReport(), "wb", FormatXLSX)
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := excelize.OpenFile(files[0])
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Statistics", "Top N", "Trends", "Rejections", "Profiles"}, f.GetSheetList())

	rows, err := f.GetRows("Top N")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"rank", "subject", "average", "count"},
		{"1", "Math", "75.00", "4"},
	}, rows)
}

func TestReportExporter_Errors(t *testing.T) {
	exp, _ := newTestExporter(t)

	_, err := exp.Export(context.Background(), nil, "x")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exp.Export(ctx, sampleReport(), "x", FormatJSON)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in      string
		want    []Format
		wantErr bool
	}{
		{"", []Format{FormatCSV}, false},
		{"json", []Format{FormatJSON}, false},
		{"CSV, json,csv", []Format{FormatCSV, FormatJSON}, false},
		{"xlsx", []Format{FormatXLSX}, false},
		{"pdf", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormats(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
