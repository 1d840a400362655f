package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorelens/internal/config"
	"scorelens/internal/dataprocessing"
	apierrors "scorelens/internal/errors"
	"scorelens/internal/exporter"
	"scorelens/internal/middleware"
	"scorelens/internal/services"
	"scorelens/internal/shared/testutil"
	"scorelens/internal/validation"
	api "scorelens/pkg/contracts/api/v1"
)

func newTestRouter(t *testing.T, outputDir string) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	cfg := config.Default()
	tables := config.DefaultTables()
	paths := &config.Paths{OutputDir: outputDir}

	svc := services.NewAnalysisService(
		dataprocessing.NewParser(tables, cfg.Analytics.MaxEditDistance, logger),
		dataprocessing.NewPipeline(tables, cfg.Analytics, logger),
		exporter.NewReportExporter(paths, logger),
		validation.NewFileValidator(dataprocessing.SupportedExtensions, 1<<20, logger),
		logger,
	)
	handler := NewAnalysisHandler(svc, middleware.NewRequestValidator(logger),
		apierrors.NewErrorHandler(logger, false), logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Mount("/api/v1", handler.Routes())
	return r
}

func postJSON(t *testing.T, h http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type uploadPart struct {
	fileName string
	content  []byte
	fields   map[string]string
}

func postUpload(t *testing.T, h http.Handler, target string, part uploadPart) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if part.fileName != "" {
		fw, err := mw.CreateFormFile("file", part.fileName)
		require.NoError(t, err)
		_, err = fw.Write(part.content)
		require.NoError(t, err)
	}
	for k, v := range part.fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func problemType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	typ, _ := body["type"].(string)
	return typ
}

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) api.AnalyzeResponse {
	t.Helper()
	var resp api.AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	require.NotNil(t, resp.Report)
	return resp
}

func TestAnalysisHandler_Analyze(t *testing.T) {
	h := newTestRouter(t, t.TempDir())

	rec := postJSON(t, h, "/api/v1/analyze",
		`{"records":[{"name":"A","Marks":"85%"},{"name":"A","Marks":"150%"}]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeReport(t, rec)
	require.Len(t, resp.Report.Valid, 1)
	assert.Equal(t, 85.0, resp.Report.Valid[0].Score)
	assert.Equal(t, 100.0, resp.Report.Valid[0].MaxScore)
	require.Len(t, resp.Report.Rejected, 1)
	assert.Equal(t, "RangeViolation", string(resp.Report.Rejected[0].Reason))
	assert.Equal(t, 2, resp.Report.Quality.RowsIn)
	assert.Empty(t, resp.Files)
}

func TestAnalysisHandler_AnalyzeErrors(t *testing.T) {
	h := newTestRouter(t, t.TempDir())

	tests := []struct {
		name     string
		target   string
		body     string
		wantCode int
		wantType string
	}{
		{
			name:     "unknown metric",
			target:   "/api/v1/analyze",
			body:     `{"records":[{"name":"A","Math":80}],"metric":"median"}`,
			wantCode: http.StatusBadRequest,
			wantType: apierrors.TypeValidation,
		},
		{
			name:     "no records",
			target:   "/api/v1/analyze",
			body:     `{"records":[]}`,
			wantCode: http.StatusBadRequest,
			wantType: apierrors.TypeValidation,
		},
		{
			name:     "nested value",
			target:   "/api/v1/analyze",
			body:     `{"records":[{"name":{"first":"A"},"Math":80}]}`,
			wantCode: http.StatusBadRequest,
			wantType: apierrors.TypeInputShape,
		},
		{
			name:     "unknown field hint target",
			target:   "/api/v1/analyze",
			body:     `{"records":[{"Pupil":"A","Math":80}],"field_hints":{"Pupil":"learner"}}`,
			wantCode: http.StatusBadRequest,
			wantType: apierrors.TypeValidation,
		},
		{
			name:     "unknown export format",
			target:   "/api/v1/analyze?export=pdf",
			body:     `{"records":[{"name":"A","Math":80}]}`,
			wantCode: http.StatusBadRequest,
			wantType: apierrors.TypeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h, tt.target, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantType, problemType(t, rec))
		})
	}
}

func TestAnalysisHandler_AnalyzeWrongContentType(t *testing.T) {
	h := newTestRouter(t, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("name,score"))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestAnalysisHandler_AnalyzeExport(t *testing.T) {
	dir := t.TempDir()
	h := newTestRouter(t, dir)

	rec := postJSON(t, h, "/api/v1/analyze?export=json,csv",
		`{"records":[{"Student":"amy","Subject":"Math","Score":80},{"Student":"amy","Subject":"Art","Score":60}]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeReport(t, rec)
	require.NotEmpty(t, resp.Files)
	assert.Contains(t, resp.Files[0], resp.Report.RunID)
	for _, f := range resp.Files {
		assert.True(t, strings.HasPrefix(f, dir), f)
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}
}

func TestAnalysisHandler_AnalyzeUpload(t *testing.T) {
	h := newTestRouter(t, t.TempDir())

	rec := postUpload(t, h, "/api/v1/analyze/upload", uploadPart{
		fileName: "class.csv",
		content:  []byte("Student,Subject,Score\namy,Math,80\namy,Art,60\n"),
		fields: map[string]string{
			"narrative": "Amy is a team player.\nPunctuality: Good",
			"top_n":     "1",
		},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeReport(t, rec)
	assert.Len(t, resp.Report.Valid, 2)
	require.Len(t, resp.Report.TopN, 1)
	assert.Equal(t, "Math", resp.Report.TopN[0].Key)

	var labels []string
	for _, tr := range resp.Report.Traits {
		labels = append(labels, tr.Label)
	}
	assert.Contains(t, labels, "collaborative")
	require.NotEmpty(t, resp.Report.Ratings)
	assert.Equal(t, "Punctuality", resp.Report.Ratings[0].Attribute)
}

func TestAnalysisHandler_AnalyzeUploadErrors(t *testing.T) {
	h := newTestRouter(t, t.TempDir())

	tests := []struct {
		name     string
		part     uploadPart
		wantCode int
		wantType string
	}{
		{
			name:     "missing file",
			part:     uploadPart{fields: map[string]string{"narrative": "x"}},
			wantCode: http.StatusBadRequest,
			wantType: apierrors.TypeValidation,
		},
		{
			name:     "unsupported extension",
			part:     uploadPart{fileName: "report.pdf", content: []byte("%PDF-1.4")},
			wantCode: http.StatusBadRequest,
			wantType: apierrors.TypeValidation,
		},
		{
			name:     "corrupt workbook",
			part:     uploadPart{fileName: "report.xlsx", content: []byte("not a zip archive")},
			wantCode: http.StatusUnprocessableEntity,
			wantType: apierrors.TypeUnreadableFile,
		},
		{
			name: "bad top_n",
			part: uploadPart{
				fileName: "class.csv",
				content:  []byte("Student,Subject,Score\namy,Math,80\n"),
				fields:   map[string]string{"top_n": "many"},
			},
			wantCode: http.StatusBadRequest,
			wantType: apierrors.TypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postUpload(t, h, "/api/v1/analyze/upload", tt.part)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantType, problemType(t, rec))
		})
	}
}

func TestAnalysisHandler_Traits(t *testing.T) {
	h := newTestRouter(t, t.TempDir())

	rec := postJSON(t, h, "/api/v1/traits",
		`{"text":"Ali is cooperative and a team player.\nPunctuality: Good\nHonesty: Good"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp api.TraitsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	var labels []string
	for _, tr := range resp.Traits {
		labels = append(labels, tr.Label)
	}
	assert.Contains(t, labels, "collaborative")
	assert.Len(t, resp.Ratings, 2)
	assert.Equal(t, []string{"Honesty", "Punctuality"}, resp.Grouped["Good"])

	rec = postJSON(t, h, "/api/v1/traits", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisHandler_TraitsEmptyArrays(t *testing.T) {
	h := newTestRouter(t, t.TempDir())

	rec := postJSON(t, h, "/api/v1/traits", `{"text":"Mathematics 85"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"traits":[]`)
	assert.Contains(t, rec.Body.String(), `"ratings":[]`)
}
