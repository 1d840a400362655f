package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"scorelens/internal/dataprocessing"
	apierrors "scorelens/internal/errors"
	"scorelens/internal/exporter"
	"scorelens/internal/middleware"
	"scorelens/internal/schema"
	"scorelens/internal/services"
	api "scorelens/pkg/contracts/api/v1"
	"scorelens/pkg/contracts/domain"
)

// multipartMemory is how much of an upload is held in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

// AnalysisHandler exposes the analytics pipeline over HTTP.
type AnalysisHandler struct {
	service      *services.AnalysisService
	validator    *middleware.RequestValidator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service *services.AnalysisService, validator *middleware.RequestValidator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "analysis")),
	}
}

// Routes mounts under /api/v1.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(middleware.ContentTypeValidator("application/json")).Post("/analyze", h.Analyze)
	r.With(middleware.ContentTypeValidator("multipart/form-data")).Post("/analyze/upload", h.AnalyzeUpload)
	r.With(middleware.ContentTypeValidator("application/json")).Post("/traits", h.Traits)
	return r
}

// Analyze handles POST /api/v1/analyze
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	formats, err := exportFormats(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var req api.AnalyzeRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	report, err := h.service.Analyze(r.Context(), dataprocessing.Input{
		Source:    req.Source,
		Records:   req.Records,
		Narrative: req.Narrative,
		Options:   toOptions(req.AnalyzeOptions),
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.respond(w, r, report, formats)
}

// AnalyzeUpload handles POST /api/v1/analyze/upload. The document comes in
// the "file" part; options and extra narrative come as form fields.
func (h *AnalysisHandler) AnalyzeUpload(w http.ResponseWriter, r *http.Request) {
	formats, err := exportFormats(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "a document must be uploaded in the file field"))
		return
	}
	defer file.Close()

	opts, err := formOptions(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&opts); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "document uploaded",
		slog.String("file", header.Filename),
		slog.Int64("size", header.Size))

	report, err := h.service.AnalyzeUpload(r.Context(), header.Filename, header.Size, file, opts.Narrative, toOptions(opts))
	if err != nil {
		if errors.Is(err, apierrors.ErrParsing) {
			err = apierrors.UnprocessableFile(header.Filename, err)
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.respond(w, r, report, formats)
}

// Traits handles POST /api/v1/traits
func (h *AnalysisHandler) Traits(w http.ResponseWriter, r *http.Request) {
	var req api.TraitsRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	found := h.service.ExtractTraits(r.Context(), req.Text)
	render.JSON(w, r, api.TraitsResponse{
		Traits:  nonNil(found.Traits),
		Ratings: nonNil(found.Ratings),
		Grouped: found.ByRating,
	})
}

func (h *AnalysisHandler) respond(w http.ResponseWriter, r *http.Request, report *domain.AnalyticsReport, formats []exporter.Format) {
	resp := api.AnalyzeResponse{Report: report}
	if len(formats) > 0 {
		files, err := h.service.Export(r.Context(), report, "", formats...)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		resp.Files = files
	}
	render.JSON(w, r, resp)
}

// exportFormats reads the optional ?export=csv,json parameter. Absent means
// no files are written.
func exportFormats(r *http.Request) ([]exporter.Format, error) {
	v := r.URL.Query().Get("export")
	if v == "" {
		return nil, nil
	}
	return exporter.ParseFormats(v)
}

func formOptions(r *http.Request) (api.AnalyzeOptions, error) {
	opts := api.AnalyzeOptions{
		GroupBy:   r.FormValue("group_by"),
		Metric:    r.FormValue("metric"),
		Narrative: r.FormValue("narrative"),
	}
	if v := r.FormValue("top_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, apierrors.ErrValidation("top_n", "top_n must be a valid integer")
		}
		opts.TopN = n
	}
	if v := r.FormValue("field_hints"); v != "" {
		if err := json.Unmarshal([]byte(v), &opts.FieldHints); err != nil {
			return opts, apierrors.ErrValidation("field_hints", "field_hints must be a JSON object of column to field")
		}
	}
	return opts, nil
}

func toOptions(o api.AnalyzeOptions) dataprocessing.Options {
	return dataprocessing.Options{
		GroupBy: o.GroupBy,
		Metric:  o.Metric,
		TopN:    o.TopN,
		Hints:   schema.FieldHints(o.FieldHints),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
