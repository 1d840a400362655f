package services

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"scorelens/internal/behavior"
	"scorelens/internal/dataprocessing"
	apperrors "scorelens/internal/errors"
	"scorelens/internal/exporter"
	"scorelens/internal/validation"
	"scorelens/pkg/contracts/domain"
)

// TraitReport is the result of analysing free text on its own.
type TraitReport struct {
	Traits   []domain.BehaviorTrait `json:"traits"`
	Ratings  []domain.RatingPair    `json:"ratings"`
	ByRating map[string][]string    `json:"by_rating"`
}

// AnalysisService connects document parsing, the analytics pipeline and
// report export for the HTTP and CLI front ends.
type AnalysisService struct {
	parser    *dataprocessing.Parser
	pipeline  *dataprocessing.Pipeline
	exporter  *exporter.ReportExporter
	validator *validation.FileValidator
	logger    *slog.Logger
}

// NewAnalysisService creates the service. exporter may be nil when reports
// are never written to disk.
func NewAnalysisService(
	parser *dataprocessing.Parser,
	pipeline *dataprocessing.Pipeline,
	exp *exporter.ReportExporter,
	validator *validation.FileValidator,
	logger *slog.Logger,
) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		parser:    parser,
		pipeline:  pipeline,
		exporter:  exp,
		validator: validator,
		logger:    logger.With(slog.String("service", "analysis")),
	}
}

// Analyze runs the pipeline over records supplied directly.
func (s *AnalysisService) Analyze(ctx context.Context, in dataprocessing.Input) (*domain.AnalyticsReport, error) {
	if in.Source == "" {
		in.Source = "api"
	}
	return s.pipeline.Run(ctx, in)
}

// AnalyzeUpload parses one uploaded document and analyses it. Extra
// narrative text is appended to whatever narrative the document carries.
func (s *AnalysisService) AnalyzeUpload(ctx context.Context, name string, size int64, r io.Reader, narrative string, opts dataprocessing.Options) (*domain.AnalyticsReport, error) {
	if err := s.validator.ValidateUpload(name, size); err != nil {
		return nil, err
	}

	doc, err := s.parser.ParseReader(name, r)
	if err != nil {
		s.logger.WarnContext(ctx, "upload could not be parsed",
			slog.String("file", name),
			slog.String("error", err.Error()))
		return nil, err
	}
	doc.Narrative = joinNarrative(doc.Narrative, narrative)

	return s.pipeline.Run(ctx, dataprocessing.InputFromDocument(doc, opts))
}

// AnalyzeFiles parses every document found in paths, merges them into one
// input and analyses it.
func (s *AnalysisService) AnalyzeFiles(ctx context.Context, paths []string, narrative string, opts dataprocessing.Options) (*domain.AnalyticsReport, error) {
	files, err := s.validator.CollectFiles(paths)
	if err != nil {
		return nil, err
	}

	docs := make([]*dataprocessing.ParsedDocument, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := s.parser.ParseFile(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	merged := dataprocessing.Merge(docs...)
	merged.Narrative = joinNarrative(merged.Narrative, narrative)

	s.logger.InfoContext(ctx, "documents merged",
		slog.Int("files", len(files)),
		slog.Int("records", len(merged.Records)))
	return s.pipeline.Run(ctx, dataprocessing.InputFromDocument(merged, opts))
}

// ExtractTraits finds traits and ratings in text without any score data.
func (s *AnalysisService) ExtractTraits(ctx context.Context, text string) TraitReport {
	extractor := s.pipeline.Extractor()
	ratings := extractor.ExtractRatings(text)
	report := TraitReport{
		Traits:   extractor.Extract(text),
		Ratings:  ratings,
		ByRating: behavior.GroupByRating(ratings),
	}
	s.logger.DebugContext(ctx, "traits extracted",
		slog.Int("traits", len(report.Traits)),
		slog.Int("ratings", len(report.Ratings)))
	return report
}

// Export writes report files and returns their paths.
func (s *AnalysisService) Export(ctx context.Context, report *domain.AnalyticsReport, prefix string, formats ...exporter.Format) ([]string, error) {
	if s.exporter == nil {
		return nil, apperrors.NewConfigError("report export is not configured", nil)
	}
	return s.exporter.Export(ctx, report, prefix, formats...)
}

func joinNarrative(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
