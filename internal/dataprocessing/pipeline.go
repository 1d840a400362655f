package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"scorelens/internal/behavior"
	"scorelens/internal/cleaner"
	"scorelens/internal/config"
	apperrors "scorelens/internal/errors"
	"scorelens/internal/infrastructure"
	"scorelens/internal/schema"
	"scorelens/internal/statistics"
	"scorelens/internal/trend"
	"scorelens/pkg/contracts/domain"
)

// Options select how a run groups and ranks. Zero values fall back to the
// analytics configuration.
type Options struct {
	GroupBy string
	Metric  string
	TopN    int
	Hints   schema.FieldHints
}

// Input is one analysis request.
type Input struct {
	Source    string
	Records   []domain.RawRecord
	Narrative  string
	Metadata   map[string]string
	Activities []string
	Options    Options
}

// InputFromDocument wraps a parsed document as pipeline input.
func InputFromDocument(doc *ParsedDocument, opts Options) Input {
	return Input{
		Source:     doc.Source,
		Records:    doc.Records,
		Narrative:  doc.Narrative,
		Metadata:   doc.Metadata,
		Activities: doc.Activities,
		Options:    opts,
	}
}

// Pipeline runs normalize, clean, the parallel analytics stages and trait
// extraction, and assembles the report. It keeps no state between runs.
type Pipeline struct {
	cfg        config.AnalyticsConfig
	normalizer *schema.Normalizer
	cleaner    *cleaner.Cleaner
	trends     *trend.Engine
	extractor  *behavior.Extractor
	metrics    *infrastructure.PipelineMetrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithMetrics records run metrics on m.
func WithMetrics(m *infrastructure.PipelineMetrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTracer traces runs with t instead of the global tracer.
func WithTracer(t trace.Tracer) PipelineOption {
	return func(p *Pipeline) { p.tracer = t }
}

// NewPipeline wires the analytics components from tables and cfg.
func NewPipeline(tables *config.Tables, cfg config.AnalyticsConfig, logger *slog.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if tables == nil {
		tables = config.DefaultTables()
	}
	p := &Pipeline{
		cfg:        cfg,
		normalizer: schema.NewNormalizer(tables, cfg, logger),
		cleaner:    cleaner.NewCleaner(cfg, logger),
		trends:     trend.NewEngine(cfg, logger),
		extractor:  behavior.NewExtractor(tables, logger),
		tracer:     otel.Tracer(infrastructure.InstrumentationName),
		logger:     infrastructure.WithComponent(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extractor exposes the trait extractor for callers that only analyse text.
func (p *Pipeline) Extractor() *behavior.Extractor {
	return p.extractor
}

type runSettings struct {
	groupBy statistics.GroupBy
	metric  statistics.Metric
	topN    int
}

func (p *Pipeline) settings(o Options) (runSettings, error) {
	groupBy := o.GroupBy
	if groupBy == "" {
		groupBy = p.cfg.DefaultGroupBy
	}
	g, err := statistics.ParseGroupBy(groupBy)
	if err != nil {
		return runSettings{}, err
	}

	metric := o.Metric
	if metric == "" {
		metric = p.cfg.DefaultMetric
	}
	m, err := statistics.ParseMetric(metric)
	if err != nil {
		return runSettings{}, err
	}

	n := o.TopN
	switch {
	case n < 0:
		return runSettings{}, apperrors.NewInvalidArgumentError(fmt.Sprintf("top_n must be at least 1, got %d", n))
	case n == 0:
		n = p.cfg.DefaultTopN
	}
	return runSettings{groupBy: g, metric: m, topN: n}, nil
}

// Run analyses in. Only malformed input or invalid options fail a run; bad
// rows are reported in the result.
func (p *Pipeline) Run(ctx context.Context, in Input) (report *domain.AnalyticsReport, err error) {
	start := time.Now()
	runID := uuid.New().String()
	ctx = infrastructure.WithRunID(infrastructure.EnsureTraceID(ctx), runID)

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("run.source", in.Source),
		attribute.Int("run.rows", len(in.Records)),
	))
	defer func() {
		if err != nil {
			infrastructure.RecordError(ctx, err)
		}
		p.metrics.RecordRun(ctx, in.Source, time.Since(start), err)
		span.End()
	}()

	set, err := p.settings(in.Options)
	if err != nil {
		return nil, err
	}
	if p.cfg.MaxRecords > 0 && len(in.Records) > p.cfg.MaxRecords {
		return nil, apperrors.NewInvalidArgumentError(
			fmt.Sprintf("%d records exceed the limit of %d per run", len(in.Records), p.cfg.MaxRecords))
	}

	p.logger.InfoContext(ctx, "analytics run started",
		slog.String("source", in.Source),
		slog.Int("records", len(in.Records)),
		slog.String("group_by", string(set.groupBy)),
		slog.String("metric", string(set.metric)),
		slog.Int("top_n", set.topN),
	)

	var partial []domain.PartialRecord
	err = p.stage(ctx, "normalize", func(context.Context) error {
		var err error
		partial, err = p.normalizer.Normalize(in.Records, in.Options.Hints)
		return err
	})
	if err != nil {
		return nil, err
	}

	var cleaned cleaner.Result
	err = p.stage(ctx, "clean", func(context.Context) error {
		var err error
		cleaned, err = p.cleaner.Clean(partial)
		return err
	})
	if err != nil {
		return nil, err
	}

	report = &domain.AnalyticsReport{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		GroupBy:     string(set.groupBy),
		Metric:      string(set.metric),
		Valid:       cleaned.Valid,
		Rejected:    cleaned.Rejected,
		Quality:     quality(len(in.Records), partial, cleaned),
	}
	if report.Rejected == nil {
		report.Rejected = []domain.Rejection{}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return p.stage(egCtx, "statistics", func(ctx context.Context) error {
			var err error
			report.Statistics, err = statistics.SummarizeParallel(ctx, cleaned.Valid, set.groupBy, p.cfg.Workers)
			return err
		})
	})
	eg.Go(func() error {
		return p.stage(egCtx, "rank", func(context.Context) error {
			var err error
			bySubject := statistics.Summarize(cleaned.Valid, statistics.GroupSubject)
			report.TopN, err = statistics.Rank(bySubject, set.topN, set.metric)
			return err
		})
	})
	eg.Go(func() error {
		return p.stage(egCtx, "trend", func(ctx context.Context) error {
			var err error
			report.Trends, err = p.trends.AnalyzeAll(ctx, cleaned.Valid)
			return err
		})
	})
	eg.Go(func() error {
		return p.stage(egCtx, "traits", func(ctx context.Context) error {
			report.Traits = p.extractor.Extract(in.Narrative)
			report.Ratings = p.extractor.ExtractRatings(in.Narrative)
			return nil
		})
	})
	if err = eg.Wait(); err != nil {
		return nil, err
	}

	err = p.stage(ctx, "profiles", func(context.Context) error {
		var err error
		report.Profiles, err = BuildProfiles(cleaned.Valid, report.Trends, set.topN, set.metric)
		return err
	})
	if err != nil {
		return nil, err
	}
	// a single-student document owns its narrative and metadata
	if len(report.Profiles) == 1 {
		report.Profiles[0].Metadata = in.Metadata
		report.Profiles[0].Activities = in.Activities
		report.Profiles[0].Traits = report.Traits
		report.Profiles[0].Ratings = report.Ratings
	}

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"run.valid":    report.Quality.Valid,
		"run.rejected": report.Quality.Rejected,
		"run.students": len(report.Profiles),
	})
	p.metrics.RecordRows(ctx, len(in.Records), reasonCounts(report.Quality.ByReason))
	p.metrics.RecordTraits(ctx, traitLabels(report.Traits))

	p.logger.InfoContext(ctx, "analytics run completed",
		slog.Int("valid", report.Quality.Valid),
		slog.Int("rejected", report.Quality.Rejected),
		slog.Int("trends", len(report.Trends)),
		slog.Int("traits", len(report.Traits)),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}

// stage runs fn inside a child span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	p.metrics.RecordStage(ctx, name, time.Since(start))
	if err != nil {
		infrastructure.RecordError(ctx, err)
		infrastructure.WithError(p.logger, err).ErrorContext(ctx, "pipeline stage failed",
			slog.String("stage", name))
	}
	return err
}

func quality(rowsIn int, partial []domain.PartialRecord, res cleaner.Result) domain.QualityReport {
	unmapped := make(map[string]bool)
	for _, pr := range partial {
		for _, c := range pr.Unmapped {
			unmapped[c] = true
		}
	}
	columns := make([]string, 0, len(unmapped))
	for c := range unmapped {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	return domain.QualityReport{
		RowsIn:     rowsIn,
		Valid:      len(res.Valid),
		Rejected:   len(res.Rejected),
		ByReason:   res.ByReason(),
		Duplicates: res.Collisions,
		Unmapped:   columns,
	}
}

func reasonCounts(byReason map[domain.RejectReason]int) map[string]int {
	out := make(map[string]int, len(byReason))
	for r, n := range byReason {
		out[string(r)] = n
	}
	return out
}

func traitLabels(traits []domain.BehaviorTrait) []string {
	labels := make([]string, len(traits))
	for i, t := range traits {
		labels[i] = t.Label
	}
	return labels
}
