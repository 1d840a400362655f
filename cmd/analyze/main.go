// Command analyze runs the scorelens pipeline over local documents and
// prints the report.
//
//	analyze -in term1.xlsx -in term2.xlsx -top 3 -formats csv,xlsx -out reports
//	analyze -in scans/ -narrative-file teacher_notes.txt -json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"scorelens/internal/config"
	"scorelens/internal/dataprocessing"
	"scorelens/internal/exporter"
	"scorelens/internal/infrastructure"
	"scorelens/internal/services"
	"scorelens/internal/validation"
	"scorelens/pkg/contracts"
)

// inputList collects repeated -in flags.
type inputList []string

func (l *inputList) String() string { return strings.Join(*l, ",") }

func (l *inputList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

type cliOptions struct {
	inputs        inputList
	outDir        string
	formats       string
	prefix        string
	topN          int
	metric        string
	groupBy       string
	narrative     string
	narrativeFile string
	tablesFile    string
	jsonOutput    bool
	verbose       bool
	version       bool
}

func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{}
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.Var(&opts.inputs, "in", "input file or directory (repeatable, comma separated)")
	fs.StringVar(&opts.outDir, "out", "", "directory for exported report files")
	fs.StringVar(&opts.formats, "formats", "", "export formats: csv, json, xlsx (default csv when -out is set)")
	fs.StringVar(&opts.prefix, "prefix", "", "file name prefix for exports (default: run id)")
	fs.IntVar(&opts.topN, "top", 0, "number of entries in the top-N ranking")
	fs.StringVar(&opts.metric, "metric", "", "ranking metric: average, max, count")
	fs.StringVar(&opts.groupBy, "group", "", "grouping: none, subject, student, term, student_subject")
	fs.StringVar(&opts.narrative, "narrative", "", "extra narrative text to analyse for traits")
	fs.StringVar(&opts.narrativeFile, "narrative-file", "", "file holding extra narrative text")
	fs.StringVar(&opts.tablesFile, "tables", "", "reference tables YAML overriding the built-in tables")
	fs.BoolVar(&opts.jsonOutput, "json", false, "print the report as JSON instead of tables")
	fs.BoolVar(&opts.verbose, "v", false, "log pipeline progress to stderr")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.inputs = append(opts.inputs, fs.Args()...)
	if len(opts.inputs) == 0 && !opts.version {
		return nil, errors.New("at least one -in file or directory is required")
	}
	if opts.topN < 0 {
		return nil, fmt.Errorf("-top must be at least 1, got %d", opts.topN)
	}
	return opts, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	_ = godotenv.Load()

	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, color.RedString("error: %v", err))
		return 2
	}
	if opts.version {
		if opts.jsonOutput {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			enc.Encode(contracts.GetVersionInfo())
			return 0
		}
		fmt.Fprintln(stdout, contracts.GetVersionString())
		return 0
	}

	if err := analyze(ctx, opts, stdout, stderr); err != nil {
		fmt.Fprintln(stderr, color.RedString("error: %v", err))
		return 1
	}
	return 0
}

func analyze(ctx context.Context, opts *cliOptions, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.outDir != "" {
		cfg.Paths.OutputDir = opts.outDir
	}
	if opts.tablesFile != "" {
		cfg.Paths.TablesFile = opts.tablesFile
	}

	logCfg := cfg.Logging
	logCfg.Level = "warn"
	if opts.verbose {
		logCfg.Level = "debug"
	}
	logger := infrastructure.NewLogger(logCfg, stderr)

	paths, err := cfg.ResolvePaths("")
	if err != nil {
		return err
	}
	tables, err := config.LoadTables(paths.TablesFile)
	if err != nil {
		return err
	}

	formats, err := exportFormats(opts)
	if err != nil {
		return err
	}

	narrative := opts.narrative
	if opts.narrativeFile != "" {
		data, err := os.ReadFile(opts.narrativeFile)
		if err != nil {
			return fmt.Errorf("failed to read narrative file: %w", err)
		}
		narrative = strings.TrimSpace(narrative + "\n" + string(data))
	}

	fileValidator := validation.NewFileValidator(dataprocessing.SupportedExtensions, 0, logger)
	svc := services.NewAnalysisService(
		dataprocessing.NewParser(tables, cfg.Analytics.MaxEditDistance, logger),
		dataprocessing.NewPipeline(tables, cfg.Analytics, logger),
		exporter.NewReportExporter(paths, logger),
		fileValidator,
		logger,
	)

	report, err := svc.AnalyzeFiles(ctx, opts.inputs, narrative, dataprocessing.Options{
		GroupBy: opts.groupBy,
		Metric:  opts.metric,
		TopN:    opts.topN,
	})
	if err != nil {
		return err
	}

	var files []string
	if len(formats) > 0 {
		if err := fileValidator.ValidateOutputDirectory(paths.OutputDir); err != nil {
			return err
		}
		files, err = svc.Export(ctx, report, opts.prefix, formats...)
		if err != nil {
			return err
		}
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(stdout, report)
	printFiles(stdout, files)
	return nil
}

func exportFormats(opts *cliOptions) ([]exporter.Format, error) {
	if opts.formats == "" {
		if opts.outDir == "" {
			return nil, nil
		}
		return []exporter.Format{exporter.FormatCSV}, nil
	}
	return exporter.ParseFormats(opts.formats)
}
