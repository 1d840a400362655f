// Package dataprocessing turns uploaded documents into analytics reports.
//
// It has two halves. The Parser reads spreadsheets, CSV exports and OCR text
// of report cards into raw records, student metadata and narrative text. The
// Pipeline runs those records through normalization and cleaning, then
// computes statistics, rankings, trends, traits and per-student profiles.
//
// # Parsing
//
// A score table is found by its header row, the first row within the top of
// a sheet whose cells resolve to at least two canonical fields. Label/value
// rows above it become metadata. Rows assigned to a behaviour or
// co-curricular section become narrative. Without a header, the document is
// read line by line:
//
//	parser := dataprocessing.NewParser(tables, cfg.Analytics.MaxEditDistance, logger)
//	doc, err := parser.ParseFile("siti.txt")
//
// # Running
//
//	pipeline := dataprocessing.NewPipeline(tables, cfg.Analytics, logger,
//	    dataprocessing.WithMetrics(metrics))
//	report, err := pipeline.Run(ctx, dataprocessing.InputFromDocument(doc, dataprocessing.Options{TopN: 3}))
//
// Run only fails for malformed input or invalid options. Rows that cannot be
// used are listed in report.Rejected with a reason.
package dataprocessing
