// Package exporter writes analytics reports to disk.
//
// CSVWriter handles the file mechanics: a UTF-8 BOM so Excel opens the
// files correctly, appends and streaming. ReportExporter turns a report into
// one CSV per table (statistics, top N, trends, rejections, profiles and the
// cleaned records), a JSON document, or a workbook with one sheet per table.
//
//	exp := exporter.NewReportExporter(paths, logger)
//	files, err := exp.Export(ctx, report, "term1", exporter.FormatCSV, exporter.FormatJSON)
package exporter
