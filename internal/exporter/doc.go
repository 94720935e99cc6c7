// Package exporter writes pipeline results to disk.
//
// This package contains three main components:
//
// CSVWriter: Core CSV writing with a UTF-8 BOM so spreadsheet tools detect
// the encoding. Derived tables, summary tables and review lists all go
// through it.
//
// WriteWorkbook: Collects the summary tables into one Excel workbook with a
// sheet per table.
//
// RenderReport: Formats the summary tables as plain text with captions for
// insertion into a manuscript.
//
// Example usage:
//
//	writer := exporter.NewCSVWriter(logger)
//	for _, t := range result.Succeeded() {
//		path, err := writer.WriteSummaryTable(paths.TablesDir, t)
//		...
//	}
//	err := exporter.WriteWorkbook(paths.GetTablePath(exporter.WorkbookFile), result.Tables)
package exporter
