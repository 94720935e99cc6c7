// Package operations runs the water value database pipeline.
//
// The pipeline is a fixed sequence of steps over the SQLite store:
//
//	derive     derived tables, review.csv and data_quality.csv
//	summarize  the seven summary tables, the text report and the workbook
//	visualize  the figures, their captions and the excluded points
//
// Manager executes registered steps in dependency order. After a step
// returns, every artifact it promised through ProducedOutputs is checked
// on disk; a missing, empty or unreadable artifact fails the step. The
// first failure halts the run and the remaining steps are recorded as
// skipped. A run started for a single step derives in memory when no
// earlier step of the same run produced the derived dataset.
//
// Every run writes a RunManifest (run_manifest.json) with per-step status,
// timings and verified artifacts, and can print a PASS/FAIL/SKIP summary.
package operations
