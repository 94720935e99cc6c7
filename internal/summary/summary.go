// Package summary aggregates the derived tables into the published summary
// tables: category, method, region and year counts, the water value
// key figures, the per-purpose breakdown and descriptive statistics of the
// converted values.
//
// Each table is computed independently. A table whose input column is
// missing fails on its own and its siblings are still produced. Output is
// deterministic: every ordering has an explicit tie-break.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/energy-modelling-hub/water-value-database/internal/errors"
	"github.com/energy-modelling-hub/water-value-database/internal/infrastructure"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// Table IDs, which are also the CSV base names.
const (
	TableClassification = "table_1_classification"
	TableMethods        = "table_2_methods"
	TableRegions        = "table_3_regions"
	TableYears          = "table_4_years"
	TableWVSummary      = "table_5_wv_summary"
	TableWVPurpose      = "table_6_wv_purpose"
	TableWVValueStats   = "table_7_wv_value_stats"
)

// Config holds options for the Summarizer
type Config struct {
	Workers        int // Upper bound on tables computed at once
	RegionMinCount int // Regions with fewer papers fold into "Other"
}

// Summarizer computes the summary tables
type Summarizer struct {
	logger *slog.Logger
	config Config
}

// NewSummarizer creates a Summarizer, filling unset options with defaults
func NewSummarizer(logger *slog.Logger, config Config) *Summarizer {
	logger = infrastructure.WithComponent(logger, "summary")
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.RegionMinCount <= 0 {
		config.RegionMinCount = 3
	}
	return &Summarizer{logger: logger, config: config}
}

type definition struct {
	id    string
	title string
	build func(*domain.Dataset) (*domain.SummaryTable, error)
}

func (s *Summarizer) definitions() []definition {
	return []definition{
		{TableClassification, "Papers by Classification Category", classificationTable},
		{TableMethods, "Papers by Method Type", methodTable},
		{TableRegions, "Papers by Study Region / Country", func(ds *domain.Dataset) (*domain.SummaryTable, error) {
			return regionTable(ds, s.config.RegionMinCount)
		}},
		{TableYears, "Papers by Publication Year Range", yearTable},
		{TableWVSummary, "Water Value Summary Statistics", wvSummaryTable},
		{TableWVPurpose, "Water Values by Purpose", wvPurposeTable},
		{TableWVValueStats, "Converted Water Values by Purpose", wvValueStatsTable},
	}
}

// TableIDs lists every summary table in output order
func TableIDs() []string {
	defs := (&Summarizer{}).definitions()
	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.id
	}
	return ids
}

// Result holds the summary tables in output order, failed ones included
type Result struct {
	Tables []*domain.SummaryTable
}

// Failed returns the tables that could not be computed
func (r *Result) Failed() []*domain.SummaryTable {
	var out []*domain.SummaryTable
	for _, t := range r.Tables {
		if t.Failed() {
			out = append(out, t)
		}
	}
	return out
}

// Succeeded returns the tables that were computed
func (r *Result) Succeeded() []*domain.SummaryTable {
	var out []*domain.SummaryTable
	for _, t := range r.Tables {
		if !t.Failed() {
			out = append(out, t)
		}
	}
	return out
}

// Table returns the table with the given ID, or nil
func (r *Result) Table(id string) *domain.SummaryTable {
	for _, t := range r.Tables {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Summarize computes every table from a derived dataset. Tables run
// concurrently and share no mutable state; a failing table is recorded in
// the Result and does not stop the others. Only cancellation is returned
// as an error.
func (s *Summarizer) Summarize(ctx context.Context, ds *domain.Dataset) (*Result, error) {
	defs := s.definitions()
	tables := make([]*domain.SummaryTable, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)

	for i, def := range defs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			table, err := def.build(ds)
			if err != nil {
				s.logger.ErrorContext(gctx, "Summary table failed",
					slog.String("table", def.id),
					slog.Bool("missing_column", apperrors.IsMissingColumn(err)),
					slog.String("error", err.Error()))
				table = &domain.SummaryTable{Error: err.Error()}
			} else {
				s.logger.DebugContext(gctx, "Summary table computed",
					slog.String("table", def.id),
					slog.Int("rows", len(table.Rows)),
					slog.Duration("duration", time.Since(start)))
			}
			table.ID = def.id
			table.Title = def.title
			tables[i] = table
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Tables: tables}
	s.logger.InfoContext(ctx, "Summary tables computed",
		slog.Int("succeeded", len(res.Succeeded())),
		slog.Int("failed", len(res.Failed())))
	return res, nil
}

// column fetches a column of a derived table, reporting an absent table or
// column as a MISSING_COLUMN error.
func column(t *domain.Table, table, name string) ([]domain.Value, error) {
	if t == nil {
		return nil, apperrors.NewMissingColumnError(table, name, fmt.Errorf("table %s is not loaded", table))
	}
	values, err := t.Column(name)
	if err != nil {
		return nil, apperrors.FromMissingColumn(err)
	}
	return values, nil
}
