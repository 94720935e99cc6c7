package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/energy-modelling-hub/water-value-database/internal/charts"
	"github.com/energy-modelling-hub/water-value-database/internal/config"
	"github.com/energy-modelling-hub/water-value-database/internal/derive"
	"github.com/energy-modelling-hub/water-value-database/internal/exporter"
	"github.com/energy-modelling-hub/water-value-database/internal/infrastructure"
	"github.com/energy-modelling-hub/water-value-database/internal/store"
	"github.com/energy-modelling-hub/water-value-database/internal/summary"
	"github.com/energy-modelling-hub/water-value-database/internal/validation"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// Derived artifact file names
const (
	ReviewFile      = "review.csv"
	DataQualityFile = "data_quality.csv"
)

// StageOptions carries what every stage needs
type StageOptions struct {
	Config  *config.Config
	Paths   *config.Paths
	Logger  *slog.Logger
	Metrics *infrastructure.PipelineMetrics
}

func (o *StageOptions) logger(stageID string) *slog.Logger {
	logger := o.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return logger.With(slog.String("stage", stageID))
}

// rawDataset returns the dataset as stored, reading it once per run
func (o *StageOptions) rawDataset(ctx context.Context, state *OperationState, logger *slog.Logger) (*domain.Dataset, error) {
	if ds, ok := state.RawDataset(); ok {
		return ds, nil
	}
	ds, err := store.LoadDataset(ctx, o.Paths.DBPath,
		store.WithLogger(logger),
		store.WithMetrics(o.Metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	state.SetContext(ContextKeyRawDataset, ds)
	return ds, nil
}

// deriveDataset runs the derivation rules and stores the result in state
func (o *StageOptions) deriveDataset(ctx context.Context, state *OperationState, logger *slog.Logger) (*derive.Result, error) {
	raw, err := o.rawDataset(ctx, state, logger)
	if err != nil {
		return nil, err
	}
	vocab, err := derive.LoadVocabulary(o.Config.Vocabulary.File)
	if err != nil {
		return nil, err
	}
	res, err := derive.New(vocab, logger).Derive(ctx, raw)
	if err != nil {
		return nil, err
	}
	state.SetContext(ContextKeyDerivedDataset, res.Dataset)
	return res, nil
}

// datasets returns the raw and derived datasets. When the derive stage did
// not run in this process the derivation is redone in memory.
func (o *StageOptions) datasets(ctx context.Context, state *OperationState, logger *slog.Logger) (raw, derived *domain.Dataset, err error) {
	raw, err = o.rawDataset(ctx, state, logger)
	if err != nil {
		return nil, nil, err
	}
	if ds, ok := state.DerivedDataset(); ok {
		return raw, ds, nil
	}
	logger.InfoContext(ctx, "No derived dataset in this run, deriving in memory")
	res, err := o.deriveDataset(ctx, state, logger)
	if err != nil {
		return nil, nil, err
	}
	return raw, res.Dataset, nil
}

// DeriveStage computes the derived columns and writes the derived tables
// together with the review and data quality reports.
type DeriveStage struct {
	BaseStage
	opts *StageOptions
}

// NewDeriveStage creates the derivation stage
func NewDeriveStage(opts *StageOptions) *DeriveStage {
	return &DeriveStage{
		BaseStage: NewBaseStage(StageIDDerive, StageNameDerive, nil),
		opts:      opts,
	}
}

// Execute derives the dataset and writes the derived artifacts
func (s *DeriveStage) Execute(ctx context.Context, state *OperationState) error {
	logger := s.opts.logger(s.ID())
	stepState := state.GetStage(s.ID())

	res, err := s.opts.deriveDataset(ctx, state, logger)
	if err != nil {
		return err
	}

	w := exporter.NewCSVWriter(logger)
	for _, name := range domain.TableNames {
		t := res.Dataset.Table(name)
		if t == nil {
			return fmt.Errorf("derived dataset has no %s table", name)
		}
		if err := w.WriteTable(s.opts.Paths.GetDerivedPath(name+".csv"), t); err != nil {
			return err
		}
		if stepState != nil {
			stepState.SetMetadata(name+"_rows", t.Len())
		}
	}

	if err := writeReview(w, s.opts.Paths.GetDerivedPath(ReviewFile), res.Issues); err != nil {
		return err
	}
	for kind, n := range res.IssueCounts() {
		s.opts.Metrics.AddDerivationIssues(ctx, string(kind), n)
	}

	raw, _ := state.RawDataset()
	checker := validation.NewQualityChecker(s.opts.Config.Quality.ConversionTolerance, logger)
	quality := checker.Check(ctx, raw)
	records := make([][]string, len(quality))
	for i, q := range quality {
		records[i] = q.Record()
	}
	if err := w.WriteSimpleCSV(s.opts.Paths.GetDerivedPath(DataQualityFile), validation.QualityHeaders, records); err != nil {
		return err
	}

	if stepState != nil {
		stepState.SetMetadata("review_issues", len(res.Issues))
		stepState.SetMetadata("quality_warnings", len(quality))
	}
	logger.InfoContext(ctx, "Derivation complete",
		slog.Int("review_issues", len(res.Issues)),
		slog.Int("quality_warnings", len(quality)))
	return ctx.Err()
}

// writeReview streams one review row per derivation issue
func writeReview(w *exporter.CSVWriter, path string, issues []derive.Issue) error {
	stream, err := w.CreateStreamWriter(path, derive.ReviewHeaders)
	if err != nil {
		return err
	}
	for _, is := range issues {
		if err := stream.WriteRecord(is.Record()); err != nil {
			stream.Close()
			return fmt.Errorf("write review row %d of %s: %w", is.Row, is.Table, err)
		}
	}
	return stream.Close()
}

// ProducedOutputs lists the derived tables and reports
func (s *DeriveStage) ProducedOutputs() []string {
	out := make([]string, 0, len(domain.TableNames)+2)
	for _, name := range domain.TableNames {
		out = append(out, s.opts.Paths.GetDerivedPath(name+".csv"))
	}
	return append(out,
		s.opts.Paths.GetDerivedPath(ReviewFile),
		s.opts.Paths.GetDerivedPath(DataQualityFile))
}

// SummaryStage computes the summary tables and writes them as CSV, a
// formatted text report and a workbook.
type SummaryStage struct {
	BaseStage
	opts *StageOptions
}

// NewSummaryStage creates the summary stage
func NewSummaryStage(opts *StageOptions) *SummaryStage {
	return &SummaryStage{
		BaseStage: NewBaseStage(StageIDSummarize, StageNameSummarize, []string{StageIDDerive}),
		opts:      opts,
	}
}

// Execute writes every table that could be computed, then fails if any
// table could not be.
func (s *SummaryStage) Execute(ctx context.Context, state *OperationState) error {
	logger := s.opts.logger(s.ID())
	stepState := state.GetStage(s.ID())

	_, derived, err := s.opts.datasets(ctx, state, logger)
	if err != nil {
		return err
	}

	summarizer := summary.NewSummarizer(logger, summary.Config{
		Workers:        s.opts.Config.Summary.Workers,
		RegionMinCount: s.opts.Config.Summary.RegionMinCount,
	})
	res, err := summarizer.Summarize(ctx, derived)
	if err != nil {
		return err
	}

	w := exporter.NewCSVWriter(logger)
	for _, t := range res.Succeeded() {
		if _, err := w.WriteSummaryTable(s.opts.Paths.TablesDir, t); err != nil {
			return err
		}
	}

	report := exporter.RenderReport("Water Value Database: Summary Tables", res.Tables)
	if err := writeFile(s.opts.Paths.GetTablePath(exporter.ReportFile), report); err != nil {
		return err
	}
	if err := exporter.WriteWorkbook(s.opts.Paths.GetTablePath(exporter.WorkbookFile), res.Tables); err != nil {
		return err
	}

	if stepState != nil {
		stepState.SetMetadata("tables_written", len(res.Succeeded()))
	}

	failed := res.Failed()
	if len(failed) == 0 {
		return nil
	}
	ids := make([]string, len(failed))
	for i, t := range failed {
		ids[i] = t.ID
		logger.ErrorContext(ctx, "Summary table not computed",
			slog.String("table", t.ID),
			slog.String("error", t.Error))
	}
	if stepState != nil {
		stepState.SetMetadata("tables_failed", ids)
	}
	return fmt.Errorf("%d summary tables failed: %s", len(failed), strings.Join(ids, ", "))
}

// ProducedOutputs lists the seven table CSVs, the report and the workbook
func (s *SummaryStage) ProducedOutputs() []string {
	var out []string
	for _, id := range summary.TableIDs() {
		out = append(out, s.opts.Paths.GetTablePath(id+".csv"))
	}
	return append(out,
		s.opts.Paths.GetTablePath(exporter.ReportFile),
		s.opts.Paths.GetTablePath(exporter.WorkbookFile))
}

// FigureStage renders the charts
type FigureStage struct {
	BaseStage
	opts *StageOptions
}

// NewFigureStage creates the figure stage
func NewFigureStage(opts *StageOptions) *FigureStage {
	return &FigureStage{
		BaseStage: NewBaseStage(StageIDVisualize, StageNameVisualize, []string{StageIDSummarize}),
		opts:      opts,
	}
}

// Execute renders every chart into the figures directory
func (s *FigureStage) Execute(ctx context.Context, state *OperationState) error {
	logger := s.opts.logger(s.ID())

	raw, derived, err := s.opts.datasets(ctx, state, logger)
	if err != nil {
		return err
	}

	c := s.opts.Config.Charts
	renderer := charts.NewRenderer(charts.Config{
		DPI:                   c.DPI,
		WidthInches:           c.WidthInches,
		HeightInches:          c.HeightInches,
		CompletenessMidpoint:  c.CompletenessMidpoint,
		CompletenessPrecision: c.CompletenessPrecision,
		CompletenessExclude:   c.CompletenessExclude,
		TopRegions:            c.TopRegions,
	}, logger, s.opts.Metrics)

	res, err := renderer.Render(ctx, raw, derived, s.opts.Paths.FiguresDir)
	if res != nil {
		if stepState := state.GetStage(s.ID()); stepState != nil {
			stepState.SetMetadata("figures", len(res.Figures))
			stepState.SetMetadata("excluded_points", len(res.Excluded))
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("figures incomplete: %w", err)
	}
	return nil
}

// ProducedOutputs lists a PNG and a PDF per chart, the captions and the
// excluded points file.
func (s *FigureStage) ProducedOutputs() []string {
	var out []string
	for _, id := range charts.ChartIDs() {
		name := charts.FigureName(id)
		out = append(out,
			s.opts.Paths.GetFigurePath(name+".png"),
			s.opts.Paths.GetFigurePath(name+".pdf"))
	}
	return append(out,
		s.opts.Paths.GetFigurePath(charts.CaptionsFile),
		s.opts.Paths.GetFigurePath(charts.ExcludedPointsFile))
}

// NewPipeline registers the three stages and returns a manager bound to the
// configured store and output directory.
func NewPipeline(opts *StageOptions, managerOpts ...ManagerOption) (*Manager, error) {
	if opts == nil || opts.Config == nil || opts.Paths == nil {
		return nil, errors.New("pipeline needs a config and resolved paths")
	}

	base := []ManagerOption{
		WithLogger(opts.Logger),
		WithTracer(NewOperationTracer(nil, opts.Metrics)),
		WithStore(opts.Paths.DBPath),
		WithManifest(manifestPath(opts.Paths), opts.Paths.OutputDir),
	}
	m := NewManager(NewRegistry(), NewConfig(), append(base, managerOpts...)...)
	for _, step := range []Step{
		NewDeriveStage(opts),
		NewSummaryStage(opts),
		NewFigureStage(opts),
	} {
		if err := m.RegisterStage(step); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func manifestPath(p *config.Paths) string {
	if p.ManifestFile != "" {
		return p.ManifestFile
	}
	return filepath.Join(p.OutputDir, ManifestFile)
}
