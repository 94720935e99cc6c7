// Package charts renders the figures of the water value database.
//
// Every chart is written twice, as a raster PNG at the configured DPI and
// as a vector PDF, under the name fig_<id>. Aggregation is kept apart from
// drawing: the exported functions in data.go compute what a chart shows and
// are deterministic in data points, axis ranges and category order.
//
// A chart that cannot be built (for example because a column is missing) is
// reported and the remaining charts are still rendered. The caption file
// lists only the charts that were written.
package charts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	apperrors "github.com/energy-modelling-hub/water-value-database/internal/errors"
	"github.com/energy-modelling-hub/water-value-database/internal/exporter"
	"github.com/energy-modelling-hub/water-value-database/internal/infrastructure"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// Chart identifiers; the files are fig_<id>.png and fig_<id>.pdf.
const (
	ChartCompleteness          = "completeness_heatmap"
	ChartCategoryDistribution  = "category_distribution"
	ChartMethodDonut           = "method_donut"
	ChartGeographic            = "geographic_distribution"
	ChartYearMethod            = "year_method_stacked"
	ChartDatapointsByYear      = "wv_datapoints_by_year"
	ChartCategoryMethodHeatmap = "category_method_heatmap"
	ChartContinentPurpose      = "continent_purpose_heatmap"
	ChartValueRanges           = "wv_value_ranges"
)

const (
	CaptionsFile       = "figure_captions.txt"
	ExcludedPointsFile = "excluded_points.csv"
)

// Config controls figure rendering
type Config struct {
	DPI                   int
	WidthInches           float64
	HeightInches          float64
	CompletenessMidpoint  float64
	CompletenessPrecision int
	CompletenessExclude   []string
	TopRegions            int
}

// DefaultConfig returns the publication settings
func DefaultConfig() Config {
	return Config{
		DPI:                   300,
		WidthInches:           10,
		HeightInches:          6,
		CompletenessMidpoint:  50,
		CompletenessPrecision: 1,
		TopRegions:            15,
	}
}

// ChartIDs returns the chart identifiers in rendering order
func ChartIDs() []string {
	return []string{
		ChartCompleteness,
		ChartCategoryDistribution,
		ChartMethodDonut,
		ChartGeographic,
		ChartYearMethod,
		ChartDatapointsByYear,
		ChartCategoryMethodHeatmap,
		ChartContinentPurpose,
		ChartValueRanges,
	}
}

// FigureName returns the file stem of a chart
func FigureName(id string) string {
	return "fig_" + id
}

// Figure is one rendered chart
type Figure struct {
	ID      string
	Caption string
	PNG     string
	PDF     string
}

// Result lists what a render wrote
type Result struct {
	Figures      []Figure
	Excluded     []ExcludedPoint
	Completeness []CompletenessSummary
	CaptionsFile string
	ExcludedFile string
}

// Artifacts returns every file written, figures first
func (r *Result) Artifacts() []string {
	var out []string
	for _, f := range r.Figures {
		out = append(out, f.PNG, f.PDF)
	}
	if r.CaptionsFile != "" {
		out = append(out, r.CaptionsFile)
	}
	if r.ExcludedFile != "" {
		out = append(out, r.ExcludedFile)
	}
	return out
}

// Renderer draws the charts from the raw and derived datasets
type Renderer struct {
	cfg     Config
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewRenderer creates a renderer. Zero config fields take their defaults.
func NewRenderer(cfg Config, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *Renderer {
	def := DefaultConfig()
	if cfg.DPI <= 0 {
		cfg.DPI = def.DPI
	}
	if cfg.WidthInches <= 0 {
		cfg.WidthInches = def.WidthInches
	}
	if cfg.HeightInches <= 0 {
		cfg.HeightInches = def.HeightInches
	}
	if cfg.TopRegions <= 0 {
		cfg.TopRegions = def.TopRegions
	}
	if cfg.CompletenessPrecision < 0 {
		cfg.CompletenessPrecision = def.CompletenessPrecision
	}
	return &Renderer{cfg: cfg, logger: infrastructure.WithComponent(logger, "charts"), metrics: metrics}
}

// built is a drawn chart before it is saved
type built struct {
	plot         *plot.Plot
	caption      string
	height       vg.Length
	excluded     []ExcludedPoint
	completeness []CompletenessSummary
}

type chartFunc func(raw, derived *domain.Dataset) (*built, error)

func (r *Renderer) builders() map[string]chartFunc {
	return map[string]chartFunc{
		ChartCompleteness:          r.completenessChart,
		ChartCategoryDistribution:  r.categoryChart,
		ChartMethodDonut:           r.methodDonut,
		ChartGeographic:            r.geographicChart,
		ChartYearMethod:            r.yearMethodChart,
		ChartDatapointsByYear:      r.datapointsByYearChart,
		ChartCategoryMethodHeatmap: r.categoryMethodHeatmap,
		ChartContinentPurpose:      r.continentPurposeHeatmap,
		ChartValueRanges:           r.valueRangesChart,
	}
}

// Render draws every chart into dir, then writes the caption file and the
// excluded points file. raw is the dataset as stored and feeds the
// completeness chart; derived feeds the rest. A failed chart does not stop
// the others; the failures are returned joined.
func (r *Renderer) Render(ctx context.Context, raw, derived *domain.Dataset, dir string) (*Result, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create figures directory: %w", err)
	}

	tracer := otel.Tracer(infrastructure.MeterName)
	builders := r.builders()
	res := &Result{}
	var failures []error

	for _, id := range ChartIDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chartCtx, span := tracer.Start(ctx, "chart."+id)
		span.SetAttributes(attribute.String("chart", id))
		start := time.Now()

		fig, b, err := r.renderOne(id, builders[id], raw, derived, dir)
		if err != nil {
			err = apperrors.NewRenderError(id, err)
			infrastructure.RecordError(chartCtx, err)
			span.End()
			r.logger.ErrorContext(ctx, "Chart failed",
				slog.String("chart", id),
				slog.String("error", err.Error()))
			failures = append(failures, err)
			continue
		}
		span.End()

		res.Figures = append(res.Figures, *fig)
		res.Excluded = append(res.Excluded, b.excluded...)
		if b.completeness != nil {
			res.Completeness = b.completeness
		}
		if n := len(b.excluded); n > 0 {
			r.metrics.AddExcludedPoints(ctx, id, n)
			for _, p := range b.excluded {
				r.logger.WarnContext(ctx, "Point excluded from chart",
					slog.String("chart", id),
					slog.String("wv_id", p.WVID),
					slog.Float64("value", p.Value),
					slog.String("reason", p.Reason))
			}
		}
		r.logger.InfoContext(ctx, "Chart rendered",
			slog.String("chart", id),
			slog.String("png", fig.PNG),
			slog.String("pdf", fig.PDF),
			slog.Duration("duration", time.Since(start)))
	}

	res.CaptionsFile = filepath.Join(dir, CaptionsFile)
	if err := os.WriteFile(res.CaptionsFile, []byte(FormatCaptions(res.Figures, res.Completeness)), 0644); err != nil {
		return nil, fmt.Errorf("write captions: %w", err)
	}

	res.ExcludedFile = filepath.Join(dir, ExcludedPointsFile)
	records := make([][]string, len(res.Excluded))
	for i, p := range res.Excluded {
		records[i] = p.Record()
	}
	if err := exporter.NewCSVWriter(r.logger).WriteSimpleCSV(res.ExcludedFile, ExcludedHeaders, records); err != nil {
		return nil, fmt.Errorf("write excluded points: %w", err)
	}

	return res, errors.Join(failures...)
}

func (r *Renderer) renderOne(id string, build chartFunc, raw, derived *domain.Dataset, dir string) (fig *Figure, b *built, err error) {
	// gonum/plot panics on degenerate input such as an empty nominal axis
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while drawing: %v", rec)
		}
	}()

	b, err = build(raw, derived)
	if err != nil {
		return nil, nil, err
	}

	size := canvasSize{
		width:  vg.Length(r.cfg.WidthInches) * vg.Inch,
		height: vg.Length(r.cfg.HeightInches) * vg.Inch,
		dpi:    r.cfg.DPI,
	}
	if b.height > size.height {
		size.height = b.height
	}

	png, pdf, err := savePlot(b.plot, size, dir, FigureName(id))
	if err != nil {
		return nil, nil, err
	}
	return &Figure{ID: id, Caption: b.caption, PNG: png, PDF: pdf}, b, nil
}

// FormatCaptions renders the caption file: one block per figure, then the
// completeness summary.
func FormatCaptions(figures []Figure, completeness []CompletenessSummary) string {
	rule := strings.Repeat("─", 72)

	var sb strings.Builder
	sb.WriteString("Water Value Database: Figure Captions\n")
	sb.WriteString(strings.Repeat("=", 72) + "\n\n")
	for _, f := range figures {
		fmt.Fprintf(&sb, "[%s]\n%s\n\n%s\n\n", FigureName(f.ID), f.Caption, rule)
	}

	if len(completeness) > 0 {
		sb.WriteString("Completeness summary\n\n")
		for _, s := range completeness {
			fmt.Fprintf(&sb, "%s:\n", s.Table)
			fmt.Fprintf(&sb, "  Columns: %d\n", s.Columns)
			fmt.Fprintf(&sb, "  100%% complete: %d (%s)\n", s.Complete, share(s.Complete, s.Columns))
			fmt.Fprintf(&sb, "  Partial: %d (%s)\n", s.Partial, share(s.Partial, s.Columns))
			fmt.Fprintf(&sb, "  Empty: %d (%s)\n", s.Empty, share(s.Empty, s.Columns))
			fmt.Fprintf(&sb, "  Average completeness: %.1f%%\n\n", s.Average)
		}
	}
	return sb.String()
}

func share(n, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.0f%%", float64(n)/float64(total)*100)
}

// Percent formats a percentage with one decimal
func Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
