package charts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/energy-modelling-hub/water-value-database/internal/errors"
	"github.com/energy-modelling-hub/water-value-database/internal/testutil"
	"github.com/energy-modelling-hub/water-value-database/internal/validation"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

func testRenderer() *Renderer {
	cfg := DefaultConfig()
	cfg.DPI = 72
	cfg.CompletenessExclude = []string{domain.ColSubState}
	return NewRenderer(cfg, nil, nil)
}

// withoutColumn copies t with one column removed
func withoutColumn(t *domain.Table, name string) *domain.Table {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return t
	}
	cols := append([]string{}, t.Columns[:idx]...)
	cols = append(cols, t.Columns[idx+1:]...)
	rows := make([]domain.Row, len(t.Rows))
	for i, r := range t.Rows {
		row := append(domain.Row{}, r[:idx]...)
		rows[i] = append(row, r[idx+1:]...)
	}
	return domain.NewTable(t.Name, cols, rows)
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	raw := testutil.SampleDataset()
	derived := derivedSample(t)

	res, err := testRenderer().Render(context.Background(), raw, derived, dir)
	require.NoError(t, err)

	require.Len(t, res.Figures, len(ChartIDs()))
	for i, id := range ChartIDs() {
		fig := res.Figures[i]
		assert.Equal(t, id, fig.ID)
		assert.Equal(t, filepath.Join(dir, "fig_"+id+".png"), fig.PNG)
		assert.Equal(t, filepath.Join(dir, "fig_"+id+".pdf"), fig.PDF)
		assert.NotEmpty(t, fig.Caption)
	}

	artifacts := res.Artifacts()
	assert.Len(t, artifacts, 2*len(ChartIDs())+2)
	v := validation.NewFileValidator(nil)
	for _, artifact := range artifacts {
		require.NoError(t, v.ValidateArtifact(artifact))
	}

	captions, err := os.ReadFile(filepath.Join(dir, CaptionsFile))
	require.NoError(t, err)
	assert.Contains(t, string(captions), "[fig_wv_value_ranges]")
	assert.Contains(t, string(captions), "Completeness summary")

	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "WV5", res.Excluded[0].WVID)
	excluded, err := os.ReadFile(filepath.Join(dir, ExcludedPointsFile))
	require.NoError(t, err)
	assert.Contains(t, string(excluded), "WV5")

	require.Len(t, res.Completeness, 3)
}

func TestRender_MissingColumnFailsDependentCharts(t *testing.T) {
	dir := t.TempDir()
	derived := derivedSample(t)
	derived.Classification = withoutColumn(derived.Classification, domain.ColMethodClean)

	res, err := testRenderer().Render(context.Background(), testutil.SampleDataset(), derived, dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMissingColumn))
	assert.Contains(t, err.Error(), domain.ColMethodClean)
	require.NotNil(t, res)

	failed := []string{ChartMethodDonut, ChartYearMethod, ChartCategoryMethodHeatmap}
	for _, id := range failed {
		assert.NoFileExists(t, filepath.Join(dir, FigureName(id)+".png"))
		assert.NotContains(t, readCaptions(t, dir), "["+FigureName(id)+"]")
	}

	assert.Len(t, res.Figures, len(ChartIDs())-len(failed))
	for _, fig := range res.Figures {
		assert.FileExists(t, fig.PNG)
		assert.FileExists(t, fig.PDF)
	}
}

func TestRender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testRenderer().Render(ctx, testutil.SampleDataset(), derivedSample(t), t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func readCaptions(t *testing.T, dir string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, CaptionsFile))
	require.NoError(t, err)
	return string(b)
}

func TestFormatCaptions(t *testing.T) {
	out := FormatCaptions(
		[]Figure{{ID: ChartMethodDonut, Caption: "Share of methods."}},
		[]CompletenessSummary{{Table: "screening", Columns: 4, Complete: 2, Partial: 1, Empty: 1, Average: 62.5}},
	)

	assert.True(t, strings.HasPrefix(out, "Water Value Database: Figure Captions\n"+strings.Repeat("=", 72)+"\n\n"))
	assert.Contains(t, out, "[fig_method_donut]\nShare of methods.\n\n"+strings.Repeat("─", 72))
	assert.Contains(t, out, "screening:\n  Columns: 4\n  100% complete: 2 (50%)\n  Partial: 1 (25%)\n  Empty: 1 (25%)\n")
	assert.Contains(t, out, "Average completeness: 62.5%")
}

func TestFormatCaptions_NoCompleteness(t *testing.T) {
	out := FormatCaptions(nil, nil)
	assert.NotContains(t, out, "Completeness summary")
}

func TestDiverging(t *testing.T) {
	at := func(pct float64) colorful.Color {
		c, ok := colorful.MakeColor(Diverging(pct, 50))
		require.True(t, ok)
		return c
	}

	assert.Less(t, at(0).DistanceRgb(divergingLow), 0.01)
	assert.Less(t, at(50).DistanceRgb(divergingMid), 0.01)
	assert.Less(t, at(100).DistanceRgb(divergingHigh), 0.01)
	assert.Equal(t, at(100).Hex(), at(140).Hex(), "values above 100 clamp")
	assert.Equal(t, at(73.5).Hex(), at(73.5).Hex())
	assert.Greater(t, at(25).DistanceRgb(divergingLow), 0.05)
}

func TestTextColor(t *testing.T) {
	assert.Equal(t, labelLight, textColor(sequentialHigh))
	assert.Equal(t, labelDark, textColor(sequentialLow))
}

func TestChartIDs(t *testing.T) {
	ids := ChartIDs()
	assert.Len(t, ids, 9)
	assert.Equal(t, "fig_completeness_heatmap", FigureName(ids[0]))
}

func TestNewRenderer_Defaults(t *testing.T) {
	r := NewRenderer(Config{}, nil, nil)
	assert.Equal(t, 300, r.cfg.DPI)
	assert.Equal(t, 15, r.cfg.TopRegions)
	assert.Equal(t, 10.0, r.cfg.WidthInches)
}
