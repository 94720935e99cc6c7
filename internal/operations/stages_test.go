package operations

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energy-modelling-hub/water-value-database/internal/charts"
	"github.com/energy-modelling-hub/water-value-database/internal/config"
	"github.com/energy-modelling-hub/water-value-database/internal/derive"
	"github.com/energy-modelling-hub/water-value-database/internal/summary"
	"github.com/energy-modelling-hub/water-value-database/internal/testutil"
	"github.com/energy-modelling-hub/water-value-database/internal/validation"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

func stageOptions(t *testing.T) *StageOptions {
	t.Helper()
	return stageOptionsFor(t, testutil.SampleDataset())
}

func stageOptionsFor(t *testing.T, ds *domain.Dataset) *StageOptions {
	t.Helper()

	dir := t.TempDir()
	dbPath := testutil.WriteStore(t, dir, ds)

	cfg := config.Default()
	cfg.Paths.DBPath = dbPath
	cfg.Paths.OutputDir = filepath.Join(dir, "output")
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")
	cfg.Charts.DPI = 72

	paths, err := cfg.GetPaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	return &StageOptions{Config: cfg, Paths: paths, Logger: discardLogger()}
}

func newTestPipeline(t *testing.T, opts *StageOptions) *Manager {
	t.Helper()
	m, err := NewPipeline(opts)
	require.NoError(t, err)
	return m
}

func TestNewPipeline_Order(t *testing.T) {
	m := newTestPipeline(t, stageOptions(t))
	ordered, err := m.GetRegistry().GetDependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, StageIDs(), stepIDs(ordered))

	_, err = NewPipeline(nil)
	assert.Error(t, err)
}

func TestPipeline_FullRun(t *testing.T) {
	opts := stageOptions(t)
	m := newTestPipeline(t, opts)

	resp, err := m.Execute(context.Background(), OperationRequest{})
	require.NoError(t, err)
	assert.Equal(t, OperationStatusCompleted, resp.Status)

	v := validation.NewFileValidator(discardLogger())
	for _, id := range StageIDs() {
		step, err := m.GetRegistry().Get(id)
		require.NoError(t, err)
		for _, artifact := range step.ProducedOutputs() {
			assert.NoError(t, v.ValidateArtifact(artifact), id)
		}
	}

	manifest, err := LoadManifestFromFile(opts.Paths.ManifestFile)
	require.NoError(t, err)
	assert.Equal(t, ManifestStatusCompleted, manifest.Status)
	passed, failed, skipped := manifest.Counts()
	assert.Equal(t, 3, passed)
	assert.Zero(t, failed)
	assert.Zero(t, skipped)

	derived, _ := manifest.Stage(StageIDDerive)
	assert.Contains(t, derived.Artifacts, "derived/review.csv")
	assert.EqualValues(t, 6, derived.Metadata["screening_rows"])

	figures, _ := manifest.Stage(StageIDVisualize)
	assert.Len(t, figures.Artifacts, 20)
	assert.EqualValues(t, 9, figures.Metadata["figures"])
}

func TestPipeline_NonFiniteValues(t *testing.T) {
	ds := testutil.SampleDataset()
	idx := ds.WaterValues.ColumnIndex(domain.ColWVConverted)
	require.GreaterOrEqual(t, idx, 0)
	ds.WaterValues.Rows[0][idx] = domain.Text("NaN")
	ds.WaterValues.Rows[1][idx] = domain.Text("Inf")

	opts := stageOptionsFor(t, ds)
	m := newTestPipeline(t, opts)

	resp, err := m.Execute(context.Background(), OperationRequest{})
	require.NoError(t, err)
	assert.Equal(t, OperationStatusCompleted, resp.Status)

	review, err := os.ReadFile(opts.Paths.GetDerivedPath(ReviewFile))
	require.NoError(t, err)
	assert.Contains(t, string(review), "NaN")
	assert.Contains(t, string(review), "Inf")

	stats, err := os.ReadFile(opts.Paths.GetTablePath(summary.TableWVValueStats + ".csv"))
	require.NoError(t, err)
	assert.NotContains(t, string(stats), "NaN")
	assert.NotContains(t, string(stats), "Inf")

	assert.FileExists(t, opts.Paths.GetFigurePath("fig_"+charts.ChartValueRanges+".png"))
	assert.FileExists(t, opts.Paths.GetFigurePath("fig_"+charts.ChartValueRanges+".pdf"))
}

func TestPipeline_DerivedArtifacts(t *testing.T) {
	opts := stageOptions(t)
	m := newTestPipeline(t, opts)

	_, err := m.Execute(context.Background(), OperationRequest{Step: StageIDDerive})
	require.NoError(t, err)

	csv, err := os.ReadFile(opts.Paths.GetDerivedPath(domain.TableWaterValues + ".csv"))
	require.NoError(t, err)
	assert.Contains(t, string(csv), "WV7")

	review, err := os.ReadFile(opts.Paths.GetDerivedPath(ReviewFile))
	require.NoError(t, err)
	for _, h := range derive.ReviewHeaders {
		assert.Contains(t, string(review), h)
	}
	assert.Contains(t, string(review), string(derive.IssueParse))

	quality, err := os.ReadFile(opts.Paths.GetDerivedPath(DataQualityFile))
	require.NoError(t, err)
	assert.Contains(t, string(quality), "WV7")

	// later steps were not requested
	assert.NoFileExists(t, opts.Paths.GetTablePath("table_1_classification.csv"))
}

func TestPipeline_SingleStepDerivesInMemory(t *testing.T) {
	opts := stageOptions(t)
	m := newTestPipeline(t, opts)

	_, err := m.Execute(context.Background(), OperationRequest{Step: StageIDSummarize})
	require.NoError(t, err)

	assert.FileExists(t, opts.Paths.GetTablePath("table_7_wv_value_stats.csv"))
	assert.NoFileExists(t, opts.Paths.GetDerivedPath(ReviewFile))
}

func TestPipeline_FigureFailureFailsRun(t *testing.T) {
	opts := stageOptions(t)
	require.NoError(t, os.RemoveAll(opts.Paths.FiguresDir))
	require.NoError(t, os.WriteFile(opts.Paths.FiguresDir, []byte("not a directory"), 0644))
	m := newTestPipeline(t, opts)

	resp, err := m.Execute(context.Background(), OperationRequest{})
	require.Error(t, err)
	assert.Equal(t, StageIDVisualize, StepOf(err))
	assert.Equal(t, OperationStatusFailed, resp.Status)

	manifest, err := LoadManifestFromFile(opts.Paths.ManifestFile)
	require.NoError(t, err)
	passed, failed, _ := manifest.Counts()
	assert.Equal(t, 2, passed)
	assert.Equal(t, 1, failed)
	assert.Contains(t, manifest.Summary(), "FAIL  visualize")
}
