package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energy-modelling-hub/water-value-database/internal/operations"
	"github.com/energy-modelling-hub/water-value-database/internal/testutil"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// writeConfig writes a config that keeps every file under dir
func writeConfig(t *testing.T, dir, dbPath string) string {
	t.Helper()
	cfg := fmt.Sprintf(`logging:
  level: warn
  output: console
paths:
  db_path: %q
  output_dir: %q
  logs_dir: %q
charts:
  dpi: 72
`, dbPath, filepath.Join(dir, "output"), filepath.Join(dir, "logs"))

	path := filepath.Join(dir, "wvdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

func TestCLI_RunAllStages(t *testing.T) {
	dir := t.TempDir()
	dbPath := testutil.WriteStore(t, dir, testutil.SampleDataset())
	cfg := writeConfig(t, dir, dbPath)

	res := runCLI(t, "--config", cfg, "run")
	require.Equal(t, 0, res.code, res.stderr)

	assert.Contains(t, res.stdout, "PASS  derive")
	assert.Contains(t, res.stdout, "PASS  summarize")
	assert.Contains(t, res.stdout, "PASS  visualize")
	assert.Contains(t, res.stdout, "ALL STEPS COMPLETED SUCCESSFULLY")

	out := filepath.Join(dir, "output")
	assert.FileExists(t, filepath.Join(out, operations.ManifestFile))
	assert.FileExists(t, filepath.Join(out, "metrics.prom"))
	assert.FileExists(t, filepath.Join(out, "tables", "table_1_classification.csv"))
	assert.FileExists(t, filepath.Join(out, "figures", "fig_wv_value_ranges.pdf"))
}

func TestCLI_SingleStageCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := testutil.WriteStore(t, dir, testutil.SampleDataset())
	cfg := writeConfig(t, dir, dbPath)

	res := runCLI(t, "--config", cfg, "summarize")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "SKIP  derive")
	assert.Contains(t, res.stdout, "PASS  summarize")
	assert.NotContains(t, res.stdout, "INCOMPLETE")

	res = runCLI(t, "--config", cfg, "run", "--step", "derive")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "PASS  derive")
	assert.FileExists(t, filepath.Join(dir, "output", "derived", "review.csv"))
}

func TestCLI_MissingStore(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, filepath.Join(dir, "absent.db"))

	res := runCLI(t, "--config", cfg, "run")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stdout, "not found")
	assert.Contains(t, res.stdout, "PIPELINE INCOMPLETE")

	manifest, err := operations.LoadManifestFromFile(filepath.Join(dir, "output", operations.ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, operations.ManifestStatusFailed, manifest.Status)
}

func TestCLI_RunIDIsLogTraceID(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, filepath.Join(dir, "absent.db"))

	res := runCLI(t, "--config", cfg, "run")
	require.Equal(t, 1, res.code)

	manifest, err := operations.LoadManifestFromFile(filepath.Join(dir, "output", operations.ManifestFile))
	require.NoError(t, err)
	assert.Len(t, manifest.ID, 36)
	assert.Equal(t, manifest.ID, manifest.TraceID)
	assert.Contains(t, res.stderr, `"trace_id":"`+manifest.ID+`"`)
}

func TestCLI_LogFileUnderLogsDir(t *testing.T) {
	dir := t.TempDir()
	dbPath := testutil.WriteStore(t, dir, testutil.SampleDataset())
	cfg := fmt.Sprintf(`logging:
  level: info
  output: file
paths:
  db_path: %q
  output_dir: %q
  logs_dir: %q
`, dbPath, filepath.Join(dir, "output"), filepath.Join(dir, "logs"))
	path := filepath.Join(dir, "wvdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))

	res := runCLI(t, "--config", path, "derive")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, res.stderr)

	logs, err := os.ReadFile(filepath.Join(dir, "logs", "wvdb.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logs), `"component":"derive"`)
}

func TestCLI_DBFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	dbPath := testutil.WriteStore(t, dir, testutil.SampleDataset())
	cfg := writeConfig(t, dir, filepath.Join(dir, "absent.db"))

	res := runCLI(t, "--config", cfg, "--db", dbPath, "derive")
	assert.Equal(t, 0, res.code, res.stderr)
}

func TestCLI_UnknownStep(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, filepath.Join(dir, "absent.db"))

	res := runCLI(t, "--config", cfg, "run", "--step", "publish")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "step not found")
}

func TestCLI_InitStore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "new.db")
	cfg := writeConfig(t, dir, dbPath)

	res := runCLI(t, "--config", cfg, "init-store")
	require.Equal(t, 0, res.code, res.stderr)
	assert.FileExists(t, dbPath)
	assert.Contains(t, res.stdout, "schema version")

	// running it again is a no-op migration
	res = runCLI(t, "--config", cfg, "init-store")
	assert.Equal(t, 0, res.code, res.stderr)
}

func TestCLI_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing config file", []string{"--config", "/nonexistent/wvdb.yaml", "run"}, "config file"},
		{"unknown command", []string{"publish"}, "unknown command"},
		{"extra argument", []string{"derive", "extra"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tt.args...)
			assert.Equal(t, 1, res.code)
			assert.Contains(t, res.stderr, tt.want)
		})
	}
}

func TestCLI_Help(t *testing.T) {
	res := runCLI(t, "--help")
	require.Equal(t, 0, res.code)
	for _, cmd := range []string{"init-store", "derive", "summarize", "visualize", "run"} {
		assert.Contains(t, res.stdout, cmd)
	}
}

func TestCLI_Version(t *testing.T) {
	res := runCLI(t, "--version")
	require.Equal(t, 0, res.code)
	assert.Equal(t, contracts.GetVersionString()+"\n", res.stdout)
}
