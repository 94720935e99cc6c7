package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/energy-modelling-hub/water-value-database/internal/errors"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wvdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoad tests the Load function with various scenarios
func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "default configuration with no env vars",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "console", cfg.Logging.Output)
				assert.Equal(t, "data/water_value_database.db", cfg.Paths.DBPath)
				assert.Equal(t, "output", cfg.Paths.OutputDir)
				assert.Equal(t, 300, cfg.Charts.DPI)
				assert.Equal(t, 50.0, cfg.Charts.CompletenessMidpoint)
				assert.Equal(t, 1, cfg.Charts.CompletenessPrecision)
				assert.Equal(t, 15, cfg.Charts.TopRegions)
				assert.Equal(t, 3, cfg.Summary.RegionMinCount)
				assert.Empty(t, cfg.Charts.CompletenessExclude)
				assert.True(t, cfg.Telemetry.Enabled)
			},
		},
		{
			name: "file overrides defaults",
			file: `
charts:
  completeness_midpoint: 75
  completeness_exclude: [Notes, Title]
summary:
  region_min_count: 5
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 75.0, cfg.Charts.CompletenessMidpoint)
				assert.Equal(t, []string{"Notes", "Title"}, cfg.Charts.CompletenessExclude)
				assert.Equal(t, 5, cfg.Summary.RegionMinCount)
				assert.Equal(t, 300, cfg.Charts.DPI, "keys absent from the file keep defaults")
			},
		},
		{
			name: "environment overrides file",
			file: "charts:\n  dpi: 150\n",
			env: map[string]string{
				"WVDB_CHARTS_DPI":        "600",
				"WVDB_LOGGING_LEVEL":     "DEBUG",
				"WVDB_PATHS_DB_PATH":     "/tmp/wv.db",
				"WVDB_TELEMETRY_ENABLED": "false",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 600, cfg.Charts.DPI)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "/tmp/wv.db", cfg.Paths.DBPath)
				assert.False(t, cfg.Telemetry.Enabled)
			},
		},
		{
			name:    "midpoint out of range",
			env:     map[string]string{"WVDB_CHARTS_COMPLETENESS_MIDPOINT": "150"},
			wantErr: true,
		},
		{
			name:    "unsupported log output",
			file:    "logging:\n  output: syslog\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "charts: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			configFile := ""
			if tt.file != "" {
				configFile = writeConfigFile(t, tt.file)
			}

			cfg, err := Load(configFile)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeConfig, apperrors.TypeOf(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_InvalidValueIsConfigError(t *testing.T) {
	_, err := Load(writeConfigFile(t, "charts:\n  dpi: 10\n"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeConfig, apperrors.TypeOf(err))
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestNewPaths(t *testing.T) {
	base := t.TempDir()

	t.Run("sub-directories default under output", func(t *testing.T) {
		paths, err := NewPaths(PathsConfig{
			DBPath:    filepath.Join(base, "wv.db"),
			OutputDir: filepath.Join(base, "out"),
			LogsDir:   filepath.Join(base, "logs"),
		})
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(base, "out", "derived"), paths.DerivedDir)
		assert.Equal(t, filepath.Join(base, "out", "tables"), paths.TablesDir)
		assert.Equal(t, filepath.Join(base, "out", "figures"), paths.FiguresDir)
		assert.Equal(t, filepath.Join(base, "out", "run_manifest.json"), paths.ManifestFile)
		assert.Equal(t, filepath.Join(base, "out", "tables", "table_1_classification.csv"),
			paths.GetTablePath("table_1_classification.csv"))
	})

	t.Run("relative paths become absolute", func(t *testing.T) {
		paths, err := NewPaths(PathsConfig{DBPath: "data/wv.db", OutputDir: "output", LogsDir: "logs"})
		require.NoError(t, err)

		assert.True(t, filepath.IsAbs(paths.DBPath))
		assert.True(t, filepath.IsAbs(paths.OutputDir))
		assert.True(t, filepath.IsAbs(paths.FiguresDir))
	})

	t.Run("explicit sub-directory wins", func(t *testing.T) {
		figures := filepath.Join(base, "elsewhere")
		paths, err := NewPaths(PathsConfig{DBPath: "x.db", OutputDir: base, FiguresDir: figures, LogsDir: base})
		require.NoError(t, err)
		assert.Equal(t, figures, paths.FiguresDir)
	})
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	paths, err := NewPaths(PathsConfig{
		DBPath:    filepath.Join(base, "wv.db"),
		OutputDir: filepath.Join(base, "out"),
		LogsDir:   filepath.Join(base, "logs"),
	})
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirectories())
	for _, dir := range []string{paths.DerivedDir, paths.TablesDir, paths.FiguresDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	assert.False(t, FileExists(paths.DBPath))
	assert.False(t, FileExists(paths.LogsDir), "directories are not files")

	require.NoError(t, os.WriteFile(paths.DBPath, []byte("x"), 0644))
	assert.True(t, FileExists(paths.DBPath))

	assert.Equal(t, filepath.Join(paths.LogsDir, LogFileName), paths.LogFile(""))
	assert.Equal(t, "custom.log", paths.LogFile("custom.log"))
}
