package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths
// This is the single source of truth for ALL file paths in the pipeline
type Paths struct {
	DBPath     string
	OutputDir  string
	DerivedDir string
	TablesDir  string
	FiguresDir string
	LogsDir    string

	// Run metadata written next to the artifacts
	ManifestFile string
	MetricsFile  string
	TraceFile    string
}

// NewPaths resolves the configured paths to absolute paths. Relative paths
// are taken from the working directory, which is the repository root when
// the pipeline runs as documented.
func NewPaths(cfg PathsConfig) (*Paths, error) {
	abs := func(p string) (string, error) {
		if p == "" || filepath.IsAbs(p) {
			return p, nil
		}
		resolved, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("failed to resolve path %s: %w", p, err)
		}
		return resolved, nil
	}

	outputDir, err := abs(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	sub := func(configured, name string) (string, error) {
		if configured == "" {
			return filepath.Join(outputDir, name), nil
		}
		return abs(configured)
	}

	p := &Paths{OutputDir: outputDir}
	if p.DBPath, err = abs(cfg.DBPath); err != nil {
		return nil, err
	}
	if p.DerivedDir, err = sub(cfg.DerivedDir, "derived"); err != nil {
		return nil, err
	}
	if p.TablesDir, err = sub(cfg.TablesDir, "tables"); err != nil {
		return nil, err
	}
	if p.FiguresDir, err = sub(cfg.FiguresDir, "figures"); err != nil {
		return nil, err
	}
	if p.LogsDir, err = abs(cfg.LogsDir); err != nil {
		return nil, err
	}

	p.ManifestFile = filepath.Join(outputDir, "run_manifest.json")
	p.MetricsFile = filepath.Join(outputDir, "metrics.prom")
	p.TraceFile = filepath.Join(outputDir, "trace.json")

	return p, nil
}

// GetPaths resolves the paths of a loaded configuration.
func (c *Config) GetPaths() (*Paths, error) {
	return NewPaths(c.Paths)
}

// EnsureDirectories creates all output directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.OutputDir,
		p.DerivedDir,
		p.TablesDir,
		p.FiguresDir,
		p.LogsDir,
	}

	logger := slog.Default()

	for _, dir := range directories {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}

		logger.Debug("Ensured directory exists",
			slog.String("directory", dir))
	}

	return nil
}

// GetDerivedPath returns the path of a derived-stage artifact
func (p *Paths) GetDerivedPath(filename string) string {
	return filepath.Join(p.DerivedDir, filename)
}

// GetTablePath returns the path of a summary-stage artifact
func (p *Paths) GetTablePath(filename string) string {
	return filepath.Join(p.TablesDir, filename)
}

// GetFigurePath returns the path of a visualization-stage artifact
func (p *Paths) GetFigurePath(filename string) string {
	return filepath.Join(p.FiguresDir, filename)
}

// LogFileName is the log file written under LogsDir when logging.file_path
// is not set.
const LogFileName = "wvdb.log"

// GetLogPath returns the path of a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// LogFile returns the configured log file, or LogFileName under LogsDir
func (p *Paths) LogFile(configured string) string {
	if configured != "" {
		return configured
	}
	return p.GetLogPath(LogFileName)
}

// LogPathResolution logs the resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("Path resolution summary",
		slog.String("db", p.DBPath),
		slog.Group("directories",
			slog.String("output", p.OutputDir),
			slog.String("derived", p.DerivedDir),
			slog.String("tables", p.TablesDir),
			slog.String("figures", p.FiguresDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("run_files",
			slog.String("manifest", p.ManifestFile),
			slog.String("metrics", p.MetricsFile),
			slog.String("trace", p.TraceFile),
		))
}

// FileExists reports whether path exists and is a regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
