package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "github.com/energy-modelling-hub/water-value-database/internal/errors"
)

// EnvPrefix namespaces every environment variable, e.g. WVDB_CHARTS_DPI.
const EnvPrefix = "WVDB"

// Config represents the complete application configuration
type Config struct {
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Summary    SummaryConfig    `yaml:"summary" envconfig:"SUMMARY"`
	Charts     ChartsConfig     `yaml:"charts" envconfig:"CHARTS"`
	Quality    QualityConfig    `yaml:"quality" envconfig:"QUALITY"`
	Vocabulary VocabularyConfig `yaml:"vocabulary" envconfig:"VOCABULARY"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"eq=json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"` // empty: LogFileName under paths.logs_dir
}

// PathsConfig contains file system paths configuration. Empty sub-directories
// are placed under OutputDir.
type PathsConfig struct {
	DBPath     string `yaml:"db_path" envconfig:"DB_PATH" validate:"required"`
	OutputDir  string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	DerivedDir string `yaml:"derived_dir" envconfig:"DERIVED_DIR"`
	TablesDir  string `yaml:"tables_dir" envconfig:"TABLES_DIR"`
	FiguresDir string `yaml:"figures_dir" envconfig:"FIGURES_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// SummaryConfig controls the summary tables
type SummaryConfig struct {
	Workers        int `yaml:"workers" envconfig:"WORKERS" validate:"gte=1,lte=64"`
	RegionMinCount int `yaml:"region_min_count" envconfig:"REGION_MIN_COUNT" validate:"gte=1"`
}

// ChartsConfig controls figure rendering
type ChartsConfig struct {
	DPI                   int      `yaml:"dpi" envconfig:"DPI" validate:"gte=72,lte=1200"`
	WidthInches           float64  `yaml:"width_inches" envconfig:"WIDTH_INCHES" validate:"gt=0"`
	HeightInches          float64  `yaml:"height_inches" envconfig:"HEIGHT_INCHES" validate:"gt=0"`
	CompletenessMidpoint  float64  `yaml:"completeness_midpoint" envconfig:"COMPLETENESS_MIDPOINT" validate:"gte=0,lte=100"`
	CompletenessPrecision int      `yaml:"completeness_precision" envconfig:"COMPLETENESS_PRECISION" validate:"gte=0,lte=4"`
	CompletenessExclude   []string `yaml:"completeness_exclude" envconfig:"COMPLETENESS_EXCLUDE"`
	TopRegions            int      `yaml:"top_regions" envconfig:"TOP_REGIONS" validate:"gte=1"`
}

// QualityConfig controls the data quality report
type QualityConfig struct {
	ConversionTolerance float64 `yaml:"conversion_tolerance" envconfig:"CONVERSION_TOLERANCE" validate:"gt=0"`
}

// VocabularyConfig points at an optional YAML file extending the built-in
// controlled vocabularies.
type VocabularyConfig struct {
	File string `yaml:"file" envconfig:"FILE"`
}

// TelemetryConfig controls tracing and metrics output
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required_if=Enabled true"`
}

// Load builds the configuration from defaults, then the YAML file (if any),
// then WVDB_* environment variables, and validates the result.
//
// An explicit configFile must exist; with an empty configFile the usual
// locations are searched and a missing file is not an error.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = getConfigFilePath()
	} else if _, err := os.Stat(configFile); err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("config file %s", configFile), err)
	}

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to load config from %s", configFile), err)
		}
	}

	// Environment variables take precedence over the file
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, apperrors.NewConfigError("config validation failed", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file
// keep their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate normalises and validates the configuration
func (c *Config) validate() error {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Output = strings.ToLower(c.Logging.Output)

	if err := validator.New().Struct(c); err != nil {
		return err
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"wvdb.yaml",
		"configs/wvdb.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
		},
		Paths: PathsConfig{
			DBPath:    "data/water_value_database.db",
			OutputDir: "output",
			LogsDir:   "logs",
		},
		Summary: SummaryConfig{
			Workers:        4,
			RegionMinCount: 3,
		},
		Charts: ChartsConfig{
			DPI:                   300,
			WidthInches:           10,
			HeightInches:          6,
			CompletenessMidpoint:  50,
			CompletenessPrecision: 1,
			TopRegions:            15,
		},
		Quality: QualityConfig{
			ConversionTolerance: 1e-6,
		},
		Telemetry: TelemetryConfig{
			Enabled:     true,
			ServiceName: "wvdb",
		},
	}
}
