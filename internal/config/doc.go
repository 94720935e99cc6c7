// Package config provides centralized configuration management for the
// water value reporting pipeline. It loads configuration from multiple
// sources, validates it, and resolves every artifact path the stages write.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file (wvdb.yaml, configs/wvdb.yaml or --config)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern WVDB_<SECTION>_<KEY>:
//
//	WVDB_PATHS_DB_PATH=data/water_value_database.db
//	WVDB_PATHS_OUTPUT_DIR=output
//	WVDB_LOGGING_LEVEL=debug
//	WVDB_CHARTS_DPI=300
//	WVDB_CHARTS_COMPLETENESS_MIDPOINT=50
//	WVDB_TELEMETRY_ENABLED=false
//
// # Path Management
//
// Paths resolves the configured locations to absolute paths. Stage
// artifacts live in three sub-directories of the output directory:
//
//	output/
//	  ├── derived/   (derived tables, review and data quality reports)
//	  ├── tables/    (summary CSVs, formatted report, workbook)
//	  ├── figures/   (PNG and PDF charts, captions, excluded points)
//	  ├── run_manifest.json
//	  ├── metrics.prom
//	  └── trace.json
//
// # Validation
//
// Struct tags are checked with go-playground/validator at load time; the
// completeness midpoint must lie in [0, 100] and the raster DPI in
// [72, 1200].
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	paths, err := cfg.GetPaths()
package config
