// Command wvdb builds the analysis artifacts of the water value database:
// derived tables, summary tables and figures.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/energy-modelling-hub/water-value-database/internal/config"
	"github.com/energy-modelling-hub/water-value-database/internal/infrastructure"
	"github.com/energy-modelling-hub/water-value-database/internal/operations"
	"github.com/energy-modelling-hub/water-value-database/internal/store"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts"
)

// errPipelineFailed is returned after the summary has already been printed
var errPipelineFailed = errors.New("pipeline failed")

type rootOptions struct {
	configFile string
	dbPath     string
	outputDir  string
	logLevel   string
}

// app is what every command needs once flags and config are resolved
type app struct {
	cfg       *config.Config
	paths     *config.Paths
	logger    *slog.Logger
	providers *infrastructure.OTelProviders
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	// one trace ID per invocation; a pipeline run adopts it as its run ID
	ctx = infrastructure.EnsureTraceID(ctx)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errPipelineFailed) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "wvdb",
		Short: "Water value database analysis pipeline",
		Long: `wvdb reads the curated water value database (SQLite) and produces the
analysis artifacts: derived tables, summary tables and figures.

Stages run in order derive -> summarize -> visualize. Every artifact a stage
promises is verified after it runs and the first failure halts the pipeline.`,
		Version:       contracts.GetVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default: wvdb.yaml or configs/wvdb.yaml if present)")
	flags.StringVar(&opts.dbPath, "db", "", "path to the SQLite store")
	flags.StringVar(&opts.outputDir, "out", "", "output directory for artifacts")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newInitStoreCmd(opts),
		newStageCmd(opts, operations.StageIDDerive, "Compute derived columns and the review and data quality reports"),
		newStageCmd(opts, operations.StageIDSummarize, "Write the summary tables, the text report and the workbook"),
		newStageCmd(opts, operations.StageIDVisualize, "Render the figures and their captions"),
		newRunCmd(opts),
	)
	return root
}

func newInitStoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-store",
		Short: "Create an empty store with the current schema, or migrate an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			version, err := store.Migrate(cmd.Context(), a.paths.DBPath)
			if err != nil {
				return err
			}
			if version != contracts.SchemaVersion {
				a.logger.WarnContext(cmd.Context(), "Store schema differs from the schema this build reads",
					slog.Uint64("store_version", uint64(version)),
					slog.Int("expected_version", contracts.SchemaVersion))
			}
			a.logger.InfoContext(cmd.Context(), "Store ready",
				slog.String("path", a.paths.DBPath),
				slog.Uint64("schema_version", uint64(version)))
			fmt.Fprintf(cmd.OutOrStdout(), "Store %s at schema version %d\n", a.paths.DBPath, version)
			return nil
		},
	}
}

func newStageCmd(opts *rootOptions, stageID, short string) *cobra.Command {
	return &cobra.Command{
		Use:   stageID,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts, stageID)
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var step string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage in order, or a single stage with --step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts, step)
		},
	}
	cmd.Flags().StringVar(&step, "step", "", "run only this stage ("+strings.Join(operations.StageIDs(), ", ")+")")
	return cmd
}

// runPipeline executes the pipeline, prints the summary and reports failure
// through errPipelineFailed.
func runPipeline(cmd *cobra.Command, opts *rootOptions, step string) error {
	ctx := cmd.Context()
	a, err := setup(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	manager, err := operations.NewPipeline(&operations.StageOptions{
		Config:  a.cfg,
		Paths:   a.paths,
		Logger:  a.logger,
		Metrics: a.providers.Metrics,
	}, operations.WithTracer(operations.NewOperationTracer(a.providers.Tracer, a.providers.Metrics)))
	if err != nil {
		return err
	}

	resp, runErr := manager.Execute(ctx, operations.OperationRequest{
		ID:   infrastructure.GetTraceID(ctx),
		Step: step,
	})
	if resp.Manifest == nil {
		return runErr
	}

	fmt.Fprint(cmd.OutOrStdout(), resp.Manifest.Summary())
	if runErr != nil {
		a.logger.ErrorContext(ctx, "Pipeline failed",
			slog.String("run_id", resp.ID),
			slog.String("step", operations.StepOf(runErr)),
			slog.String("error", runErr.Error()))
		return errPipelineFailed
	}
	return nil
}

// setup loads the configuration, applies flag overrides, creates the output
// directories and starts logging and telemetry.
func setup(ctx context.Context, opts *rootOptions, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.dbPath != "" {
		cfg.Paths.DBPath = opts.dbPath
	}
	if opts.outputDir != "" {
		cfg.Paths.OutputDir = opts.outputDir
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	paths, err := cfg.GetPaths()
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	cfg.Logging.FilePath = paths.LogFile(cfg.Logging.FilePath)
	logger, err := infrastructure.NewLogger(cfg.Logging, logOut)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(logger)
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfig{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: contracts.Version,
		TraceFile:      paths.TraceFile,
		MetricsFile:    paths.MetricsFile,
	}, logger)
	if err != nil {
		_ = infrastructure.CloseLogFile()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger.DebugContext(ctx, "Configuration loaded",
		slog.String("db_path", paths.DBPath),
		slog.String("output_dir", paths.OutputDir),
		slog.Bool("telemetry", cfg.Telemetry.Enabled))

	return &app{cfg: cfg, paths: paths, logger: logger, providers: providers}, nil
}

func (a *app) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.providers.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
	}
	_ = infrastructure.CloseLogFile()
}
