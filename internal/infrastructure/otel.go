package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/energy-modelling-hub/water-value-database/pkg/contracts"
)

// MeterName is the instrumentation scope of every tracer and meter.
const MeterName = "wvdb"

// OTelConfig holds OpenTelemetry configuration for one pipeline run
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// TraceFile receives finished spans as JSON.
	TraceFile string
	// MetricsFile receives the Prometheus text exposition at shutdown.
	MetricsFile string
}

// OTelProviders holds the OpenTelemetry providers of a run. When telemetry
// is disabled the tracer and meter are no-ops and Shutdown does nothing.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *PipelineMetrics

	registry    *promclient.Registry
	traceFile   *os.File
	metricsFile string
	logger      *slog.Logger
}

// InitializeOTel sets up tracing to cfg.TraceFile and metrics collected on
// a private Prometheus registry.
func InitializeOTel(cfg OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = GetLogger()
	}
	providers := &OTelProviders{logger: logger, metricsFile: cfg.MetricsFile}

	if !cfg.Enabled {
		providers.Tracer = tracenoop.NewTracerProvider().Tracer(MeterName)
		providers.Meter = metricnoop.NewMeterProvider().Meter(MeterName)
		metrics, err := NewPipelineMetrics(providers.Meter)
		if err != nil {
			return nil, err
		}
		providers.Metrics = metrics
		return providers, nil
	}

	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = contracts.Version
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	if err := providers.initializeTracing(cfg, res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := providers.initializeMetrics(cfg, res); err != nil {
		_ = providers.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	logger.Debug("OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("trace_file", cfg.TraceFile),
		slog.String("metrics_file", cfg.MetricsFile))

	return providers, nil
}

func (p *OTelProviders) initializeTracing(cfg OTelConfig, res *resource.Resource) error {
	if cfg.TraceFile == "" {
		return errors.New("trace file is not configured")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.TraceFile), 0755); err != nil {
		return err
	}
	file, err := os.Create(cfg.TraceFile)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(file),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// Synchronous export keeps span order in the file equal to end order.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)

	p.traceFile = file
	p.TracerProvider = tp
	p.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)
	return nil
}

func (p *OTelProviders) initializeMetrics(cfg OTelConfig, res *resource.Resource) error {
	p.registry = promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(p.registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	p.MeterProvider = mp
	p.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetMeterProvider(mp)

	metrics, err := NewPipelineMetrics(p.Meter)
	if err != nil {
		return err
	}
	p.Metrics = metrics
	return nil
}

// Shutdown writes the metrics textfile, then flushes and closes the
// providers and the trace file.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.registry != nil && p.metricsFile != "" {
		if err := os.MkdirAll(filepath.Dir(p.metricsFile), 0755); err != nil {
			errs = append(errs, err)
		} else if err := promclient.WriteToTextfile(p.metricsFile, p.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics file: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.traceFile != nil {
		if err := p.traceFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trace file: %w", err))
		}
		p.traceFile = nil
	}

	return errors.Join(errs...)
}

// PipelineMetrics holds the run's instruments. A nil *PipelineMetrics is
// valid and records nothing.
type PipelineMetrics struct {
	StageExecutions  metric.Int64Counter
	StageDuration    metric.Float64Histogram
	RowsRead         metric.Int64Counter
	ArtifactsWritten metric.Int64Counter
	DerivationIssues metric.Int64Counter
	ExcludedPoints   metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments on meter
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	stageExecutions, err := meter.Int64Counter(
		"wvdb_stage_executions_total",
		metric.WithDescription("Total number of stage executions"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"wvdb_stage_duration_seconds",
		metric.WithDescription("Stage execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	rowsRead, err := meter.Int64Counter(
		"wvdb_store_rows_read_total",
		metric.WithDescription("Rows read from the store"),
	)
	if err != nil {
		return nil, err
	}

	artifactsWritten, err := meter.Int64Counter(
		"wvdb_artifacts_written_total",
		metric.WithDescription("Artifacts written by stages"),
	)
	if err != nil {
		return nil, err
	}

	derivationIssues, err := meter.Int64Counter(
		"wvdb_derivation_issues_total",
		metric.WithDescription("Values that failed to parse or map during derivation"),
	)
	if err != nil {
		return nil, err
	}

	excludedPoints, err := meter.Int64Counter(
		"wvdb_chart_excluded_points_total",
		metric.WithDescription("Data points excluded from charts"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		StageExecutions:  stageExecutions,
		StageDuration:    stageDuration,
		RowsRead:         rowsRead,
		ArtifactsWritten: artifactsWritten,
		DerivationIssues: derivationIssues,
		ExcludedPoints:   excludedPoints,
	}, nil
}

// RecordStage records one stage execution and its duration
func (m *PipelineMetrics) RecordStage(ctx context.Context, stageID string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("stage.id", stageID),
		attribute.String("status", status),
	)
	m.StageExecutions.Add(ctx, 1, attrs)
	m.StageDuration.Record(ctx, duration.Seconds(), attrs)
}

// AddRowsRead counts rows read from a store table
func (m *PipelineMetrics) AddRowsRead(ctx context.Context, table string, n int) {
	if m == nil {
		return
	}
	m.RowsRead.Add(ctx, int64(n), metric.WithAttributes(attribute.String("table", table)))
}

// AddArtifacts counts artifacts a stage wrote
func (m *PipelineMetrics) AddArtifacts(ctx context.Context, stageID string, n int) {
	if m == nil {
		return
	}
	m.ArtifactsWritten.Add(ctx, int64(n), metric.WithAttributes(attribute.String("stage.id", stageID)))
}

// AddDerivationIssues counts review issues of one kind
func (m *PipelineMetrics) AddDerivationIssues(ctx context.Context, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.DerivationIssues.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

// AddExcludedPoints counts points a chart left out
func (m *PipelineMetrics) AddExcludedPoints(ctx context.Context, chart string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ExcludedPoints.Add(ctx, int64(n), metric.WithAttributes(attribute.String("chart", chart)))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
