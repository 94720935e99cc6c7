package operations

import (
	"context"
	"log/slog"
	"time"
)

// logOperationStart logs the start of a pipeline run
func (m *Manager) logOperationStart(ctx context.Context, operationID, step string, steps int) {
	if step == "" {
		step = "all"
	}
	m.logger.InfoContext(ctx, "operation_start",
		slog.String("operation_id", operationID),
		slog.String("step", step),
		slog.Int("steps", steps),
		slog.String("db_path", m.dbPath),
		slog.String("output_dir", m.outputDir))
}

// logOperationComplete logs the completion of a pipeline run
func (m *Manager) logOperationComplete(ctx context.Context, operationID string, duration time.Duration, status string) {
	m.logger.InfoContext(ctx, "operation_complete",
		slog.String("operation_id", operationID),
		slog.String("status", status),
		slog.Duration("duration", duration))
}

// logOperationError logs a run-level error
func (m *Manager) logOperationError(ctx context.Context, operationID string, err error) {
	errorMsg := "unknown error"
	if err != nil {
		errorMsg = err.Error()
	}
	m.logger.ErrorContext(ctx, "operation_error",
		slog.String("operation_id", operationID),
		slog.String("error_type", string(GetErrorType(err))),
		slog.String("error", errorMsg))
}

func (m *Manager) logStageStart(ctx context.Context, operationID, stageID string) {
	m.logger.InfoContext(ctx, "stage_start",
		slog.String("operation_id", operationID),
		slog.String("step", stageID))
}

func (m *Manager) logStageComplete(ctx context.Context, operationID, stageID string, duration time.Duration, artifacts int) {
	m.logger.InfoContext(ctx, "stage_complete",
		slog.String("operation_id", operationID),
		slog.String("step", stageID),
		slog.Int("artifacts", artifacts),
		slog.Duration("duration", duration))
}

// logStageError logs a step failure; artifact failures name the file
func (m *Manager) logStageError(ctx context.Context, operationID, stageID string, err error) {
	attrs := []any{
		slog.String("operation_id", operationID),
		slog.String("step", stageID),
		slog.String("error_type", string(GetErrorType(err))),
		slog.String("error", err.Error()),
	}
	if artifact := ArtifactOf(err); artifact != "" {
		attrs = append(attrs, slog.String("artifact", artifact))
	}
	m.logger.ErrorContext(ctx, "stage_error", attrs...)
}
