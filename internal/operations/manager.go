package operations

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/energy-modelling-hub/water-value-database/internal/config"
	apperrors "github.com/energy-modelling-hub/water-value-database/internal/errors"
	"github.com/energy-modelling-hub/water-value-database/internal/infrastructure"
	"github.com/energy-modelling-hub/water-value-database/internal/validation"
)

// ArtifactValidator verifies a promised artifact after its step ran
type ArtifactValidator interface {
	ValidateArtifact(path string) error
}

// Manager runs the registered steps in dependency order, verifies every
// promised artifact after each step and halts at the first failure.
type Manager struct {
	registry  *Registry
	config    *Config
	logger    *slog.Logger
	tracer    *OperationTracer
	validator ArtifactValidator

	dbPath       string
	outputDir    string
	manifestFile string
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTracer sets the tracer used for run and stage spans
func WithTracer(tracer *OperationTracer) ManagerOption {
	return func(m *Manager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// WithValidator replaces the artifact validator
func WithValidator(v ArtifactValidator) ManagerOption {
	return func(m *Manager) {
		if v != nil {
			m.validator = v
		}
	}
}

// WithStore sets the store file that must exist before any step runs
func WithStore(dbPath string) ManagerOption {
	return func(m *Manager) {
		m.dbPath = dbPath
	}
}

// WithManifest writes the run manifest to path at the end of every run
func WithManifest(path, outputDir string) ManagerOption {
	return func(m *Manager) {
		m.manifestFile = path
		m.outputDir = outputDir
	}
}

// NewManager creates a pipeline manager
func NewManager(registry *Registry, config *Config, opts ...ManagerOption) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}

	m := &Manager{
		registry: registry,
		config:   config,
		logger:   infrastructure.GetLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tracer == nil {
		m.tracer = NewOperationTracer(nil, nil)
	}
	if m.validator == nil {
		m.validator = validation.NewFileValidator(m.logger)
	}
	return m
}

// RegisterStage registers a Step with the pipeline
func (m *Manager) RegisterStage(step Step) error {
	return m.registry.Register(step)
}

// GetRegistry returns the registry for accessing registered stages
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Execute runs the pipeline. With req.Step set only that step runs; the
// others are recorded as skipped. The returned response is never nil and
// carries the run manifest.
func (m *Manager) Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = infrastructure.GenerateTraceID()
	}
	ctx = infrastructure.WithTraceID(ctx, req.ID)

	state := NewOperationState(req.ID)

	all, err := m.registry.GetDependencyOrder()
	if err != nil {
		err = NewValidationError(req.Step, err.Error())
		m.logOperationError(ctx, req.ID, err)
		state.Fail(err)
		return m.createResponse(state, nil), err
	}

	steps := all
	if req.Step != "" {
		step, err := m.registry.Get(req.Step)
		if err != nil {
			err = fmt.Errorf("%w; available steps: %s", err, strings.Join(m.registry.ListIDs(), ", "))
			m.logOperationError(ctx, req.ID, err)
			state.Fail(err)
			return m.createResponse(state, nil), err
		}
		steps = []Step{step}
	}

	manifest := NewRunManifest(req.ID, m.dbPath, m.outputDir, all)
	manifest.TraceID = req.ID
	selected := make(map[string]bool, len(steps))
	for _, step := range steps {
		selected[step.ID()] = true
	}
	for _, step := range all {
		stepState := NewStepState(step.ID(), step.Name())
		state.SetStage(step.ID(), stepState)
		if !selected[step.ID()] {
			stepState.Skip("not requested")
			manifest.RecordStageSkip(step.ID(), "not requested")
		}
	}

	ctx, span := m.tracer.TraceRun(ctx, req.ID, req.Step)
	m.logOperationStart(ctx, req.ID, req.Step, len(steps))
	state.Start()

	err = m.checkPrerequisites(steps)
	if err == nil {
		err = m.executeSequential(ctx, state, manifest, steps)
	} else {
		m.logOperationError(ctx, req.ID, err)
		m.skipRemaining(state, manifest, steps, "store not found")
	}

	switch {
	case err == nil:
		state.Complete()
		manifest.Finish(ManifestStatusCompleted, nil)
	case GetErrorType(err) == ErrorTypeCancellation:
		state.Cancel(err)
		manifest.Finish(ManifestStatusCancelled, err)
	default:
		state.Fail(err)
		manifest.Finish(ManifestStatusFailed, err)
	}

	if saveErr := m.saveManifest(manifest); saveErr != nil {
		m.logger.ErrorContext(ctx, "Failed to write run manifest",
			slog.String("path", m.manifestFile),
			slog.String("error", saveErr.Error()))
		if err == nil {
			err = saveErr
			state.Fail(err)
		}
	}

	m.tracer.EndRun(span, state.Status, err)
	m.logOperationComplete(ctx, req.ID, state.Duration(), string(state.Status))

	return m.createResponse(state, manifest), err
}

// checkPrerequisites verifies that the store file exists
func (m *Manager) checkPrerequisites(steps []Step) error {
	if m.dbPath == "" || len(steps) == 0 || config.FileExists(m.dbPath) {
		return nil
	}
	_, err := os.Stat(m.dbPath)
	if err == nil {
		err = fmt.Errorf("%s is not a regular file", m.dbPath)
	}
	cause := apperrors.ErrStoreNotFound.WithCause(err).WithContext("path", m.dbPath)
	return NewDependencyError(steps[0].ID(), "store", fmt.Sprintf("store file %s not found", m.dbPath), cause)
}

// executeSequential runs steps one by one and stops at the first failure
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, manifest *RunManifest, steps []Step) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			cancelErr := NewCancellationError(step.ID(), err)
			m.logger.WarnContext(ctx, "Pipeline cancelled",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			m.skipRemaining(state, manifest, steps[i:], "cancelled")
			return cancelErr
		}

		m.logger.InfoContext(ctx, "Executing step",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStage(ctx, state, manifest, step); err != nil {
			m.skipRemaining(state, manifest, steps[i+1:], fmt.Sprintf("halted after %s failed", step.ID()))
			return err
		}
	}
	return nil
}

// executeStage runs one step and verifies its artifacts
func (m *Manager) executeStage(ctx context.Context, state *OperationState, manifest *RunManifest, step Step) error {
	stepState := state.GetStage(step.ID())
	if stepState == nil {
		stepState = NewStepState(step.ID(), step.Name())
		state.SetStage(step.ID(), stepState)
	}

	stageCtx, span := m.tracer.TraceStage(ctx, state.ID, step)
	stepState.Start()
	manifest.RecordStageStart(step.ID())
	m.logStageStart(stageCtx, state.ID, step.ID())
	start := time.Now()

	fail := func(err error) error {
		duration := time.Since(start)
		stepState.Fail(err)
		manifest.RecordStageFailure(step.ID(), err)
		m.logStageError(stageCtx, state.ID, step.ID(), err)
		m.tracer.EndStage(stageCtx, span, step.ID(), duration, 0, err)
		return err
	}

	if err := step.Validate(state); err != nil {
		return fail(NewValidationError(step.ID(), err.Error()))
	}

	timeoutCtx, cancel := context.WithTimeout(stageCtx, m.config.GetStageTimeout(step.ID()))
	defer cancel()

	if err := step.Execute(timeoutCtx, state); err != nil {
		return fail(WrapError(err, step.ID()))
	}

	outputs := step.ProducedOutputs()
	if err := m.verifyArtifacts(step.ID(), outputs); err != nil {
		return fail(err)
	}

	duration := time.Since(start)
	stepState.Complete()
	manifest.RecordStageCompletion(step.ID(), m.relativeArtifacts(outputs), stepState.MetadataSnapshot())
	m.logStageComplete(stageCtx, state.ID, step.ID(), duration, len(outputs))
	m.tracer.EndStage(stageCtx, span, step.ID(), duration, len(outputs), nil)
	return nil
}

// verifyArtifacts checks every promised artifact and reports the first one
// that is missing, empty or unreadable.
func (m *Manager) verifyArtifacts(stepID string, artifacts []string) error {
	for _, a := range artifacts {
		if err := m.validator.ValidateArtifact(a); err != nil {
			return NewArtifactError(stepID, a, err)
		}
	}
	return nil
}

func (m *Manager) relativeArtifacts(artifacts []string) []string {
	if m.outputDir == "" {
		return artifacts
	}
	out := make([]string, len(artifacts))
	for i, a := range artifacts {
		rel, err := filepath.Rel(m.outputDir, a)
		if err != nil {
			rel = a
		}
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

// skipRemaining marks steps that will not run as skipped
func (m *Manager) skipRemaining(state *OperationState, manifest *RunManifest, steps []Step, reason string) {
	for _, step := range steps {
		if s := state.GetStage(step.ID()); s != nil && s.GetStatus() == StepStatusPending {
			s.Skip(reason)
		}
		manifest.RecordStageSkip(step.ID(), reason)
	}
}

func (m *Manager) saveManifest(manifest *RunManifest) error {
	if m.manifestFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.manifestFile), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	return manifest.SaveToFile(m.manifestFile)
}

// createResponse creates an operation response from state
func (m *Manager) createResponse(state *OperationState, manifest *RunManifest) *OperationResponse {
	resp := &OperationResponse{
		ID:       state.ID,
		Status:   state.Status,
		Duration: state.Duration(),
		Steps:    state.Steps,
		Manifest: manifest,
	}
	if state.Error != nil {
		resp.Error = state.Error.Error()
	}
	return resp
}

// ExitCode maps a pipeline error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
