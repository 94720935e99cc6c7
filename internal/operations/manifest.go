package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// ManifestFile is the file name of the run manifest
const ManifestFile = "run_manifest.json"

// Manifest statuses
const (
	ManifestStatusPending   = "pending"
	ManifestStatusRunning   = "running"
	ManifestStatusCompleted = "completed"
	ManifestStatusFailed    = "failed"
	ManifestStatusSkipped   = "skipped"
	ManifestStatusCancelled = "cancelled"
)

// RunManifest records what a pipeline run did: per-stage status, timings
// and the artifacts each stage wrote.
type RunManifest struct {
	mu sync.RWMutex

	ID        string     `json:"id"`
	TraceID   string     `json:"trace_id,omitempty"`
	DBPath    string     `json:"db_path"`
	OutputDir string     `json:"output_dir"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Stages []StageExecution `json:"stages"`

	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StageExecution tracks the execution of a single stage
type StageExecution struct {
	StageID   string                 `json:"stage_id"`
	StageName string                 `json:"stage_name"`
	StartTime *time.Time             `json:"start_time,omitempty"`
	EndTime   *time.Time             `json:"end_time,omitempty"`
	Duration  string                 `json:"duration,omitempty"`
	Status    string                 `json:"status"`
	Artifacts []string               `json:"artifacts"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewRunManifest creates a manifest listing stages as pending, in order
func NewRunManifest(runID, dbPath, outputDir string, stages []Step) *RunManifest {
	m := &RunManifest{
		ID:        runID,
		DBPath:    dbPath,
		OutputDir: outputDir,
		StartTime: time.Now(),
		Stages:    make([]StageExecution, 0, len(stages)),
		Status:    ManifestStatusPending,
	}
	for _, s := range stages {
		m.Stages = append(m.Stages, StageExecution{
			StageID:   s.ID(),
			StageName: s.Name(),
			Status:    ManifestStatusPending,
			Artifacts: []string{},
		})
	}
	return m
}

func (m *RunManifest) stage(stageID string) *StageExecution {
	for i := range m.Stages {
		if m.Stages[i].StageID == stageID {
			return &m.Stages[i]
		}
	}
	m.Stages = append(m.Stages, StageExecution{StageID: stageID, Artifacts: []string{}})
	return &m.Stages[len(m.Stages)-1]
}

// RecordStageStart records the start of a stage execution
func (m *RunManifest) RecordStageStart(stageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	s := m.stage(stageID)
	s.StartTime = &now
	s.Status = ManifestStatusRunning
	m.Status = ManifestStatusRunning
}

func (m *RunManifest) finishStage(s *StageExecution, status string) {
	now := time.Now()
	s.EndTime = &now
	if s.StartTime != nil {
		s.Duration = now.Sub(*s.StartTime).Round(time.Millisecond).String()
	}
	s.Status = status
}

// RecordStageCompletion records the completion of a stage and its verified
// artifacts.
func (m *RunManifest) RecordStageCompletion(stageID string, artifacts []string, metadata map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stage(stageID)
	m.finishStage(s, ManifestStatusCompleted)
	s.Artifacts = append([]string{}, artifacts...)
	s.Metadata = metadata
}

// RecordStageFailure records a stage failure; the run is failed with it
func (m *RunManifest) RecordStageFailure(stageID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stage(stageID)
	m.finishStage(s, ManifestStatusFailed)
	s.Error = err.Error()
	m.Status = ManifestStatusFailed
	m.Error = fmt.Sprintf("stage %s failed: %v", stageID, err)
}

// RecordStageSkip records a stage that did not run
func (m *RunManifest) RecordStageSkip(stageID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stage(stageID)
	s.Status = ManifestStatusSkipped
	s.Message = reason
}

// Finish closes the manifest. A run that recorded no failure takes status.
func (m *RunManifest) Finish(status string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.EndTime = &now
	if m.Status != ManifestStatusFailed {
		m.Status = status
	}
	if err != nil && m.Error == "" {
		m.Error = err.Error()
	}
}

// Stage returns a copy of the execution record of a stage
func (m *RunManifest) Stage(stageID string) (StageExecution, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.Stages {
		if s.StageID == stageID {
			return s, true
		}
	}
	return StageExecution{}, false
}

// IsStageCompleted checks if a stage has been completed
func (m *RunManifest) IsStageCompleted(stageID string) bool {
	s, ok := m.Stage(stageID)
	return ok && s.Status == ManifestStatusCompleted
}

// Counts returns the number of passed, failed and skipped stages
func (m *RunManifest) Counts() (passed, failed, skipped int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.Stages {
		switch s.Status {
		case ManifestStatusCompleted:
			passed++
		case ManifestStatusFailed:
			failed++
		default:
			skipped++
		}
	}
	return passed, failed, skipped
}

// Summary renders the end-of-run PASS/FAIL/SKIP report
func (m *RunManifest) Summary() string {
	passed, failed, skipped := m.Counts()

	m.mu.RLock()
	defer m.mu.RUnlock()

	rule := strings.Repeat("═", 72)
	var sb strings.Builder
	sb.WriteString(rule + "\n  PIPELINE SUMMARY\n" + rule + "\n\n")
	for _, s := range m.Stages {
		label := "SKIP"
		switch s.Status {
		case ManifestStatusCompleted:
			label = "PASS"
		case ManifestStatusFailed:
			label = "FAIL"
		}
		fmt.Fprintf(&sb, "  %s  %-10s %s\n", label, s.StageID, s.StageName)
		if s.Error != "" {
			fmt.Fprintf(&sb, "        %s\n", s.Error)
		}
	}

	total := time.Duration(0)
	if m.EndTime != nil {
		total = m.EndTime.Sub(m.StartTime)
	}
	fmt.Fprintf(&sb, "\n  Passed:  %d\n  Failed:  %d\n  Skipped: %d\n", passed, failed, skipped)
	fmt.Fprintf(&sb, "  Total time: %.1fs\n\n", total.Seconds())

	if failed == 0 && m.Error != "" {
		fmt.Fprintf(&sb, "  Error: %s\n\n", m.Error)
	}

	switch {
	case failed > 0 || m.Status == ManifestStatusFailed || m.Status == ManifestStatusCancelled:
		sb.WriteString("  PIPELINE INCOMPLETE: fix errors and re-run\n")
	case skipped == 0:
		sb.WriteString("  ALL STEPS COMPLETED SUCCESSFULLY\n")
	}
	return sb.String()
}

// SaveToFile saves the manifest to a JSON file
func (m *RunManifest) SaveToFile(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}

	return nil
}

// LoadManifestFromFile loads a manifest from a JSON file
func LoadManifestFromFile(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var manifest RunManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}

	return &manifest, nil
}
