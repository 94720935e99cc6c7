package operations

import (
	"time"
)

// Pipeline step identifiers, accepted by --step
const (
	StageIDDerive    = "derive"
	StageIDSummarize = "summarize"
	StageIDVisualize = "visualize"
)

// Pipeline step names
const (
	StageNameDerive    = "Derivation"
	StageNameSummarize = "Summary Tables"
	StageNameVisualize = "Figures"
)

// StageIDs lists the steps in pipeline order
func StageIDs() []string {
	return []string{StageIDDerive, StageIDSummarize, StageIDVisualize}
}

// Context keys for data passed between steps
const (
	ContextKeyRawDataset     = "raw_dataset"
	ContextKeyDerivedDataset = "derived_dataset"
)

// Default timeouts
const (
	DefaultStageTimeout = 10 * time.Minute
)

// OperationRequest represents a request to execute the pipeline
type OperationRequest struct {
	ID string `json:"id"`

	// Step limits the run to one step; empty runs every step in order
	Step string `json:"step,omitempty"`
}

// OperationResponse represents the response from a pipeline execution
type OperationResponse struct {
	ID       string                `json:"id"`
	Status   OperationStatusValue  `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Manifest *RunManifest          `json:"manifest"`
	Error    string                `json:"error,omitempty"`
}
