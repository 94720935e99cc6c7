package operations

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineSteps() []Step {
	log := &callLog{}
	return []Step{
		newFakeStep(log, "", StageIDDerive),
		newFakeStep(log, "", StageIDSummarize, StageIDDerive),
		newFakeStep(log, "", StageIDVisualize, StageIDSummarize),
	}
}

func TestRunManifest_Lifecycle(t *testing.T) {
	m := NewRunManifest("run-1", "/data/wv.db", "/out", pipelineSteps())
	require.Len(t, m.Stages, 3)
	for _, s := range m.Stages {
		assert.Equal(t, ManifestStatusPending, s.Status)
	}

	m.RecordStageStart(StageIDDerive)
	assert.Equal(t, ManifestStatusRunning, m.Status)
	m.RecordStageCompletion(StageIDDerive, []string{"derived/screening.csv"}, map[string]interface{}{"rows": 6})
	assert.True(t, m.IsStageCompleted(StageIDDerive))

	m.RecordStageStart(StageIDSummarize)
	m.RecordStageFailure(StageIDSummarize, errors.New("table_2_methods failed"))
	m.RecordStageSkip(StageIDVisualize, "halted after summarize failed")

	// a failed run stays failed
	m.Finish(ManifestStatusCompleted, nil)
	assert.Equal(t, ManifestStatusFailed, m.Status)
	assert.Contains(t, m.Error, "stage summarize failed")
	require.NotNil(t, m.EndTime)

	passed, failed, skipped := m.Counts()
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, skipped)

	derive, ok := m.Stage(StageIDDerive)
	require.True(t, ok)
	assert.Equal(t, []string{"derived/screening.csv"}, derive.Artifacts)
	assert.NotEmpty(t, derive.Duration)

	vis, ok := m.Stage(StageIDVisualize)
	require.True(t, ok)
	assert.Equal(t, "halted after summarize failed", vis.Message)
}

func TestRunManifest_Summary(t *testing.T) {
	t.Run("all passed", func(t *testing.T) {
		m := NewRunManifest("run-1", "", "", pipelineSteps())
		for _, id := range StageIDs() {
			m.RecordStageStart(id)
			m.RecordStageCompletion(id, nil, nil)
		}
		m.Finish(ManifestStatusCompleted, nil)

		out := m.Summary()
		assert.Contains(t, out, "PIPELINE SUMMARY")
		assert.Contains(t, out, "PASS  derive")
		assert.Contains(t, out, "PASS  visualize")
		assert.Contains(t, out, "Passed:  3")
		assert.Contains(t, out, "ALL STEPS COMPLETED SUCCESSFULLY")
		assert.NotContains(t, out, "INCOMPLETE")
	})

	t.Run("failure", func(t *testing.T) {
		m := NewRunManifest("run-1", "", "", pipelineSteps())
		m.RecordStageStart(StageIDDerive)
		m.RecordStageFailure(StageIDDerive, errors.New("store unreadable"))
		m.RecordStageSkip(StageIDSummarize, "halted")
		m.RecordStageSkip(StageIDVisualize, "halted")
		m.Finish(ManifestStatusFailed, nil)

		out := m.Summary()
		assert.Contains(t, out, "FAIL  derive")
		assert.Contains(t, out, "store unreadable")
		assert.Contains(t, out, "SKIP  summarize")
		assert.Contains(t, out, "Failed:  1")
		assert.Contains(t, out, "Skipped: 2")
		assert.Contains(t, out, "PIPELINE INCOMPLETE")
	})

	t.Run("single step", func(t *testing.T) {
		m := NewRunManifest("run-1", "", "", pipelineSteps())
		m.RecordStageSkip(StageIDDerive, "not requested")
		m.RecordStageSkip(StageIDVisualize, "not requested")
		m.RecordStageStart(StageIDSummarize)
		m.RecordStageCompletion(StageIDSummarize, nil, nil)
		m.Finish(ManifestStatusCompleted, nil)

		out := m.Summary()
		assert.Contains(t, out, "PASS  summarize")
		assert.NotContains(t, out, "ALL STEPS COMPLETED")
		assert.NotContains(t, out, "INCOMPLETE")
	})

	t.Run("stages in pipeline order", func(t *testing.T) {
		m := NewRunManifest("run-1", "", "", pipelineSteps())
		out := m.Summary()
		d := strings.Index(out, "derive")
		s := strings.Index(out, "summarize")
		v := strings.Index(out, "visualize")
		assert.True(t, d < s && s < v)
	})
}

func TestRunManifest_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFile)

	m := NewRunManifest("run-42", "/data/wv.db", "/out", pipelineSteps())
	m.TraceID = "run-42"
	m.RecordStageStart(StageIDDerive)
	m.RecordStageCompletion(StageIDDerive, []string{"derived/review.csv"}, nil)
	m.Finish(ManifestStatusCompleted, nil)
	require.NoError(t, m.SaveToFile(path))

	loaded, err := LoadManifestFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "run-42", loaded.ID)
	assert.Equal(t, "/data/wv.db", loaded.DBPath)
	assert.Equal(t, ManifestStatusCompleted, loaded.Status)
	assert.True(t, loaded.IsStageCompleted(StageIDDerive))
	assert.False(t, loaded.IsStageCompleted(StageIDSummarize))

	_, err = LoadManifestFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRunManifest_SummaryReportsRunError(t *testing.T) {
	m := NewRunManifest("run-1", "", "", pipelineSteps())
	for _, id := range StageIDs() {
		m.RecordStageSkip(id, "store not found")
	}
	m.Finish(ManifestStatusFailed, errors.New("store file /data/wv.db not found"))

	out := m.Summary()
	assert.Contains(t, out, "Error: store file /data/wv.db not found")
	assert.Contains(t, out, "PIPELINE INCOMPLETE")
}
