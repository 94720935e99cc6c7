package operations

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *OperationError
		want string
	}{
		{
			name: "with step",
			err:  NewValidationError("derive", "bad input"),
			want: "[validation] derive: bad input",
		},
		{
			name: "without step",
			err:  NewValidationError("", "bad input"),
			want: "[validation] bad input",
		},
		{
			name: "with cause",
			err:  NewExecutionError("summarize", errors.New("boom")),
			want: "[execution] summarize: step execution failed: boom",
		},
		{
			name: "nil",
			err:  nil,
			want: "unknown operation error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("x"), ErrorTypeExecution},
		{"artifact", NewArtifactError("visualize", "fig.pdf", errors.New("empty")), ErrorTypeArtifact},
		{"wrapped", fmt.Errorf("outer: %w", NewNotFoundError("bogus")), ErrorTypeNotFound},
		{"dependency", NewDependencyError("derive", "store", "missing", nil), ErrorTypeDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestWrapError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, WrapError(nil, "derive"))
	})

	t.Run("plain error becomes execution error", func(t *testing.T) {
		cause := errors.New("disk full")
		err := WrapError(cause, "derive")
		assert.Equal(t, ErrorTypeExecution, err.Type)
		assert.Equal(t, "derive", err.Step)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("context errors become cancellation", func(t *testing.T) {
		err := WrapError(fmt.Errorf("load: %w", context.Canceled), "summarize")
		assert.Equal(t, ErrorTypeCancellation, err.Type)
		assert.ErrorIs(t, err, context.Canceled)

		err = WrapError(context.DeadlineExceeded, "summarize")
		assert.Equal(t, ErrorTypeCancellation, err.Type)
	})

	t.Run("operation errors keep their type", func(t *testing.T) {
		orig := NewArtifactError("", "table.csv", errors.New("empty"))
		err := WrapError(orig, "summarize")
		assert.Same(t, orig, err)
		assert.Equal(t, ErrorTypeArtifact, err.Type)
		assert.Equal(t, "summarize", err.Step)
	})
}

func TestArtifactAndStepOf(t *testing.T) {
	err := fmt.Errorf("run failed: %w", NewArtifactError("visualize", "/out/figures/fig_method_donut.pdf", errors.New("not a pdf")))

	assert.Equal(t, "visualize", StepOf(err))
	assert.Equal(t, "/out/figures/fig_method_donut.pdf", ArtifactOf(err))
	assert.Contains(t, err.Error(), "artifact /out/figures/fig_method_donut.pdf failed verification")

	assert.Empty(t, ArtifactOf(NewExecutionError("derive", errors.New("x"))))
	assert.Empty(t, StepOf(errors.New("x")))
}

func TestDependencyError_Context(t *testing.T) {
	cause := errors.New("no such file")
	err := NewDependencyError("derive", "store", "store file missing", cause)
	require.NotNil(t, err)
	assert.Equal(t, "store", err.Context["depends_on"])
	assert.ErrorIs(t, err, cause)
}
