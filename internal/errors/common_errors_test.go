package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

func TestErrorType_Constants(t *testing.T) {
	tests := []struct {
		name     string
		errType  ErrorType
		expected string
	}{
		{name: "parsing error type", errType: ErrTypeParsing, expected: "PARSING"},
		{name: "missing column error type", errType: ErrTypeMissingColumn, expected: "MISSING_COLUMN"},
		{name: "storage error type", errType: ErrTypeStorage, expected: "STORAGE"},
		{name: "artifact error type", errType: ErrTypeArtifact, expected: "ARTIFACT"},
		{name: "config error type", errType: ErrTypeConfig, expected: "CONFIG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.errType))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewConfigError("bad midpoint", nil),
			expected: "[CONFIG] bad midpoint",
		},
		{
			name:     "with cause",
			err:      NewStorageError("failed to read table", fmt.Errorf("disk I/O")),
			expected: "[STORAGE] failed to read table: disk I/O",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_IsAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("no such file")
	err := ErrStoreNotFound.WithCause(cause).WithContext("path", "data/wv.db")

	assert.True(t, errors.Is(err, ErrStoreNotFound))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrUnknownTable))
	assert.Equal(t, "data/wv.db", err.Context["path"])
	assert.Empty(t, ErrStoreNotFound.Context, "WithCause must not mutate the sentinel")
}

func TestIsMissingColumn(t *testing.T) {
	domainErr := &domain.MissingColumnError{Table: "water_values", Column: "Purpose_clean"}

	assert.True(t, IsMissingColumn(domainErr))
	assert.True(t, IsMissingColumn(fmt.Errorf("table_6: %w", domainErr)))
	assert.True(t, IsMissingColumn(NewMissingColumnError("classification", "Method_clean", nil)))
	assert.True(t, errors.Is(NewMissingColumnError("classification", "Method_clean", nil), ErrMissingColumn))
	assert.Contains(t, NewMissingColumnError("classification", "Method_clean", nil).Error(), "Method_clean")
	assert.False(t, IsMissingColumn(NewStorageError("x", nil)))
	assert.False(t, IsMissingColumn(nil))

	converted := FromMissingColumn(domainErr)
	require.Equal(t, ErrTypeMissingColumn, TypeOf(converted))
	var appErr *AppError
	require.True(t, errors.As(converted, &appErr))
	assert.Equal(t, "Purpose_clean", appErr.Context["column"])
}
