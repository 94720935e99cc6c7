package errors

import (
	stderrors "errors"

	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// Predefined errors for common scenarios
var (
	ErrMissingColumn   = NewAppError(ErrTypeMissingColumn, "missing column", nil)
	ErrStoreNotFound   = NewAppError(ErrTypeNotFound, "store file not found", nil)
	ErrUnknownTable    = NewAppError(ErrTypeValidation, "unknown table", nil)
	ErrEmptyArtifact   = NewAppError(ErrTypeArtifact, "artifact is empty", nil)
	ErrMissingArtifact = NewAppError(ErrTypeArtifact, "artifact does not exist", nil)
	ErrInvalidPDF      = NewAppError(ErrTypeArtifact, "artifact is not a readable PDF", nil)
)

// NewMissingColumnError creates an error for a column a computation needs.
// It matches ErrMissingColumn under errors.Is.
func NewMissingColumnError(table, column string, cause error) *AppError {
	if cause == nil {
		cause = &domain.MissingColumnError{Table: table, Column: column}
	}
	return ErrMissingColumn.WithCause(cause).
		WithContext("table", table).
		WithContext("column", column)
}

// IsMissingColumn reports whether err comes from a table lacking a column,
// either as a domain.MissingColumnError or a MISSING_COLUMN AppError.
func IsMissingColumn(err error) bool {
	var mc *domain.MissingColumnError
	if stderrors.As(err, &mc) {
		return true
	}
	return TypeOf(err) == ErrTypeMissingColumn
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// FromMissingColumn converts a domain.MissingColumnError into an AppError,
// returning other errors unchanged.
func FromMissingColumn(err error) error {
	var mc *domain.MissingColumnError
	if stderrors.As(err, &mc) {
		return NewMissingColumnError(mc.Table, mc.Column, err)
	}
	return err
}
