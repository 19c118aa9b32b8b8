package workflow

import (
	"regflow/internal/card"
	dErrors "regflow/pkg/domain-errors"
)

// ValidationError reports field-keyed input problems. The workflow state is
// left untouched when one is returned.
type ValidationError struct {
	Fields card.FieldErrors
}

func (e *ValidationError) Error() string {
	return e.Fields.Error()
}

// FieldMessages lets the HTTP layer render the fields without importing card.
func (e *ValidationError) FieldMessages() map[string]string {
	return e.Fields.FieldMessages()
}

// Unwrap exposes a coded error so dErrors.HasCode matches validation failures.
func (e *ValidationError) Unwrap() error {
	return dErrors.New(dErrors.CodeValidation, e.Fields.Error())
}

func invalid(fields card.FieldErrors) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
