package errors

import (
	"fmt"
	"strings"
)

// FieldError describes a validation failure at the field level.
type FieldError interface {
	error
	Field() string
	Value() interface{}
}

// FieldValidationError implements FieldError for a specific cell or
// parameter failure.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field %q: %s", fve.FieldName, fve.ErrorMessage)
}

// Field returns the field name that failed validation.
func (fve *FieldValidationError) Field() string {
	return fve.FieldName
}

// Value returns the invalid value.
func (fve *FieldValidationError) Value() interface{} {
	return fve.FieldValue
}

// ToGridError converts the field validation error to a GridError.
func (fve *FieldValidationError) ToGridError() *GridError {
	return NewValidationError(
		ErrCodeValidation,
		fve.ErrorMessage,
	).WithContext("field", fve.FieldName).WithContext("value", fve.FieldValue)
}

// NewFieldValidationError creates a new field validation error.
func NewFieldValidationError(field string, value interface{}, message string) *FieldValidationError {
	return &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
	}
}

// ValidationErrorCollection aggregates field errors for a record.
type ValidationErrorCollection struct {
	Errors []FieldError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	if len(vec.Errors) == 0 {
		return "no validation errors"
	}
	if len(vec.Errors) == 1 {
		return vec.Errors[0].Error()
	}

	return fmt.Sprintf("validation failed with %d errors", len(vec.Errors))
}

// Add adds a field error to the collection.
func (vec *ValidationErrorCollection) Add(err FieldError) {
	vec.Errors = append(vec.Errors, err)
}

// AddField adds a field validation error to the collection.
func (vec *ValidationErrorCollection) AddField(field string, value interface{}, message string) {
	vec.Add(NewFieldValidationError(field, value, message))
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// ToGridError converts the collection to a single GridError, or nil when
// the collection is empty.
func (vec *ValidationErrorCollection) ToGridError() *GridError {
	if !vec.HasErrors() {
		return nil
	}

	var messages []string
	context := make(map[string]interface{})

	for _, err := range vec.Errors {
		messages = append(messages, err.Error())
		context[err.Field()] = err.Value()
	}

	return &GridError{
		Type:        ErrorTypeValidation,
		Code:        ErrCodeValidation,
		Message:     strings.Join(messages, "; "),
		Context:     context,
		Recoverable: true,
	}
}
