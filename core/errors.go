package core

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrValidation is the kind of every ValidationError.
var ErrValidation = errors.New("validation failed")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err *ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) == 0 {
			return ErrValidation.Error()
		}
		msgs := make([]string, 0, len(err.Fields))
		for _, fld := range err.Fields {
			msgs = append(msgs, fld.Field+": "+fld.Error)
		}
		return strings.Join(msgs, "; ")
	}
	return err.Err.Error()
}

func (err *ValidationError) Is(target error) bool { return target == ErrValidation }

func (err *ValidationError) Unwrap() error { return err.Err }

// translateValidationErrors turns validator errors into a ValidationError with translated messages.
func translateValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	flds := make([]FieldError, 0, len(verrs))
	for _, verr := range verrs {
		flds = append(flds, FieldError{Field: verr.Field(), Error: verr.Translate(Translator)})
	}
	return NewValidationError(nil, flds...)
}
