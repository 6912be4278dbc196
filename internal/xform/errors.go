package xform

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDefinition means the form definition could not be parsed
	// or lacks a model instance. Fatal to a whole export.
	ErrMalformedDefinition = errors.New("malformed form definition")

	// ErrMalformedSubmission means one submission's XML could not be parsed.
	ErrMalformedSubmission = errors.New("malformed submission")

	// ErrTypeCoercion means a field's text does not match its declared type.
	ErrTypeCoercion = errors.New("type coercion failed")
)

// SubmissionError reports a row-level failure for a single instance.
type SubmissionError struct {
	InstanceID string
	Err        error
}

// Error names the instance and carries the malformed submission prefix once,
// whether or not Err already wraps it.
func (e *SubmissionError) Error() string {
	msg := e.Err.Error()
	if !errors.Is(e.Err, ErrMalformedSubmission) {
		msg = fmt.Sprintf("%s: %s", ErrMalformedSubmission, msg)
	}
	if e.InstanceID == "" {
		return msg
	}
	return fmt.Sprintf("submission %s: %s", e.InstanceID, msg)
}

func (e *SubmissionError) Unwrap() []error {
	return []error{ErrMalformedSubmission, e.Err}
}

// CoercionError reports a field whose text could not be converted to its Type.
type CoercionError struct {
	Path string
	Type Type
	Text string
	Err  error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("%s: %s %q as %s: %v", ErrTypeCoercion, e.Path, e.Text, e.Type, e.Err)
}

func (e *CoercionError) Is(target error) bool {
	return target == ErrTypeCoercion
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}
