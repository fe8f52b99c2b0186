package inference

import (
	"errors"
	"fmt"
)

// ErrorKind classifies inference failures for callers.
type ErrorKind string

const (
	// InvalidInput is the caller's fault; nothing ran.
	InvalidInput ErrorKind = "invalid_input"
	// ModelUnavailable means no model bundle is loaded.
	ModelUnavailable ErrorKind = "model_unavailable"
	// InternalInferenceFailure means the model produced an unusable output.
	InternalInferenceFailure ErrorKind = "internal_inference_failure"
)

// Error is returned by every failed Infer call. Msg is safe to show callers;
// Err carries the internal cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalidInput(msg string) *Error {
	return &Error{Kind: InvalidInput, Msg: msg}
}

func unavailable(err error) *Error {
	return &Error{Kind: ModelUnavailable, Msg: "prediction model is not available", Err: err}
}

func internal(err error) *Error {
	return &Error{Kind: InternalInferenceFailure, Msg: "prediction failed", Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ie *Error
	return errors.As(err, &ie) && ie.Kind == kind
}
