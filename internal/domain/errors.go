package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRange aborts a run before any I/O happens.
var ErrInvalidRange = errors.New("until precedes since")

// ErrorClass partitions failures for the retry policy. Classification
// happens once, at the report client / storage boundary, so the runner
// never inspects message text itself.
type ErrorClass int

const (
	ClassFatal ErrorClass = iota
	ClassTransient
	ClassSchemaMismatch
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassSchemaMismatch:
		return "schema_mismatch"
	default:
		return "fatal"
	}
}

// ClassifiedError tags an upstream error with its retry class.
type ClassifiedError struct {
	Class ErrorClass
	Err   error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// ClassOf extracts the class of err, defaulting to fatal for untagged errors.
func ClassOf(err error) ErrorClass {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassFatal
}

// Temporary-failure phrases the reporting API is known to emit. Matching is
// brittle to upstream wording changes, which is why it lives here and
// nowhere else.
var transientPhrases = []string{
	"unsupported request",
	"temporarily unavailable",
	"not completed yet",
	"job timed out",
	"internal error",
}

// ClassifyUpstream tags an error from the reporting API as transient or
// fatal. nil passes through.
func ClassifyUpstream(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return &ClassifiedError{Class: ClassTransient, Err: err}
		}
	}
	return &ClassifiedError{Class: ClassFatal, Err: err}
}
