package scoretypes

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the score-retrieval pipeline.
// Callers should use errors.Is to classify failures; the concrete error
// values carry additional context.
var (
	// ErrInvalidArgument indicates malformed input or a lookup for something
	// that does not exist (unknown team, conflicting filter, bad enum text).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOperationFailed indicates a backend could not be reached or returned
	// a document that could not be understood.
	ErrOperationFailed = errors.New("operation failed")
)

// InvalidArgumentf builds an error wrapping ErrInvalidArgument.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// OperationFailedError wraps a transport or parse failure from a live backend.
type OperationFailedError struct {
	Op  string
	Err error
}

// NewOperationFailed creates an OperationFailedError for op.
func NewOperationFailed(op string, err error) *OperationFailedError {
	return &OperationFailedError{Op: op, Err: err}
}

func (e *OperationFailedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return e.Op + " failed"
}

func (e *OperationFailedError) Unwrap() error { return e.Err }

// Is reports ErrOperationFailed as a match so callers need not know the concrete type.
func (e *OperationFailedError) Is(target error) bool { return target == ErrOperationFailed }

// AggregateError is returned when a full backend search finds nothing usable.
// It carries every error collected while probing candidates, in probe order.
type AggregateError struct {
	Message string
	Errors  []error
}

func (e *AggregateError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = "all candidates failed"
	}
	if len(e.Errors) == 0 {
		return msg
	}
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("%s: [%s]", msg, strings.Join(parts, "; "))
}

func (e *AggregateError) Unwrap() []error { return e.Errors }
