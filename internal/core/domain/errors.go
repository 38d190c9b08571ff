package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrMedicationNotFound    = errors.New("medication not found")
	ErrAdmissionRejected     = errors.New("admission rejected")
	ErrToolArgumentMalformed = errors.New("tool arguments malformed")
	ErrUnknownTool           = errors.New("unknown tool")
	ErrRetrievalUnavailable  = errors.New("retrieval backend unavailable")
	ErrUpstream              = errors.New("upstream failure")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// AdmissionError carries the wait hint of a rejected admission.
type AdmissionError struct {
	Key        string
	RetryAfter int
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("quota exhausted for %q, retry after %ds", e.Key, e.RetryAfter)
}

func (e *AdmissionError) Unwrap() error {
	return ErrAdmissionRejected
}
