package discovery

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Kind classifies per-citation failures so the loop boundary can convert each
// one into a state transition instead of aborting.
type Kind string

// Failure kinds. Network failures are retried via the HEAD to GET fallback
// before becoming terminal; validation and safety failures are never retried.
const (
	KindNetwork    Kind = "network"
	KindParse      Kind = "parse"
	KindValidation Kind = "validation"
	KindSafety     Kind = "safety"
	KindStorage    Kind = "storage"
)

// PipelineError carries a failure class alongside the wrapped cause.
type PipelineError struct {
	Kind Kind
	Step string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Step, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewError wraps err with a kind and the pipeline step that produced it.
func NewError(kind Kind, step string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Step: step, Err: err}
}

// KindOf extracts the failure kind from err, defaulting to network for plain
// errors since fetch problems dominate in practice.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindNetwork
}
