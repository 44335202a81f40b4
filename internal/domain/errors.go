package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories for missing stories and prompts.
var ErrNotFound = errors.New("not found")

// ErrKind classifies a failed external call.
type ErrKind string

const (
	ErrConfig      ErrKind = "config"
	ErrTimeout     ErrKind = "timeout"
	ErrConnection  ErrKind = "connection"
	ErrRateLimited ErrKind = "rate_limited"
	ErrServer      ErrKind = "server_error"
	ErrMalformed   ErrKind = "malformed"
)

// CallError carries the classification of a failed external call. Status is
// the upstream HTTP code when one was observed, zero otherwise.
type CallError struct {
	Kind    ErrKind
	Status  int
	Message string
}

func (e *CallError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%s, http %d)", e.Message, e.Kind, e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

// Transient reports whether re-triggering the stage could plausibly succeed.
// Nothing in the pipeline retries automatically; this is a hint for the
// operator reading the audit trail.
func (e *CallError) Transient() bool {
	switch e.Kind {
	case ErrTimeout, ErrConnection, ErrRateLimited, ErrServer:
		return true
	}
	return false
}
