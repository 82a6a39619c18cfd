package analyzer

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage indicates the artifact could not be written or removed.
	ErrStorage = errors.New("artifact storage failed")
	// ErrNameCollision indicates every generated name was already taken.
	ErrNameCollision = errors.New("artifact name collision")
	// ErrInvocation indicates the analyzer could not produce a usable result.
	ErrInvocation = errors.New("analyzer invocation failed")
)

// Reason classifies why an analyzer invocation failed.
type Reason string

const (
	ReasonSpawn      Reason = "spawn"
	ReasonExitStatus Reason = "exit_status"
	ReasonTimeout    Reason = "timeout"
	ReasonCanceled   Reason = "canceled"
)

// InvocationError describes a failed analyzer run. Stderr is for operators only.
type InvocationError struct {
	Reason   Reason
	ExitCode int
	Stderr   string
	Err      error
}

func (e *InvocationError) Error() string {
	switch e.Reason {
	case ReasonExitStatus:
		return fmt.Sprintf("analyzer exited with status %d", e.ExitCode)
	case ReasonTimeout:
		return fmt.Sprintf("analyzer timed out: %v", e.Err)
	case ReasonCanceled:
		return fmt.Sprintf("analyzer canceled: %v", e.Err)
	default:
		return fmt.Sprintf("analyzer could not be started: %v", e.Err)
	}
}

// Unwrap exposes both ErrInvocation and the underlying error to errors.Is/As.
func (e *InvocationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvocation}
	}
	return []error{ErrInvocation, e.Err}
}
