package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionFinished is returned when advancing a session that already completed.
var ErrSessionFinished = errors.New("session already finished")

// ErrUnknownFlow is returned when no flow is registered under a name.
var ErrUnknownFlow = errors.New("unknown flow")

// ErrUnknownNode is returned when a run is asked to resume at an undeclared node.
var ErrUnknownNode = errors.New("unknown node")

// ErrRetryBoundExceeded marks a node that routed back to itself too many times.
var ErrRetryBoundExceeded = errors.New("retry bound exceeded")

// ErrInsuranceNotFound is returned by repositories when a lookup has no match.
var ErrInsuranceNotFound = errors.New("insurance not found")

// GraphDefinitionError lists every problem found while compiling a flow.
type GraphDefinitionError struct {
	Graph      string
	Violations []string
}

func (e *GraphDefinitionError) Error() string {
	return fmt.Sprintf("graph %q has %d violation(s):\n- %s",
		e.Graph, len(e.Violations), strings.Join(e.Violations, "\n- "))
}

// ValidationError is a recoverable problem with session data.
// Its Message is safe to show to the end user.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewRetryBoundExceeded builds the validation error recorded when a node
// exceeds its self-loop bound.
func NewRetryBoundExceeded(node string, bound int) *ValidationError {
	return &ValidationError{
		Field:   node,
		Message: fmt.Sprintf("We couldn't get past %s after %d attempts. Please start a new session.", node, bound),
		Err:     ErrRetryBoundExceeded,
	}
}

// CapabilityError wraps a failure of an external collaborator.
type CapabilityError struct {
	Capability string
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s failed: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// UserMessage extracts the message a node failure records into the state.
func UserMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var cerr *CapabilityError
	if errors.As(err, &cerr) {
		return fmt.Sprintf("The %s service is unavailable right now. Please try again later.", cerr.Capability)
	}
	return err.Error()
}
