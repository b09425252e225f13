package workflow

import (
	"errors"
	"fmt"

	"biblestudy/internal/domain"
)

var (
	// ErrUnknownStep rejects step names outside the fixed pipeline order.
	ErrUnknownStep = errors.New("unknown workflow step")
	// ErrInvalidOutcome rejects outcome statuses Advance does not accept.
	ErrInvalidOutcome = errors.New("invalid step outcome")
)

// StepConflictError reports an attempt to start or resolve a step whose
// current record does not permit it, e.g. starting a step that is already
// in progress or completing one that was never started. Caller bug.
type StepConflictError struct {
	RequestID string
	Step      domain.StepName
	Status    domain.StepStatus
}

func (e *StepConflictError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("step %s for request %s was never started", e.Step, e.RequestID)
	}
	return fmt.Sprintf("step %s for request %s is already %s", e.Step, e.RequestID, e.Status)
}

// StepOrderViolationError reports a transition attempted while an earlier
// required step is not yet completed or skipped. Caller bug.
type StepOrderViolationError struct {
	RequestID string
	Step      domain.StepName
	Blocking  domain.StepName
}

func (e *StepOrderViolationError) Error() string {
	return fmt.Sprintf("step %s for request %s requires %s to be resolved first", e.Step, e.RequestID, e.Blocking)
}

// RequestTerminalError reports an advance on a request that already reached a
// terminal status. A failed request accepts only an explicit retry
// re-dispatch; completed and cancelled accept nothing.
type RequestTerminalError struct {
	RequestID string
	Status    domain.RequestStatus
}

func (e *RequestTerminalError) Error() string {
	return fmt.Sprintf("request %s is %s and cannot be advanced", e.RequestID, e.Status)
}
