package domain

import (
	"encoding/json"
	"time"
)

// StepName identifies one phase of the fixed generation pipeline.
type StepName string

const (
	StepParseRequest          StepName = "parse_request"
	StepPlanStudy             StepName = "plan_study"
	StepGenerateContent       StepName = "generate_content"
	StepValidateVerses        StepName = "validate_verses"
	StepTheologicalValidation StepName = "theological_validation"
	StepAssembly              StepName = "assembly"
	StepCompleted             StepName = "completed"
)

// StepOrder is the fixed total order of pipeline steps. Transitions for a
// request must follow this order.
var StepOrder = []StepName{
	StepParseRequest,
	StepPlanStudy,
	StepGenerateContent,
	StepValidateVerses,
	StepTheologicalValidation,
	StepAssembly,
	StepCompleted,
}

// StepIndex returns the position of a step within StepOrder.
func StepIndex(name StepName) (int, bool) {
	for i, s := range StepOrder {
		if s == name {
			return i, true
		}
	}
	return 0, false
}

// FinalStep is the last step of the pipeline; completing it completes the
// owning request.
func FinalStep() StepName { return StepOrder[len(StepOrder)-1] }

// StepStatus enumerates the per-step state machine.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
	StepStatusSkipped    StepStatus = "skipped"
)

// Terminal reports whether the step reached a resolution. failed and skipped
// are re-enterable only through an explicit retry that increments RetryCount.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	}
	return false
}

// Resolved reports whether the step no longer blocks its successors.
func (s StepStatus) Resolved() bool {
	return s == StepStatusCompleted || s == StepStatusSkipped
}

// WorkflowStep is one row per (request, step name) pair.
type WorkflowStep struct {
	RequestID    string
	Name         StepName
	Status       StepStatus
	Data         json.RawMessage
	ErrorDetails json.RawMessage
	RetryCount   int
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StepFailure is the structured diagnostic stored in ErrorDetails when a step
// fails.
type StepFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
