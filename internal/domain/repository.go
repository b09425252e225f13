package domain

import (
	"context"
	"time"
)

// GenerationRequestRepository defines persistence for generation requests.
type GenerationRequestRepository interface {
	Create(ctx context.Context, req *GenerationRequest) error
	GetByID(ctx context.Context, id string) (*GenerationRequest, error)
	// UpdateStatus writes status, derived progress and the optional error
	// message together. completedAt is stamped only when non-nil and the row
	// has no completion date yet.
	UpdateStatus(ctx context.Context, id string, status RequestStatus, progress int, errMsg *string, completedAt *time.Time) error
}

// WorkflowStepRepository defines persistence for per-step records, unique on
// (request_id, step_name).
type WorkflowStepRepository interface {
	Get(ctx context.Context, requestID string, name StepName) (*WorkflowStep, error)
	ListByRequest(ctx context.Context, requestID string) ([]WorkflowStep, error)
	Upsert(ctx context.Context, step *WorkflowStep) error
}

// GeneratedDayRepository defines persistence for generated day content.
type GeneratedDayRepository interface {
	SaveAll(ctx context.Context, days []GeneratedDay) error
	ListByRequest(ctx context.Context, requestID string) ([]GeneratedDay, error)
	UpdateValidation(ctx context.Context, requestID string, dayNumber int, status DayValidationStatus) error
}

// VerseValidationRepository is the process-wide verse cache, shared across
// requests. Writes are last-write-wins upserts keyed by the normalized
// reference.
type VerseValidationRepository interface {
	GetByNormalized(ctx context.Context, normalized string) (*VerseValidation, error)
	Upsert(ctx context.Context, entry *VerseValidation) error
}
