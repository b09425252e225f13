// Package workflow drives a generation request through the fixed step
// pipeline, persisting per-step status and retry bookkeeping and deriving
// overall request progress on every transition.
package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"biblestudy/internal/domain"
	"biblestudy/internal/domain/jsoncfg"
)

// Outcome describes one step transition reported by the caller.
type Outcome struct {
	// Status is the target step status: in_progress to start or retry,
	// completed, failed or skipped to resolve.
	Status  domain.StepStatus
	Data    json.RawMessage
	Failure *domain.StepFailure
}

// Progress is the request-level view returned after every transition.
type Progress struct {
	RequestID  string                `json:"request_id"`
	Status     domain.RequestStatus  `json:"status"`
	Percentage int                   `json:"percentage"`
	Steps      []domain.WorkflowStep `json:"steps"`
}

// Machine applies step transitions for generation requests. It performs no
// I/O of its own beyond the injected repositories and holds no cross-request
// state; independent requests advance fully independently.
type Machine struct {
	requests domain.GenerationRequestRepository
	steps    domain.WorkflowStepRepository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewMachine(requests domain.GenerationRequestRepository, steps domain.WorkflowStepRepository, logger zerolog.Logger) *Machine {
	return &Machine{
		requests: requests,
		steps:    steps,
		logger:   logger,
		now:      time.Now,
	}
}

// Advance records one step transition for a request and writes back the
// derived request status and progress. Contract violations (unknown step,
// duplicate start, order violation, terminal request) are returned as typed
// errors; step-level business failures travel inside Outcome and are stored,
// never raised.
func (m *Machine) Advance(ctx context.Context, requestID string, step domain.StepName, out Outcome) (*Progress, error) {
	stepIdx, ok := domain.StepIndex(step)
	if !ok {
		return nil, &stepNameError{step: step}
	}

	req, err := m.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	recorded, err := m.steps.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	byName := make(map[domain.StepName]*domain.WorkflowStep, len(recorded))
	for i := range recorded {
		byName[recorded[i].Name] = &recorded[i]
	}
	existing := byName[step]

	switch req.Status {
	case domain.RequestStatusCancelled:
		return nil, &RequestTerminalError{RequestID: requestID, Status: req.Status}
	case domain.RequestStatusFailed:
		// Only an explicit retry re-dispatch (a new in_progress attempt)
		// may leave the failed state.
		if out.Status != domain.StepStatusInProgress {
			return nil, &RequestTerminalError{RequestID: requestID, Status: req.Status}
		}
	}

	// Re-completing an already completed step is a no-op returning current
	// state, never a duplicate completion stamp. This covers the final step
	// of an already completed request.
	if out.Status == domain.StepStatusCompleted && existing != nil && existing.Status == domain.StepStatusCompleted {
		return m.progressOf(req, recorded), nil
	}
	if req.Status == domain.RequestStatusCompleted {
		return nil, &RequestTerminalError{RequestID: requestID, Status: req.Status}
	}

	// Every transition requires the predecessors to be resolved.
	for i := 0; i < stepIdx; i++ {
		prior := byName[domain.StepOrder[i]]
		if prior == nil || !prior.Status.Resolved() {
			return nil, &StepOrderViolationError{RequestID: requestID, Step: step, Blocking: domain.StepOrder[i]}
		}
	}

	now := m.now()
	var rec *domain.WorkflowStep

	switch out.Status {
	case domain.StepStatusInProgress:
		rec, err = m.startStep(requestID, step, existing, now)
	case domain.StepStatusCompleted:
		rec, err = m.resolveStep(requestID, step, existing, domain.StepStatusCompleted, out, now)
	case domain.StepStatusFailed:
		rec, err = m.resolveStep(requestID, step, existing, domain.StepStatusFailed, out, now)
	case domain.StepStatusSkipped:
		rec, err = m.skipStep(requestID, step, existing, out, now)
	default:
		err = &outcomeError{status: out.Status}
	}
	if err != nil {
		return nil, err
	}

	if err := m.steps.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	if existing == nil {
		recorded = append(recorded, *rec)
	} else {
		*existing = *rec
	}

	status, errMsg, completedAt := m.requestTransition(req, step, out, now)
	pct := progressPercentage(recorded)
	if err := m.requests.UpdateStatus(ctx, requestID, status, pct, errMsg, completedAt); err != nil {
		return nil, err
	}
	req.Status = status
	req.ProgressPercentage = pct
	if errMsg != nil {
		req.ErrorMessage = *errMsg
	}
	if completedAt != nil && req.CompletedAt == nil {
		req.CompletedAt = completedAt
	}

	m.logger.Info().
		Str("request_id", requestID).
		Str("step", string(step)).
		Str("step_status", string(out.Status)).
		Int("progress", pct).
		Msg("workflow: step transition")

	return m.progressOf(req, recorded), nil
}

// GetProgress returns the stored request status with its step records.
func (m *Machine) GetProgress(ctx context.Context, requestID string) (*Progress, error) {
	req, err := m.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	recorded, err := m.steps.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return m.progressOf(req, recorded), nil
}

// Cancel moves a request to cancelled. Cancellation is terminal; subsequent
// Advance calls are rejected. Cancelling twice is a no-op.
func (m *Machine) Cancel(ctx context.Context, requestID string) (*Progress, error) {
	req, err := m.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status == domain.RequestStatusCompleted {
		return nil, &RequestTerminalError{RequestID: requestID, Status: req.Status}
	}
	if req.Status != domain.RequestStatusCancelled {
		if err := m.requests.UpdateStatus(ctx, requestID, domain.RequestStatusCancelled, req.ProgressPercentage, nil, nil); err != nil {
			return nil, err
		}
		req.Status = domain.RequestStatusCancelled
	}
	recorded, err := m.steps.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return m.progressOf(req, recorded), nil
}

func (m *Machine) startStep(requestID string, step domain.StepName, existing *domain.WorkflowStep, now time.Time) (*domain.WorkflowStep, error) {
	if existing == nil {
		started := now
		return &domain.WorkflowStep{
			RequestID: requestID,
			Name:      step,
			Status:    domain.StepStatusInProgress,
			StartedAt: &started,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
	switch existing.Status {
	case domain.StepStatusFailed, domain.StepStatusSkipped:
		// Retry re-entry: new attempt, refreshed start, earlier completion
		// stamp untouched.
		rec := *existing
		rec.Status = domain.StepStatusInProgress
		rec.RetryCount++
		started := now
		rec.StartedAt = &started
		rec.ErrorDetails = nil
		rec.UpdatedAt = now
		return &rec, nil
	default:
		return nil, &StepConflictError{RequestID: requestID, Step: step, Status: existing.Status}
	}
}

func (m *Machine) resolveStep(requestID string, step domain.StepName, existing *domain.WorkflowStep, target domain.StepStatus, out Outcome, now time.Time) (*domain.WorkflowStep, error) {
	if existing == nil {
		return nil, &StepConflictError{RequestID: requestID, Step: step}
	}
	if existing.Status != domain.StepStatusInProgress {
		return nil, &StepConflictError{RequestID: requestID, Step: step, Status: existing.Status}
	}
	rec := *existing
	rec.Status = target
	if len(out.Data) > 0 {
		rec.Data = out.Data
	}
	if target == domain.StepStatusFailed {
		failure := out.Failure
		if failure == nil {
			failure = &domain.StepFailure{Code: "step_failed", Message: "step failed"}
		}
		rec.ErrorDetails = jsoncfg.MustMarshal(failure)
	}
	if rec.CompletedAt == nil {
		completed := now
		rec.CompletedAt = &completed
	}
	rec.UpdatedAt = now
	return &rec, nil
}

func (m *Machine) skipStep(requestID string, step domain.StepName, existing *domain.WorkflowStep, out Outcome, now time.Time) (*domain.WorkflowStep, error) {
	if existing != nil && existing.Status == domain.StepStatusSkipped {
		return existing, nil
	}
	if existing != nil && existing.Status != domain.StepStatusInProgress {
		return nil, &StepConflictError{RequestID: requestID, Step: step, Status: existing.Status}
	}
	var rec domain.WorkflowStep
	if existing != nil {
		rec = *existing
	} else {
		rec = domain.WorkflowStep{RequestID: requestID, Name: step, CreatedAt: now}
	}
	rec.Status = domain.StepStatusSkipped
	if len(out.Data) > 0 {
		rec.Data = out.Data
	}
	if rec.CompletedAt == nil {
		completed := now
		rec.CompletedAt = &completed
	}
	rec.UpdatedAt = now
	return &rec, nil
}

// requestTransition derives the request-level status change for a step
// transition.
func (m *Machine) requestTransition(req *domain.GenerationRequest, step domain.StepName, out Outcome, now time.Time) (domain.RequestStatus, *string, *time.Time) {
	switch out.Status {
	case domain.StepStatusInProgress:
		// Clear any prior failure message when a retry re-dispatch lands.
		var errMsg *string
		if req.Status == domain.RequestStatusFailed {
			cleared := ""
			errMsg = &cleared
		}
		return phaseFor(step), errMsg, nil
	case domain.StepStatusFailed:
		msg := "step failed"
		if out.Failure != nil && out.Failure.Message != "" {
			msg = out.Failure.Message
		}
		return domain.RequestStatusFailed, &msg, nil
	case domain.StepStatusCompleted:
		if step == domain.FinalStep() {
			completed := now
			return domain.RequestStatusCompleted, nil, &completed
		}
		return req.Status, nil, nil
	default:
		return req.Status, nil, nil
	}
}

// phaseFor maps an in-progress step to the request status surfaced upstream.
func phaseFor(step domain.StepName) domain.RequestStatus {
	switch step {
	case domain.StepGenerateContent:
		return domain.RequestStatusContentGeneration
	case domain.StepValidateVerses, domain.StepTheologicalValidation:
		return domain.RequestStatusValidation
	default:
		return domain.RequestStatusProcessing
	}
}

// progressPercentage derives overall progress: resolved steps over total,
// rounded down. Skipped steps count as completed.
func progressPercentage(steps []domain.WorkflowStep) int {
	resolved := 0
	for _, s := range steps {
		if s.Status.Resolved() {
			resolved++
		}
	}
	return resolved * 100 / len(domain.StepOrder)
}

func (m *Machine) progressOf(req *domain.GenerationRequest, steps []domain.WorkflowStep) *Progress {
	return &Progress{
		RequestID:  req.ID,
		Status:     req.Status,
		Percentage: req.ProgressPercentage,
		Steps:      steps,
	}
}

// stepNameError wraps ErrUnknownStep with the offending name.
type stepNameError struct {
	step domain.StepName
}

func (e *stepNameError) Error() string { return ErrUnknownStep.Error() + ": " + string(e.step) }
func (e *stepNameError) Unwrap() error { return ErrUnknownStep }

// outcomeError wraps ErrInvalidOutcome with the offending status.
type outcomeError struct {
	status domain.StepStatus
}

func (e *outcomeError) Error() string { return ErrInvalidOutcome.Error() + ": " + string(e.status) }
func (e *outcomeError) Unwrap() error { return ErrInvalidOutcome }
