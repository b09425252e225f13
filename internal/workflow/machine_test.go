package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"biblestudy/internal/domain"
)

type fakeRequestRepo struct {
	reqs map[string]*domain.GenerationRequest
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{reqs: make(map[string]*domain.GenerationRequest)}
}

func (f *fakeRequestRepo) Create(_ context.Context, req *domain.GenerationRequest) error {
	clone := *req
	f.reqs[req.ID] = &clone
	return nil
}

func (f *fakeRequestRepo) GetByID(_ context.Context, id string) (*domain.GenerationRequest, error) {
	req, ok := f.reqs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (f *fakeRequestRepo) UpdateStatus(_ context.Context, id string, status domain.RequestStatus, progress int, errMsg *string, completedAt *time.Time) error {
	req, ok := f.reqs[id]
	if !ok {
		return domain.ErrNotFound
	}
	req.Status = status
	req.ProgressPercentage = progress
	if errMsg != nil {
		req.ErrorMessage = *errMsg
	}
	if completedAt != nil && req.CompletedAt == nil {
		req.CompletedAt = completedAt
	}
	return nil
}

type fakeStepRepo struct {
	steps map[string][]domain.WorkflowStep
}

func newFakeStepRepo() *fakeStepRepo {
	return &fakeStepRepo{steps: make(map[string][]domain.WorkflowStep)}
}

func (f *fakeStepRepo) Get(_ context.Context, requestID string, name domain.StepName) (*domain.WorkflowStep, error) {
	for _, s := range f.steps[requestID] {
		if s.Name == name {
			clone := s
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStepRepo) ListByRequest(_ context.Context, requestID string) ([]domain.WorkflowStep, error) {
	out := make([]domain.WorkflowStep, len(f.steps[requestID]))
	copy(out, f.steps[requestID])
	return out, nil
}

func (f *fakeStepRepo) Upsert(_ context.Context, step *domain.WorkflowStep) error {
	list := f.steps[step.RequestID]
	for i := range list {
		if list[i].Name == step.Name {
			list[i] = *step
			return nil
		}
	}
	f.steps[step.RequestID] = append(list, *step)
	return nil
}

func newTestMachine() (*Machine, *fakeRequestRepo) {
	requests := newFakeRequestRepo()
	return NewMachine(requests, newFakeStepRepo(), zerolog.Nop()), requests
}

func seedRequest(t *testing.T, requests *fakeRequestRepo, id string) {
	t.Helper()
	err := requests.Create(context.Background(), &domain.GenerationRequest{
		ID:         id,
		Parameters: domain.StudyParameters{Topic: "grace", DurationDays: 7},
		Status:     domain.RequestStatusPending,
	})
	if err != nil {
		t.Fatalf("seed request: %v", err)
	}
}

// completeSteps starts and completes the given steps in order.
func completeSteps(t *testing.T, m *Machine, id string, steps ...domain.StepName) *Progress {
	t.Helper()
	ctx := context.Background()
	var progress *Progress
	for _, step := range steps {
		if _, err := m.Advance(ctx, id, step, Outcome{Status: domain.StepStatusInProgress}); err != nil {
			t.Fatalf("start %s: %v", step, err)
		}
		var err error
		progress, err = m.Advance(ctx, id, step, Outcome{Status: domain.StepStatusCompleted})
		if err != nil {
			t.Fatalf("complete %s: %v", step, err)
		}
	}
	return progress
}

func TestAdvanceUnknownStep(t *testing.T) {
	m, requests := newTestMachine()
	seedRequest(t, requests, "r1")

	_, err := m.Advance(context.Background(), "r1", "not_a_step", Outcome{Status: domain.StepStatusInProgress})
	if !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("expected ErrUnknownStep, got %v", err)
	}
}

func TestAdvanceUnknownRequest(t *testing.T) {
	m, _ := newTestMachine()
	_, err := m.Advance(context.Background(), "missing", domain.StepParseRequest, Outcome{Status: domain.StepStatusInProgress})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFirstStepLifecycle(t *testing.T) {
	m, requests := newTestMachine()
	seedRequest(t, requests, "r1")
	ctx := context.Background()

	progress, err := m.Advance(ctx, "r1", domain.StepParseRequest, Outcome{Status: domain.StepStatusInProgress})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if progress.Status != domain.RequestStatusProcessing {
		t.Fatalf("expected processing, got %s", progress.Status)
	}
	if progress.Percentage != 0 {
		t.Fatalf("expected 0%%, got %d", progress.Percentage)
	}

	progress, err = m.Advance(ctx, "r1", domain.StepParseRequest, Outcome{Status: domain.StepStatusCompleted})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if progress.Percentage != 14 {
		t.Fatalf("expected 14%% after one of seven steps, got %d", progress.Percentage)
	}
	if progress.Steps[0].StartedAt == nil || progress.Steps[0].CompletedAt == nil {
		t.Fatalf("expected start and completion stamps, got %+v", progress.Steps[0])
	}
}

func TestProgressFloorsTwoOfSeven(t *testing.T) {
	m, requests := newTestMachine()
	seedRequest(t, requests, "r1")

	progress := completeSteps(t, m, "r1", domain.StepParseRequest, domain.StepPlanStudy)
	if progress.Percentage != 28 {
		t.Fatalf("expected 28%%, got %d", progress.Percentage)
	}
}

func TestStepOrderViolation(t *testing.T) {
	m, requests := newTestMachine()
	seedRequest(t, requests, "r1")

	_, err := m.Advance(context.Background(), "r1", domain.StepPlanStudy, Outcome{Status: domain.StepStatusInProgress})
	var violation *StepOrderViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected StepOrderViolationError, got %v", err)
	}
	if violation.Blocking != domain.StepParseRequest {
		t.Fatalf("expected parse_request to block, got %s", violation.Blocking)
	}
}

func TestStartConflictWhileInProgress(t *testing.T) {
	m, requests := newTestMachine()
	seedRequest(t, requests, "r1")
	ctx := context.Background()

	if _, err := m.Advance(ctx, "r1", domain.StepParseRequest, Outcome{Status: domain.StepStatusInProgress}); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := m.Advance(ctx, "r1", domain.StepParseRequest, Outcome{Status: domain.StepStatusInProgress})
	var conflict *StepConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StepConflictError, got %v", err)
	}
}

func TestCompleteNeverStartedStep(t *testing.T) {
	m, requests := newTestMachine()
	seedRequest(t, requests, "r1")

	_, err := m.Advance(context.Background(), "r1", domain.StepParseRequest, Outcome{Status: domain.StepStatusCompleted})
	var conflict *StepConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StepConflictError, got %v", err)
	}
}

func TestFailureAndRetry(t *testing.T) {
	m, requests := newTestMachine()
	seedRequest(t, requests, "r1")
	ctx := context.Background()

	if _, err := m.Advance(ctx, "r1", domain.StepParseRequest, Outcome{Status: domain.StepStatusInProgress}); err != nil {
		t.Fatalf("start: %v", err)
	}
	progress, err := m.Advance(ctx, "r1", domain.StepParseRequest, Outcome{
		Status:  domain.StepStatusFailed,
		Failure: &domain.StepFailure{Code: "bad_topic", Message: "topic is empty"},
	})
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if progress.Status != domain.RequestStatusFailed {
		t.Fatalf("expected failed request, got %s", progress.Status)
	}
	req, _ := requests.GetByID(ctx, "r1")
	if req.ErrorMessage != "topic is empty" {
		t.Fatalf("expected stored error message, got %q", req.ErrorMessage)
	}
	if len(progress.Steps[0].ErrorDetails) == 0 {
		t.Fatalf("expected structured error details on the step")
	}

	// Anything but a retry re-dispatch is rejected while failed.
	_, err = m.Advance(ctx, "r1", domain.StepParseRequest, Outcome{Status: domain.StepStatusCompleted})
	var terminal *RequestTerminalError
	if !errors.As(err, &terminal) {
		t.Fatalf("expected RequestTerminalError, got %v", err)
	}

	progress, err = m.Advance(ctx, "r1", domain.StepParseRequest, Outcome{Status: domain.StepStatusInProgress})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if progress.Status != domain.RequestStatusProcessing {
		t.Fatalf("expected processing after retry, got %s", progress.Status)
	}
	if progress.Steps[0].RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", progress.Steps[0].RetryCount)
	}
	if len(progress.Steps[0].ErrorDetails) != 0 {
		t.Fatalf("expected error details cleared on retry")
	}
	req, _ = requests.GetByID(ctx, "r1")
	if req.ErrorMessage != "" {
		t.Fatalf("expected request error message cleared, got %q", req.ErrorMessage)
	}
}

func TestFailedRequestRejectsRecompletingEarlierStep(t *testing.T) {
	m, requests := newTestMachine()
	seedRequest(t, requests, "r1")
	ctx := context.Background()

	completeSteps(t, m, "r1", domain.StepParseRequest)
	if _, err := m.Advance(ctx, "r1", domain.StepPlanStudy, Outcome{Status: domain.StepStatusInProgress}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Advance(ctx, "r1", domain.StepPlanStudy, Outcome{
		Status:  domain.StepStatusFailed,
		Failure: &domain.StepFailure{Code: "model_response", Message: "bad plan"},
	}); err != nil {
		t.Fatalf("fail: %v", err)
	}

	// The re-completion no-op applies to live and completed requests only; a
	// failed request still rejects everything but a retry re-dispatch.
	_, err := m.Advance(ctx, "r1", domain.StepParseRequest, Outcome{Status: domain.StepStatusCompleted})
	var terminal *RequestTerminalError
	if !errors.As(err, &terminal) {
		t.Fatalf("expected RequestTerminalError, got %v", err)
	}
	if terminal.Status != domain.RequestStatusFailed {
		t.Fatalf("expected failed status in error, got %s", terminal.Status)
	}
}

func TestSkippedStepCountsTowardProgress(t *testing.T) {
	m, requests := newTestMachine()
	seedRequest(t, requests, "r1")
	ctx := context.Background()

	completeSteps(t, m, "r1",
		domain.StepParseRequest,
		domain.StepPlanStudy,
		domain.StepGenerateContent,
		domain.StepValidateVerses,
	)
	progress, err := m.Advance(ctx, "r1", domain.StepTheologicalValidation, Outcome{Status: domain.StepStatusSkipped})
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if progress.Percentage != 71 {
		t.Fatalf("expected 71%% with five of seven resolved, got %d", progress.Percentage)
	}

	// The skipped step does not block its successors.
	progress = completeSteps(t, m, "r1", domain.StepAssembly, domain.StepCompleted)
	if progress.Status != domain.RequestStatusCompleted || progress.Percentage != 100 {
		t.Fatalf("expected completed at 100%%, got %s %d", progress.Status, progress.Percentage)
	}
}

func TestFullPipelineCompletion(t *testing.T) {
	m, requests := newTestMachine()
	seedRequest(t, requests, "r1")
	ctx := context.Background()

	progress := completeSteps(t, m, "r1", domain.StepOrder...)
	if progress.Status != domain.RequestStatusCompleted {
		t.Fatalf("expected completed, got %s", progress.Status)
	}
	if progress.Percentage != 100 {
		t.Fatalf("expected 100%%, got %d", progress.Percentage)
	}
	req, _ := requests.GetByID(ctx, "r1")
	if req.CompletedAt == nil {
		t.Fatalf("expected completion timestamp")
	}
	first := *req.CompletedAt

	// Re-completing the final step is a no-op and never re-stamps.
	if _, err := m.Advance(ctx, "r1", domain.StepCompleted, Outcome{Status: domain.StepStatusCompleted}); err != nil {
		t.Fatalf("idempotent re-completion: %v", err)
	}
	req, _ = requests.GetByID(ctx, "r1")
	if !req.CompletedAt.Equal(first) {
		t.Fatalf("completion timestamp changed on re-completion")
	}
}

func TestPhaseMapping(t *testing.T) {
	m, requests := newTestMachine()
	seedRequest(t, requests, "r1")
	ctx := context.Background()

	completeSteps(t, m, "r1", domain.StepParseRequest, domain.StepPlanStudy)

	progress, err := m.Advance(ctx, "r1", domain.StepGenerateContent, Outcome{Status: domain.StepStatusInProgress})
	if err != nil {
		t.Fatalf("start generate_content: %v", err)
	}
	if progress.Status != domain.RequestStatusContentGeneration {
		t.Fatalf("expected content_generation, got %s", progress.Status)
	}
	if _, err := m.Advance(ctx, "r1", domain.StepGenerateContent, Outcome{Status: domain.StepStatusCompleted}); err != nil {
		t.Fatalf("complete generate_content: %v", err)
	}

	progress, err = m.Advance(ctx, "r1", domain.StepValidateVerses, Outcome{Status: domain.StepStatusInProgress})
	if err != nil {
		t.Fatalf("start validate_verses: %v", err)
	}
	if progress.Status != domain.RequestStatusValidation {
		t.Fatalf("expected validation, got %s", progress.Status)
	}
}

func TestCancel(t *testing.T) {
	m, requests := newTestMachine()
	seedRequest(t, requests, "r1")
	ctx := context.Background()

	completeSteps(t, m, "r1", domain.StepParseRequest)

	progress, err := m.Cancel(ctx, "r1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if progress.Status != domain.RequestStatusCancelled {
		t.Fatalf("expected cancelled, got %s", progress.Status)
	}

	_, err = m.Advance(ctx, "r1", domain.StepPlanStudy, Outcome{Status: domain.StepStatusInProgress})
	var terminal *RequestTerminalError
	if !errors.As(err, &terminal) {
		t.Fatalf("expected RequestTerminalError after cancel, got %v", err)
	}

	// Cancelling twice is a no-op.
	if _, err := m.Cancel(ctx, "r1"); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
}

func TestCancelCompletedRequest(t *testing.T) {
	m, requests := newTestMachine()
	seedRequest(t, requests, "r1")

	completeSteps(t, m, "r1", domain.StepOrder...)

	_, err := m.Cancel(context.Background(), "r1")
	var terminal *RequestTerminalError
	if !errors.As(err, &terminal) {
		t.Fatalf("expected RequestTerminalError, got %v", err)
	}
}
