// Package study executes the generation pipeline for a claimed request. Each
// step that consults the model routes its raw response through the extractor
// before the step is marked complete; all state transitions go through the
// workflow machine.
package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"biblestudy/internal/domain"
	"biblestudy/internal/domain/jsoncfg"
	"biblestudy/internal/extract"
	"biblestudy/internal/providers/scripture"
	"biblestudy/internal/workflow"
)

// TextGenerator is the model-invocation contract. The runner never constructs
// transport-level requests itself.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options tunes runner behaviour.
type Options struct {
	// SkipTheologyReview marks the theological_validation step skipped
	// instead of consulting the model.
	SkipTheologyReview bool
	// PromptAttempts is the re-prompt budget per model-backed step before
	// the step is marked failed.
	PromptAttempts int
	// DefaultTranslation is used for verse validation when the request does
	// not name one.
	DefaultTranslation string
}

// Runner drives one request through the pipeline.
type Runner struct {
	machine *workflow.Machine
	model   TextGenerator
	verses  *scripture.Validator
	days    domain.GeneratedDayRepository
	logger  zerolog.Logger
	opts    Options
}

func NewRunner(machine *workflow.Machine, model TextGenerator, verses *scripture.Validator, days domain.GeneratedDayRepository, logger zerolog.Logger, opts Options) *Runner {
	if opts.PromptAttempts < 1 {
		opts.PromptAttempts = 1
	}
	return &Runner{
		machine: machine,
		model:   model,
		verses:  verses,
		days:    days,
		logger:  logger,
		opts:    opts,
	}
}

// stepOutcome is what a step executor hands back to the transition loop.
type stepOutcome struct {
	data    json.RawMessage
	failure *domain.StepFailure
	skip    bool
}

// Run advances the request step by step until the pipeline completes, a step
// failure is recorded, or the request turns out to be terminal. Business
// failures are stored on the request and do not surface as errors; the
// returned error covers contract and infrastructure problems only.
func (r *Runner) Run(ctx context.Context, req *domain.GenerationRequest) error {
	for _, step := range domain.StepOrder {
		done, err := r.runStep(ctx, req, step)
		if err != nil {
			var terminal *workflow.RequestTerminalError
			if errors.As(err, &terminal) {
				r.logger.Info().Str("request_id", req.ID).Str("status", string(terminal.Status)).Msg("study: request terminal, stopping")
				return nil
			}
			return err
		}
		if done {
			return nil
		}
	}
	return nil
}

// runStep starts, executes and resolves a single step. It reports done=true
// when the pipeline should stop (a failure was recorded). Steps already
// resolved by an earlier run are passed over.
func (r *Runner) runStep(ctx context.Context, req *domain.GenerationRequest, step domain.StepName) (bool, error) {
	if err := r.startAttempt(ctx, req.ID, step); err != nil {
		var conflict *workflow.StepConflictError
		if errors.As(err, &conflict) && conflict.Status.Resolved() {
			return false, nil
		}
		return false, err
	}

	out := r.execute(ctx, req, step)

	switch {
	case out.skip:
		_, err := r.machine.Advance(ctx, req.ID, step, workflow.Outcome{Status: domain.StepStatusSkipped, Data: out.data})
		return false, err
	case out.failure != nil:
		_, err := r.machine.Advance(ctx, req.ID, step, workflow.Outcome{Status: domain.StepStatusFailed, Failure: out.failure})
		if err != nil {
			return false, err
		}
		r.logger.Warn().
			Str("request_id", req.ID).
			Str("step", string(step)).
			Str("code", out.failure.Code).
			Msg("study: step failed")
		return true, nil
	default:
		_, err := r.machine.Advance(ctx, req.ID, step, workflow.Outcome{Status: domain.StepStatusCompleted, Data: out.data})
		return false, err
	}
}

// startAttempt opens a new in_progress attempt for the step. A step left
// in_progress by a worker that died mid-run is failed first so the regular
// retry path re-enters it on the next claim.
func (r *Runner) startAttempt(ctx context.Context, requestID string, step domain.StepName) error {
	_, err := r.machine.Advance(ctx, requestID, step, workflow.Outcome{Status: domain.StepStatusInProgress})
	var conflict *workflow.StepConflictError
	if !errors.As(err, &conflict) || conflict.Status != domain.StepStatusInProgress {
		return err
	}
	r.logger.Warn().
		Str("request_id", requestID).
		Str("step", string(step)).
		Msg("study: step abandoned mid-run, retrying")
	_, err = r.machine.Advance(ctx, requestID, step, workflow.Outcome{
		Status:  domain.StepStatusFailed,
		Failure: &domain.StepFailure{Code: "worker_lost", Message: "previous worker did not finish the step"},
	})
	if err != nil {
		return err
	}
	_, err = r.machine.Advance(ctx, requestID, step, workflow.Outcome{Status: domain.StepStatusInProgress})
	return err
}

func (r *Runner) execute(ctx context.Context, req *domain.GenerationRequest, step domain.StepName) stepOutcome {
	switch step {
	case domain.StepParseRequest:
		return r.parseRequest(req)
	case domain.StepPlanStudy:
		return r.planStudy(ctx, req)
	case domain.StepGenerateContent:
		return r.generateContent(ctx, req)
	case domain.StepValidateVerses:
		return r.validateVerses(ctx, req)
	case domain.StepTheologicalValidation:
		return r.theologicalValidation(ctx, req)
	case domain.StepAssembly:
		return r.assembly(ctx, req)
	case domain.StepCompleted:
		return stepOutcome{}
	default:
		return stepOutcome{failure: &domain.StepFailure{Code: "unknown_step", Message: string(step)}}
	}
}

func (r *Runner) parseRequest(req *domain.GenerationRequest) stepOutcome {
	params := req.Parameters
	jsoncfg.NormalizeParameters(&params.DurationDays, &params.Style, &params.Difficulty, &params.Translation)
	if params.Topic == "" {
		return stepOutcome{failure: &domain.StepFailure{Code: "invalid_parameters", Message: "topic is required"}}
	}
	req.Parameters = params
	return stepOutcome{data: jsoncfg.MustMarshal(params)}
}

func (r *Runner) planStudy(ctx context.Context, req *domain.GenerationRequest) stepOutcome {
	plan, err := modelJSON[jsoncfg.StudyPlanJSON](ctx, r, buildPlanPrompt(req.Parameters))
	if err != nil {
		return stepOutcome{failure: extractionFailure("plan_study", err)}
	}
	if len(plan.Days) > req.Parameters.DurationDays {
		plan.Days = plan.Days[:req.Parameters.DurationDays]
	}
	return stepOutcome{data: jsoncfg.MustMarshal(plan)}
}

func (r *Runner) generateContent(ctx context.Context, req *domain.GenerationRequest) stepOutcome {
	plan, err := r.loadPlan(ctx, req.ID)
	if err != nil {
		return stepOutcome{failure: &domain.StepFailure{Code: "missing_plan", Message: err.Error()}}
	}

	days := make([]domain.GeneratedDay, 0, len(plan.Days))
	for _, planned := range plan.Days {
		content, err := modelJSON[jsoncfg.DayContentJSON](ctx, r, buildDayPrompt(req.Parameters, plan, planned))
		if err != nil {
			return stepOutcome{failure: extractionFailure(fmt.Sprintf("generate_content day %d", planned.DayNumber), err)}
		}
		passages := content.Passages
		if len(passages) == 0 {
			passages = planned.Passages
		}
		days = append(days, domain.GeneratedDay{
			RequestID:        req.ID,
			DayNumber:        planned.DayNumber,
			WeekNumber:       planned.WeekNumber,
			Title:            content.Title,
			TeachingContent:  content.TeachingContent,
			Passages:         passages,
			Questions:        content.Questions,
			PrayerFocus:      content.PrayerFocus,
			GenerationStatus: domain.DayGenerationCompleted,
			ValidationStatus: domain.DayValidationPending,
		})
	}
	if err := r.days.SaveAll(ctx, days); err != nil {
		return stepOutcome{failure: &domain.StepFailure{Code: "persist_days", Message: err.Error()}}
	}
	return stepOutcome{data: jsoncfg.MustMarshal(map[string]int{"days": len(days)})}
}

type verseReport struct {
	Checked int      `json:"checked"`
	Invalid []string `json:"invalid,omitempty"`
}

func (r *Runner) validateVerses(ctx context.Context, req *domain.GenerationRequest) stepOutcome {
	days, err := r.days.ListByRequest(ctx, req.ID)
	if err != nil {
		return stepOutcome{failure: &domain.StepFailure{Code: "load_days", Message: err.Error()}}
	}
	translation := req.Parameters.Translation
	if translation == "" {
		translation = r.opts.DefaultTranslation
	}

	report := verseReport{}
	seen := map[string]bool{}
	for _, day := range days {
		for _, passage := range day.Passages {
			normalized := scripture.Normalize(passage)
			if _, ok := seen[normalized]; ok {
				continue
			}
			entry, err := r.verses.Validate(ctx, passage, translation)
			if err != nil {
				return stepOutcome{failure: &domain.StepFailure{Code: "scripture_api", Message: err.Error()}}
			}
			seen[normalized] = entry.Valid
			report.Checked++
			if !entry.Valid {
				report.Invalid = append(report.Invalid, normalized)
			}
		}
	}
	return stepOutcome{data: jsoncfg.MustMarshal(report)}
}

func (r *Runner) theologicalValidation(ctx context.Context, req *domain.GenerationRequest) stepOutcome {
	days, err := r.days.ListByRequest(ctx, req.ID)
	if err != nil {
		return stepOutcome{failure: &domain.StepFailure{Code: "load_days", Message: err.Error()}}
	}

	if r.opts.SkipTheologyReview {
		for _, day := range days {
			if err := r.days.UpdateValidation(ctx, req.ID, day.DayNumber, domain.DayValidationSkipped); err != nil {
				return stepOutcome{failure: &domain.StepFailure{Code: "persist_validation", Message: err.Error()}}
			}
		}
		return stepOutcome{skip: true, data: jsoncfg.MustMarshal(map[string]string{"reason": "review disabled by configuration"})}
	}

	plan, err := r.loadPlan(ctx, req.ID)
	if err != nil {
		return stepOutcome{failure: &domain.StepFailure{Code: "missing_plan", Message: err.Error()}}
	}
	review, err := modelJSON[jsoncfg.TheologyReviewJSON](ctx, r, buildTheologyPrompt(plan, days))
	if err != nil {
		return stepOutcome{failure: extractionFailure("theological_validation", err)}
	}

	flagged := map[int]bool{}
	for _, concern := range review.Concerns {
		flagged[concern.DayNumber] = true
	}
	for _, day := range days {
		status := domain.DayValidationApproved
		if flagged[day.DayNumber] {
			status = domain.DayValidationRejected
		}
		if err := r.days.UpdateValidation(ctx, req.ID, day.DayNumber, status); err != nil {
			return stepOutcome{failure: &domain.StepFailure{Code: "persist_validation", Message: err.Error()}}
		}
	}
	return stepOutcome{data: jsoncfg.MustMarshal(review)}
}

type assemblySummary struct {
	TotalDays int `json:"total_days"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Skipped   int `json:"skipped"`
}

func (r *Runner) assembly(ctx context.Context, req *domain.GenerationRequest) stepOutcome {
	days, err := r.days.ListByRequest(ctx, req.ID)
	if err != nil {
		return stepOutcome{failure: &domain.StepFailure{Code: "load_days", Message: err.Error()}}
	}
	summary := assemblySummary{TotalDays: len(days)}
	for _, day := range days {
		switch day.ValidationStatus {
		case domain.DayValidationApproved:
			summary.Approved++
		case domain.DayValidationRejected:
			summary.Rejected++
		case domain.DayValidationSkipped:
			summary.Skipped++
		}
	}
	if summary.TotalDays == 0 {
		return stepOutcome{failure: &domain.StepFailure{Code: "empty_study", Message: "no generated days to assemble"}}
	}
	return stepOutcome{data: jsoncfg.MustMarshal(summary)}
}

// loadPlan recovers the study plan recorded by the plan_study step.
func (r *Runner) loadPlan(ctx context.Context, requestID string) (jsoncfg.StudyPlanJSON, error) {
	var plan jsoncfg.StudyPlanJSON
	progress, err := r.machine.GetProgress(ctx, requestID)
	if err != nil {
		return plan, err
	}
	for _, step := range progress.Steps {
		if step.Name != domain.StepPlanStudy {
			continue
		}
		if len(step.Data) == 0 {
			break
		}
		if err := json.Unmarshal(step.Data, &plan); err != nil {
			return plan, fmt.Errorf("decode stored plan: %w", err)
		}
		return plan, nil
	}
	return plan, errors.New("plan_study produced no plan")
}

// modelJSON prompts the model and extracts a schema-valid payload, re-prompting
// within the configured budget when the response is unrecoverable.
func modelJSON[T extract.Schema](ctx context.Context, r *Runner, prompt string) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < r.opts.PromptAttempts; attempt++ {
		raw, err := r.model.Generate(ctx, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		value, err := extract.Extract[T](raw)
		if err == nil {
			return value, nil
		}
		lastErr = err
		r.logger.Debug().Err(err).Int("attempt", attempt+1).Msg("study: extraction failed, re-prompting")
	}
	return zero, lastErr
}

func extractionFailure(what string, err error) *domain.StepFailure {
	failure := &domain.StepFailure{Code: "model_response", Message: fmt.Sprintf("%s: %v", what, err)}
	var extractionErr *extract.ExtractionFailedError
	if errors.As(err, &extractionErr) {
		failure.Code = "extraction_failed"
		failure.Detail = extractionErr.Preview
	}
	var noJSON *extract.NoJSONFoundError
	if errors.As(err, &noJSON) {
		failure.Code = "no_json_found"
	}
	return failure
}
