package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"biblestudy/internal/domain"
	"biblestudy/internal/domain/jsoncfg"
	"biblestudy/internal/middleware"
	"biblestudy/internal/workflow"
)

type studyRequest struct {
	Topic               string `json:"topic"`
	DurationDays        *int   `json:"duration_days"`
	Style               string `json:"style"`
	Difficulty          string `json:"difficulty"`
	Audience            string `json:"audience"`
	SpecialRequirements string `json:"special_requirements"`
	Translation         string `json:"translation"`
}

type stepView struct {
	Name         domain.StepName   `json:"name"`
	Status       domain.StepStatus `json:"status"`
	RetryCount   int               `json:"retry_count"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	ErrorDetails json.RawMessage   `json:"error_details,omitempty"`
}

func (a *App) StudiesCreate(w http.ResponseWriter, r *http.Request) {
	var req studyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "topic is required")
		return
	}
	if req.DurationDays != nil && *req.DurationDays > jsoncfg.MaxDurationDays {
		a.error(w, http.StatusBadRequest, "bad_request", "duration_days exceeds the maximum of 90")
		return
	}

	translation := strings.TrimSpace(req.Translation)
	if translation == "" {
		translation = middleware.TranslationFromContext(r.Context())
	}
	duration := 0
	if req.DurationDays != nil {
		duration = *req.DurationDays
	}

	generation := &domain.GenerationRequest{
		ID: uuid.NewString(),
		Parameters: domain.StudyParameters{
			Topic:               topic,
			DurationDays:        duration,
			Style:               strings.TrimSpace(req.Style),
			Difficulty:          strings.TrimSpace(req.Difficulty),
			Audience:            strings.TrimSpace(req.Audience),
			SpecialRequirements: strings.TrimSpace(req.SpecialRequirements),
			Translation:         translation,
		},
		Status: domain.RequestStatusPending,
	}
	if err := a.Requests.Create(r.Context(), generation); err != nil {
		a.Logger.Error().Err(err).Msg("studies: create failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create study request")
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"id":     generation.ID,
		"status": generation.Status,
	})
}

func (a *App) StudiesGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := a.Requests.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "study request not found")
			return
		}
		a.Logger.Error().Err(err).Str("request_id", id).Msg("studies: load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load study request")
		return
	}
	progress, err := a.Machine.GetProgress(r.Context(), id)
	if err != nil {
		a.Logger.Error().Err(err).Str("request_id", id).Msg("studies: progress failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load progress")
		return
	}

	steps := make([]stepView, 0, len(progress.Steps))
	for _, s := range progress.Steps {
		steps = append(steps, stepView{
			Name:         s.Name,
			Status:       s.Status,
			RetryCount:   s.RetryCount,
			StartedAt:    s.StartedAt,
			CompletedAt:  s.CompletedAt,
			ErrorDetails: s.ErrorDetails,
		})
	}
	body := map[string]any{
		"id":         req.ID,
		"status":     req.Status,
		"progress":   progress.Percentage,
		"parameters": req.Parameters,
		"steps":      steps,
		"created_at": req.CreatedAt,
		"updated_at": req.UpdatedAt,
	}
	if req.ErrorMessage != "" {
		body["error_message"] = req.ErrorMessage
	}
	if req.CompletedAt != nil {
		body["completed_at"] = req.CompletedAt
	}
	a.json(w, http.StatusOK, body)
}

func (a *App) StudiesDays(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.Requests.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "study request not found")
			return
		}
		a.Logger.Error().Err(err).Str("request_id", id).Msg("studies: load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load study request")
		return
	}
	days, err := a.Days.ListByRequest(r.Context(), id)
	if err != nil {
		a.Logger.Error().Err(err).Str("request_id", id).Msg("studies: list days failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load study days")
		return
	}
	items := make([]map[string]any, 0, len(days))
	for _, day := range days {
		items = append(items, map[string]any{
			"day_number":        day.DayNumber,
			"week_number":       day.WeekNumber,
			"title":             day.Title,
			"teaching_content":  day.TeachingContent,
			"passages":          day.Passages,
			"questions":         day.Questions,
			"prayer_focus":      day.PrayerFocus,
			"validation_status": day.ValidationStatus,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) StudiesCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	progress, err := a.Machine.Cancel(r.Context(), id)
	if err != nil {
		var terminal *workflow.RequestTerminalError
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "study request not found")
		case errors.As(err, &terminal):
			a.error(w, http.StatusConflict, "conflict", err.Error())
		default:
			a.Logger.Error().Err(err).Str("request_id", id).Msg("studies: cancel failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to cancel study request")
		}
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"id":     id,
		"status": progress.Status,
	})
}
