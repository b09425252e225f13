package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"biblestudy/internal/domain"
	"biblestudy/internal/workflow"
)

type App struct {
	Logger   zerolog.Logger
	Requests domain.GenerationRequestRepository
	Days     domain.GeneratedDayRepository
	Machine  *workflow.Machine
}

func NewApp(logger zerolog.Logger, requests domain.GenerationRequestRepository, days domain.GeneratedDayRepository, machine *workflow.Machine) *App {
	return &App{
		Logger:   logger,
		Requests: requests,
		Days:     days,
		Machine:  machine,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{
		"error":   slug,
		"message": message,
	})
}
