package domain

import "time"

// DayGenerationStatus tracks whether the content of a day has been produced.
type DayGenerationStatus string

const (
	DayGenerationPending   DayGenerationStatus = "pending"
	DayGenerationCompleted DayGenerationStatus = "completed"
	DayGenerationFailed    DayGenerationStatus = "failed"
)

// DayValidationStatus tracks theological review separately from generation.
// A day can be content-complete while still pending review.
type DayValidationStatus string

const (
	DayValidationPending  DayValidationStatus = "pending"
	DayValidationApproved DayValidationStatus = "approved"
	DayValidationRejected DayValidationStatus = "rejected"
	DayValidationSkipped  DayValidationStatus = "skipped"
)

// GeneratedDay is one row per (request, day number). WeekNumber is nil for
// daily studies.
type GeneratedDay struct {
	RequestID        string
	DayNumber        int
	WeekNumber       *int
	Title            string
	TeachingContent  string
	Passages         []string
	Questions        []string
	PrayerFocus      string
	GenerationStatus DayGenerationStatus
	ValidationStatus DayValidationStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
