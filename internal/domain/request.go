package domain

import "time"

// RequestStatus enumerates the lifecycle states of a study generation request.
type RequestStatus string

const (
	RequestStatusPending           RequestStatus = "pending"
	RequestStatusProcessing        RequestStatus = "processing"
	RequestStatusContentGeneration RequestStatus = "content_generation"
	RequestStatusValidation        RequestStatus = "validation"
	RequestStatusCompleted         RequestStatus = "completed"
	RequestStatusFailed            RequestStatus = "failed"
	RequestStatusCancelled         RequestStatus = "cancelled"
)

// Terminal reports whether no further workflow transitions are permitted.
// A failed request is terminal until an explicit retry re-dispatch.
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestStatusCompleted, RequestStatusFailed, RequestStatusCancelled:
		return true
	}
	return false
}

// StudyParameters are the caller-supplied generation inputs. They are
// immutable once the request is accepted.
type StudyParameters struct {
	Topic               string `json:"topic"`
	DurationDays        int    `json:"duration_days"`
	Style               string `json:"style"`
	Difficulty          string `json:"difficulty"`
	Audience            string `json:"audience"`
	SpecialRequirements string `json:"special_requirements,omitempty"`
	Translation         string `json:"translation,omitempty"`
}

// GenerationRequest is one study-generation attempt. It owns its workflow
// steps and generated days.
type GenerationRequest struct {
	ID                 string
	Parameters         StudyParameters
	Status             RequestStatus
	ProgressPercentage int
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
}
