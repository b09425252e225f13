package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultDurationDays is used when the request omits a duration.
	DefaultDurationDays = 7
	// MaxDurationDays caps the length of a generated study.
	MaxDurationDays = 90
	// DefaultDifficulty is applied when no difficulty preference is provided.
	DefaultDifficulty = "beginner"
	// DefaultStyle is the baseline study style.
	DefaultStyle = "devotional"
	// DefaultTranslation is the Bible translation used when none is requested.
	DefaultTranslation = "web"
)

var allowedDifficulties = map[string]struct{}{
	"beginner":     {},
	"intermediate": {},
	"advanced":     {},
}

var allowedStyles = map[string]struct{}{
	"devotional":    {},
	"topical":       {},
	"book_study":    {},
	"inductive":     {},
	"chronological": {},
}

// StudyPlanJSON is the contract the planning step expects from the model.
type StudyPlanJSON struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Theme       string        `json:"theme"`
	Weekly      bool          `json:"weekly"`
	Days        []PlanDayJSON `json:"days"`
}

// PlanDayJSON is one planned day within a study plan.
type PlanDayJSON struct {
	DayNumber  int      `json:"day_number"`
	WeekNumber *int     `json:"week_number,omitempty"`
	Focus      string   `json:"focus"`
	Passages   []string `json:"passages"`
}

// Validate ensures the plan satisfies the contract before content generation.
func (p StudyPlanJSON) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(p.Days) == 0 {
		return fmt.Errorf("days must not be empty")
	}
	seen := make(map[int]struct{}, len(p.Days))
	for i, d := range p.Days {
		if d.DayNumber < 1 {
			return fmt.Errorf("days[%d].day_number must be positive", i)
		}
		if _, dup := seen[d.DayNumber]; dup {
			return fmt.Errorf("days[%d].day_number %d is duplicated", i, d.DayNumber)
		}
		seen[d.DayNumber] = struct{}{}
		if strings.TrimSpace(d.Focus) == "" {
			return fmt.Errorf("days[%d].focus is required", i)
		}
		if len(d.Passages) == 0 {
			return fmt.Errorf("days[%d].passages must not be empty", i)
		}
	}
	return nil
}

// DayContentJSON is the contract the content-generation step expects from the
// model for a single day.
type DayContentJSON struct {
	DayNumber       int      `json:"day_number"`
	Title           string   `json:"title"`
	TeachingContent string   `json:"teaching_content"`
	Passages        []string `json:"passages"`
	Questions       []string `json:"questions"`
	PrayerFocus     string   `json:"prayer_focus"`
}

// Validate ensures the generated day content satisfies the contract.
func (d DayContentJSON) Validate() error {
	if d.DayNumber < 1 {
		return fmt.Errorf("day_number must be positive")
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(d.TeachingContent) == "" {
		return fmt.Errorf("teaching_content is required")
	}
	if len(d.Passages) == 0 {
		return fmt.Errorf("passages must not be empty")
	}
	if len(d.Questions) == 0 {
		return fmt.Errorf("questions must not be empty")
	}
	return nil
}

// TheologyReviewJSON is the contract of the theological validation step.
type TheologyReviewJSON struct {
	Approved bool              `json:"approved"`
	Summary  string            `json:"summary"`
	Concerns []TheologyConcern `json:"concerns"`
}

// TheologyConcern flags a specific day for doctrinal review.
type TheologyConcern struct {
	DayNumber int    `json:"day_number"`
	Issue     string `json:"issue"`
	Severity  string `json:"severity"`
}

// Validate ensures the review payload is usable.
func (t TheologyReviewJSON) Validate() error {
	if strings.TrimSpace(t.Summary) == "" {
		return fmt.Errorf("summary is required")
	}
	for i, c := range t.Concerns {
		if c.DayNumber < 1 {
			return fmt.Errorf("concerns[%d].day_number must be positive", i)
		}
		if strings.TrimSpace(c.Issue) == "" {
			return fmt.Errorf("concerns[%d].issue is required", i)
		}
	}
	return nil
}

// NormalizeParameters applies server defaults and limits to raw study
// parameters before the request is accepted.
func NormalizeParameters(durationDays *int, style, difficulty, translation *string) {
	if durationDays != nil {
		if *durationDays <= 0 {
			*durationDays = DefaultDurationDays
		}
		if *durationDays > MaxDurationDays {
			*durationDays = MaxDurationDays
		}
	}
	if style != nil {
		s := strings.ToLower(strings.TrimSpace(*style))
		if _, ok := allowedStyles[s]; !ok {
			s = DefaultStyle
		}
		*style = s
	}
	if difficulty != nil {
		d := strings.ToLower(strings.TrimSpace(*difficulty))
		if _, ok := allowedDifficulties[d]; !ok {
			d = DefaultDifficulty
		}
		*difficulty = d
	}
	if translation != nil {
		tr := strings.ToLower(strings.TrimSpace(*translation))
		if tr == "" {
			tr = DefaultTranslation
		}
		*translation = tr
	}
}

// MustMarshal marshals v or panics. Reserved for payloads built from typed
// structs where a marshal failure is a programming error.
func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
