package domain

import "time"

// VerseValidation caches the outcome of validating a scripture reference
// against the external Bible text source. The raw reference is the stored
// unique key; NormalizedReference is the practical lookup key.
type VerseValidation struct {
	Reference           string
	NormalizedReference string
	Valid               bool
	Text                string
	Translation         string
	CheckedAt           time.Time
	ExpiresAt           time.Time
}

// Fresh reports whether the cached outcome is still usable.
func (v *VerseValidation) Fresh(now time.Time) bool {
	return v != nil && now.Before(v.ExpiresAt)
}
