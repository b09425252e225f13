package extract

import "fmt"

// NoJSONFoundError reports model output with no `{...}` span at all. The
// response is unrecoverable; the caller must re-prompt.
type NoJSONFoundError struct {
	Length int
}

func (e *NoJSONFoundError) Error() string {
	return fmt.Sprintf("no JSON object found in model response (%d bytes)", e.Length)
}

// ExtractionFailedError reports that a JSON span existed but no repair pass
// produced schema-valid data. Preview is a bounded excerpt of the final
// cleaned candidate, for diagnostics only.
type ExtractionFailedError struct {
	Attempts int
	LastErr  error
	Preview  string
}

func (e *ExtractionFailedError) Error() string {
	return fmt.Sprintf("extraction failed after %d repair passes: %v", e.Attempts, e.LastErr)
}

func (e *ExtractionFailedError) Unwrap() error { return e.LastErr }
