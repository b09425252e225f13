// Package extract recovers schema-valid objects from generative model output.
//
// Model responses routinely wrap JSON in conversational prose, annotate it
// with comments, elide array elements with "..." or truncate trailing
// structure. Extract locates the candidate JSON span and applies an ordered
// list of increasingly aggressive repair passes until one yields a payload
// that both parses and satisfies the target schema.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// previewLimit bounds the diagnostic excerpt carried by ExtractionFailedError.
const previewLimit = 200

// Schema is a structural validator over a decoded payload. Implementations
// report field-level violations through the returned error.
type Schema interface {
	Validate() error
}

// Extract parses raw model output into T. It tries each repair pass in order
// and returns the first result that parses as JSON and passes schema
// validation. A parse that succeeds but fails validation counts as a failed
// attempt; the next, more aggressive pass is tried.
//
// Extract performs no I/O and never retries against the model; re-prompting
// is the caller's concern.
func Extract[T Schema](raw string) (T, error) {
	var zero T

	candidate, err := locateCandidate(raw)
	if err != nil {
		return zero, err
	}

	passes := repairPasses()
	var lastErr error
	cleaned := candidate
	for _, p := range passes {
		cleaned = p.run(candidate)

		var value T
		if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
			lastErr = fmt.Errorf("pass %s: parse: %w", p.name, err)
			continue
		}
		if err := value.Validate(); err != nil {
			lastErr = fmt.Errorf("pass %s: schema: %w", p.name, err)
			continue
		}
		return value, nil
	}

	return zero, &ExtractionFailedError{
		Attempts: len(passes),
		LastErr:  lastErr,
		Preview:  preview(cleaned),
	}
}

// locateCandidate returns the greedy span from the first '{' to the last '}'.
func locateCandidate(raw string) (string, error) {
	start := strings.Index(raw, "{")
	if start < 0 {
		return "", &NoJSONFoundError{Length: len(raw)}
	}
	end := strings.LastIndex(raw, "}")
	if end < start {
		return "", &NoJSONFoundError{Length: len(raw)}
	}
	return raw[start : end+1], nil
}

func preview(s string) string {
	if len(s) <= previewLimit {
		return s
	}
	// Back off to a rune boundary; model output is not ASCII-only.
	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
