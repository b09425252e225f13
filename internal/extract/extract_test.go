package extract

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type planPayload struct {
	Title string `json:"title"`
	Days  []int  `json:"days"`
}

func (p planPayload) Validate() error {
	if p.Title == "" {
		return errors.New("title is required")
	}
	return nil
}

type anyPayload map[string]any

func (p anyPayload) Validate() error {
	if len(p) == 0 {
		return errors.New("empty object")
	}
	return nil
}

type rejectAll struct{}

func (rejectAll) Validate() error { return errors.New("always invalid") }

func TestExtractCleanJSON(t *testing.T) {
	got, err := Extract[planPayload](`{"title": "Grace", "days": [1, 2, 3]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Grace" || len(got.Days) != 3 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestExtractJSONWrappedInProse(t *testing.T) {
	raw := "Sure! Here is the study plan you asked for:\n\n" +
		`{"title": "Covenant", "days": [1]}` +
		"\n\nLet me know if you need anything else."
	got, err := Extract[planPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Covenant" {
		t.Fatalf("unexpected title %q", got.Title)
	}
}

func TestExtractRepairsTrailingCommas(t *testing.T) {
	raw := `{"title": "Psalms", "days": [1, 2, 3,],}`
	got, err := Extract[planPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Days) != 3 {
		t.Fatalf("expected 3 days, got %+v", got.Days)
	}
}

func TestExtractStripsComments(t *testing.T) {
	raw := `{
		// the requested topic
		"title": "Exodus", /* seven day arc */
		"days": [1, 2]
	}`
	got, err := Extract[planPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Exodus" || len(got.Days) != 2 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestExtractPreservesURLsWhileStrippingComments(t *testing.T) {
	raw := `{"title": "https://example.com/study", "days": [1]}`
	got, err := Extract[planPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "https://example.com/study" {
		t.Fatalf("url mangled: %q", got.Title)
	}
}

func TestExtractEllipsisWithProse(t *testing.T) {
	raw := `{"a": 1, ... more items, "b": 2}`
	got, err := Extract[anyPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["a"] != float64(1) || got["b"] != float64(2) {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestExtractBareEllipsisBetweenElements(t *testing.T) {
	raw := `{"title": "Acts", "days": [1, ..., 9]}`
	got, err := Extract[planPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Days) != 2 || got.Days[0] != 1 || got.Days[1] != 9 {
		t.Fatalf("unexpected days: %+v", got.Days)
	}
}

func TestExtractLeadingEllipsis(t *testing.T) {
	raw := `{"title": "Ruth", "days": [..., 4]}`
	got, err := Extract[planPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Days) != 1 || got.Days[0] != 4 {
		t.Fatalf("unexpected days: %+v", got.Days)
	}
}

func TestExtractTruncatedObjectRepaired(t *testing.T) {
	// Missing the closing brace entirely; only the final repair pass can
	// recover this.
	raw := `{"title": "Kings", "days": [1, 2], "extra": {"a": 1}`
	got, err := Extract[planPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Kings" {
		t.Fatalf("unexpected title %q", got.Title)
	}
}

func TestExtractNoJSONFound(t *testing.T) {
	_, err := Extract[planPayload]("I am sorry, I cannot help with that request.")
	var notFound *NoJSONFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NoJSONFoundError, got %v", err)
	}
	if notFound.Length == 0 {
		t.Fatalf("expected length to be recorded")
	}
}

func TestExtractSchemaInvalidExhaustsPasses(t *testing.T) {
	_, err := Extract[rejectAll](`{"anything": true}`)
	var failed *ExtractionFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected ExtractionFailedError, got %v", err)
	}
	if failed.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", failed.Attempts)
	}
	if failed.LastErr == nil || !strings.Contains(failed.LastErr.Error(), "schema") {
		t.Fatalf("expected schema error, got %v", failed.LastErr)
	}
}

func TestExtractPreviewBounded(t *testing.T) {
	raw := `{"filler": "` + strings.Repeat("x", 1000) + `"}`
	_, err := Extract[rejectAll](raw)
	var failed *ExtractionFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected ExtractionFailedError, got %v", err)
	}
	if len(failed.Preview) > previewLimit+len("…") {
		t.Fatalf("preview too long: %d bytes", len(failed.Preview))
	}
	if !strings.HasSuffix(failed.Preview, "…") {
		t.Fatalf("expected truncation marker, got %q", failed.Preview)
	}
}

func TestExtractPreviewKeepsRuneBoundary(t *testing.T) {
	// Multi-byte runes positioned so a naive byte cut would land inside one.
	raw := `{"t": "` + strings.Repeat("ó", 120) + `"}`
	_, err := Extract[rejectAll](raw)
	var failed *ExtractionFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected ExtractionFailedError, got %v", err)
	}
	if !utf8.ValidString(failed.Preview) {
		t.Fatalf("preview splits a rune: %q", failed.Preview)
	}
	if !strings.HasSuffix(failed.Preview, "…") {
		t.Fatalf("expected truncation marker, got %q", failed.Preview)
	}
}
