package infra

import "testing"

func TestExtractMarker(t *testing.T) {
	query := `--sql 079b10c8-2ff2-4b84-aeb4-f003a03305f3
select 1;
`
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if marker != "079b10c8-2ff2-4b84-aeb4-f003a03305f3" {
		t.Fatalf("marker = %q", marker)
	}
	if trimmed != "select 1;" {
		t.Fatalf("trimmed = %q", trimmed)
	}
}

func TestExtractMarkerRejectsUnmarkedQuery(t *testing.T) {
	if _, _, err := extractMarker("select 1;"); err == nil {
		t.Fatalf("expected error for missing marker")
	}
	if _, _, err := extractMarker("--sql not-a-uuid\nselect 1;"); err == nil {
		t.Fatalf("expected error for invalid marker")
	}
}
