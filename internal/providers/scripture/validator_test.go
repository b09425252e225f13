package scripture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"biblestudy/internal/domain"
)

type fakeVerseCache struct {
	entries   map[string]*domain.VerseValidation
	upsertErr error
}

func newFakeVerseCache() *fakeVerseCache {
	return &fakeVerseCache{entries: make(map[string]*domain.VerseValidation)}
}

func (f *fakeVerseCache) GetByNormalized(_ context.Context, normalized string) (*domain.VerseValidation, error) {
	entry, ok := f.entries[normalized]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (f *fakeVerseCache) Upsert(_ context.Context, entry *domain.VerseValidation) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	clone := *entry
	f.entries[entry.NormalizedReference] = &clone
	return nil
}

type fakeLookupClient struct {
	calls  int
	result *LookupResult
	err    error
}

func (f *fakeLookupClient) Lookup(_ context.Context, _, _ string) (*LookupResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestValidator(cache *fakeVerseCache, client *fakeLookupClient) *Validator {
	return NewValidator(cache, client, time.Hour, zerolog.Nop())
}

func TestValidateCacheMissLooksUpAndCaches(t *testing.T) {
	cache := newFakeVerseCache()
	client := &fakeLookupClient{result: &LookupResult{Valid: true, Text: "In the beginning...", Translation: "web"}}
	v := newTestValidator(cache, client)

	entry, err := v.Validate(context.Background(), "gen. 1:1", "web")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entry.Valid || entry.Text == "" {
		t.Fatalf("expected valid entry with text, got %+v", entry)
	}
	if entry.NormalizedReference != "Genesis 1:1" {
		t.Fatalf("expected normalized key, got %q", entry.NormalizedReference)
	}
	if client.calls != 1 {
		t.Fatalf("expected one lookup, got %d", client.calls)
	}
	if _, ok := cache.entries["Genesis 1:1"]; !ok {
		t.Fatalf("expected outcome cached under normalized key")
	}
}

func TestValidateFreshCacheHitSkipsLookup(t *testing.T) {
	cache := newFakeVerseCache()
	client := &fakeLookupClient{result: &LookupResult{Valid: true, Text: "text"}}
	v := newTestValidator(cache, client)

	if _, err := v.Validate(context.Background(), "John 3:16", "web"); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if _, err := v.Validate(context.Background(), "jn 3:16", "web"); err != nil {
		t.Fatalf("hit: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected cache hit to suppress lookup, got %d calls", client.calls)
	}
}

func TestValidateExpiredEntryRevalidates(t *testing.T) {
	cache := newFakeVerseCache()
	client := &fakeLookupClient{result: &LookupResult{Valid: true, Text: "text"}}
	v := newTestValidator(cache, client)

	if _, err := v.Validate(context.Background(), "John 3:16", "web"); err != nil {
		t.Fatalf("prime: %v", err)
	}
	// Move the clock past the TTL.
	v.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := v.Validate(context.Background(), "John 3:16", "web"); err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected expired entry to trigger a second lookup, got %d calls", client.calls)
	}
}

func TestValidateNotFoundCachedAsInvalid(t *testing.T) {
	cache := newFakeVerseCache()
	client := &fakeLookupClient{err: domain.ErrVerseNotFound}
	v := newTestValidator(cache, client)

	entry, err := v.Validate(context.Background(), "Hezekiah 3:16", "web")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Valid {
		t.Fatalf("expected invalid entry")
	}
	if _, ok := cache.entries[entry.NormalizedReference]; !ok {
		t.Fatalf("expected invalid outcome to be cached")
	}

	// Second call answers from cache without a lookup.
	if _, err := v.Validate(context.Background(), "Hezekiah 3:16", "web"); err != nil {
		t.Fatalf("cache hit: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected one lookup, got %d", client.calls)
	}
}

func TestValidateAPIFailureNotCached(t *testing.T) {
	cache := newFakeVerseCache()
	client := &fakeLookupClient{err: errors.New("upstream 503")}
	v := newTestValidator(cache, client)

	if _, err := v.Validate(context.Background(), "John 3:16", "web"); err == nil {
		t.Fatalf("expected error")
	}
	if len(cache.entries) != 0 {
		t.Fatalf("API failure must not be cached, got %d entries", len(cache.entries))
	}
}

func TestValidateCacheWriteFailureStillAnswers(t *testing.T) {
	cache := newFakeVerseCache()
	cache.upsertErr = errors.New("db down")
	client := &fakeLookupClient{result: &LookupResult{Valid: true, Text: "text"}}
	v := newTestValidator(cache, client)

	entry, err := v.Validate(context.Background(), "John 3:16", "web")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entry.Valid {
		t.Fatalf("expected valid entry despite cache failure")
	}
}
