package scripture

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"biblestudy/internal/domain"
)

// Validator answers "is this a real scripture reference" with a process-wide
// Postgres-backed cache in front of the external lookup source. Cache writes
// are last-write-wins: overlapping normalized references validate to the same
// result, so concurrent writers are safe to race.
type Validator struct {
	cache  domain.VerseValidationRepository
	client Client
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

func NewValidator(cache domain.VerseValidationRepository, client Client, ttl time.Duration, logger zerolog.Logger) *Validator {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Validator{
		cache:  cache,
		client: client,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Validate resolves a reference, consulting the external source only when the
// cache has no fresh entry. A NotFound outcome is a valid cached answer (the
// reference is simply wrong); API failures are returned and never cached.
func (v *Validator) Validate(ctx context.Context, reference, translation string) (*domain.VerseValidation, error) {
	normalized := Normalize(reference)
	now := v.now()

	cached, err := v.cache.GetByNormalized(ctx, normalized)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if cached.Fresh(now) {
		return cached, nil
	}

	entry := &domain.VerseValidation{
		Reference:           reference,
		NormalizedReference: normalized,
		Translation:         translation,
		CheckedAt:           now,
		ExpiresAt:           now.Add(v.ttl),
	}

	result, err := v.client.Lookup(ctx, normalized, translation)
	switch {
	case errors.Is(err, domain.ErrVerseNotFound):
		entry.Valid = false
	case err != nil:
		return nil, err
	default:
		entry.Valid = true
		entry.Text = result.Text
		if result.Translation != "" {
			entry.Translation = result.Translation
		}
	}

	if err := v.cache.Upsert(ctx, entry); err != nil {
		// A stale cache only costs an extra lookup later.
		v.logger.Warn().Err(err).Str("reference", normalized).Msg("scripture: cache upsert failed")
	}
	return entry, nil
}
