package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"biblestudy/internal/domain"
)

// VerseValidationRepositoryPG implements domain.VerseValidationRepository.
type VerseValidationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewVerseValidationRepository creates a verse cache repository backed by PostgreSQL.
func NewVerseValidationRepository(pool *pgxpool.Pool) *VerseValidationRepositoryPG {
	return &VerseValidationRepositoryPG{pool: pool}
}

// GetByNormalized fetches a cached validation outcome by its normalized key.
func (r *VerseValidationRepositoryPG) GetByNormalized(ctx context.Context, normalized string) (*domain.VerseValidation, error) {
	query := `
SELECT reference, normalized_reference, valid, verse_text, translation, checked_at, expires_at
FROM verse_validation_cache
WHERE normalized_reference = $1;
`
	row := r.pool.QueryRow(ctx, query, normalized)
	var entry domain.VerseValidation
	if err := row.Scan(
		&entry.Reference,
		&entry.NormalizedReference,
		&entry.Valid,
		&entry.Text,
		&entry.Translation,
		&entry.CheckedAt,
		&entry.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Upsert writes a validation outcome. Last write wins; concurrent writers for
// the same normalized reference produce the same result.
func (r *VerseValidationRepositoryPG) Upsert(ctx context.Context, entry *domain.VerseValidation) error {
	query := `
INSERT INTO verse_validation_cache (reference, normalized_reference, valid, verse_text, translation, checked_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (reference) DO UPDATE
SET normalized_reference = EXCLUDED.normalized_reference,
    valid = EXCLUDED.valid,
    verse_text = EXCLUDED.verse_text,
    translation = EXCLUDED.translation,
    checked_at = EXCLUDED.checked_at,
    expires_at = EXCLUDED.expires_at;
`
	_, err := r.pool.Exec(ctx, query,
		entry.Reference,
		entry.NormalizedReference,
		entry.Valid,
		entry.Text,
		entry.Translation,
		entry.CheckedAt,
		entry.ExpiresAt,
	)
	return err
}
