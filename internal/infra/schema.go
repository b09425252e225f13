package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL is embedded in the binary so a fresh database bootstraps without
// external migration tooling.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS generation_requests (
    id                   TEXT PRIMARY KEY,
    topic                TEXT NOT NULL,
    duration_days        INT NOT NULL DEFAULT 7,
    study_style          TEXT NOT NULL DEFAULT 'devotional',
    difficulty           TEXT NOT NULL DEFAULT 'beginner',
    audience             TEXT NOT NULL DEFAULT '',
    special_requirements TEXT NOT NULL DEFAULT '',
    translation          TEXT NOT NULL DEFAULT 'web',
    status               TEXT NOT NULL DEFAULT 'pending',
    progress_percentage  INT NOT NULL DEFAULT 0,
    error_message        TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_generation_requests_status
    ON generation_requests (status, created_at);

CREATE TABLE IF NOT EXISTS workflow_steps (
    request_id    TEXT NOT NULL REFERENCES generation_requests (id) ON DELETE CASCADE,
    step_name     TEXT NOT NULL,
    step_status   TEXT NOT NULL DEFAULT 'pending',
    step_data     JSONB,
    error_details JSONB,
    retry_count   INT NOT NULL DEFAULT 0,
    started_at    TIMESTAMPTZ,
    completed_at  TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (request_id, step_name)
);

CREATE TABLE IF NOT EXISTS generated_days (
    request_id        TEXT NOT NULL REFERENCES generation_requests (id) ON DELETE CASCADE,
    day_number        INT NOT NULL,
    week_number       INT,
    title             TEXT NOT NULL DEFAULT '',
    teaching_content  TEXT NOT NULL DEFAULT '',
    passages          TEXT[] NOT NULL DEFAULT '{}',
    questions         TEXT[] NOT NULL DEFAULT '{}',
    prayer_focus      TEXT NOT NULL DEFAULT '',
    generation_status TEXT NOT NULL DEFAULT 'pending',
    validation_status TEXT NOT NULL DEFAULT 'pending',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (request_id, day_number)
);

CREATE TABLE IF NOT EXISTS verse_validation_cache (
    reference            TEXT PRIMARY KEY,
    normalized_reference TEXT NOT NULL,
    valid                BOOLEAN NOT NULL DEFAULT FALSE,
    verse_text           TEXT NOT NULL DEFAULT '',
    translation          TEXT NOT NULL DEFAULT 'web',
    checked_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verse_cache_normalized
    ON verse_validation_cache (normalized_reference);
`

// EnsureSchema creates the tables when they do not exist yet. Idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
