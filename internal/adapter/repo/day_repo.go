package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"biblestudy/internal/domain"
)

// GeneratedDayRepositoryPG implements domain.GeneratedDayRepository.
type GeneratedDayRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewGeneratedDayRepository creates a day-content repository backed by PostgreSQL.
func NewGeneratedDayRepository(pool *pgxpool.Pool) *GeneratedDayRepositoryPG {
	return &GeneratedDayRepositoryPG{pool: pool}
}

// SaveAll upserts the generated days for a request in one batch, unique on
// (request_id, day_number).
func (r *GeneratedDayRepositoryPG) SaveAll(ctx context.Context, days []domain.GeneratedDay) error {
	if len(days) == 0 {
		return nil
	}
	query := `
INSERT INTO generated_days (request_id, day_number, week_number, title, teaching_content, passages, questions, prayer_focus, generation_status, validation_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (request_id, day_number) DO UPDATE
SET week_number = EXCLUDED.week_number,
    title = EXCLUDED.title,
    teaching_content = EXCLUDED.teaching_content,
    passages = EXCLUDED.passages,
    questions = EXCLUDED.questions,
    prayer_focus = EXCLUDED.prayer_focus,
    generation_status = EXCLUDED.generation_status,
    validation_status = EXCLUDED.validation_status,
    updated_at = NOW();
`
	batch := &pgx.Batch{}
	for _, day := range days {
		batch.Queue(query,
			day.RequestID,
			day.DayNumber,
			day.WeekNumber,
			day.Title,
			day.TeachingContent,
			day.Passages,
			day.Questions,
			day.PrayerFocus,
			day.GenerationStatus,
			day.ValidationStatus,
		)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range days {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListByRequest returns the days of a request ordered by day number.
func (r *GeneratedDayRepositoryPG) ListByRequest(ctx context.Context, requestID string) ([]domain.GeneratedDay, error) {
	query := `
SELECT request_id, day_number, week_number, title, teaching_content, passages, questions, prayer_focus, generation_status, validation_status, created_at, updated_at
FROM generated_days
WHERE request_id = $1
ORDER BY day_number ASC;
`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []domain.GeneratedDay
	for rows.Next() {
		var day domain.GeneratedDay
		if err := rows.Scan(
			&day.RequestID,
			&day.DayNumber,
			&day.WeekNumber,
			&day.Title,
			&day.TeachingContent,
			&day.Passages,
			&day.Questions,
			&day.PrayerFocus,
			&day.GenerationStatus,
			&day.ValidationStatus,
			&day.CreatedAt,
			&day.UpdatedAt,
		); err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

// UpdateValidation sets the theological review outcome for one day.
func (r *GeneratedDayRepositoryPG) UpdateValidation(ctx context.Context, requestID string, dayNumber int, status domain.DayValidationStatus) error {
	query := `
UPDATE generated_days
SET validation_status = $3,
    updated_at = NOW()
WHERE request_id = $1 AND day_number = $2;
`
	_, err := r.pool.Exec(ctx, query, requestID, dayNumber, status)
	return err
}
