package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"biblestudy/internal/domain"
)

// GenerationRequestRepositoryPG implements domain.GenerationRequestRepository.
type GenerationRequestRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewGenerationRequestRepository creates a request repository backed by PostgreSQL.
func NewGenerationRequestRepository(pool *pgxpool.Pool) *GenerationRequestRepositoryPG {
	return &GenerationRequestRepositoryPG{pool: pool}
}

// Create inserts a new generation request.
func (r *GenerationRequestRepositoryPG) Create(ctx context.Context, req *domain.GenerationRequest) error {
	query := `
INSERT INTO generation_requests (id, topic, duration_days, study_style, difficulty, audience, special_requirements, translation, status, progress_percentage)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err := r.pool.Exec(ctx, query,
		req.ID,
		req.Parameters.Topic,
		req.Parameters.DurationDays,
		req.Parameters.Style,
		req.Parameters.Difficulty,
		req.Parameters.Audience,
		req.Parameters.SpecialRequirements,
		req.Parameters.Translation,
		req.Status,
		req.ProgressPercentage,
	)
	return err
}

// GetByID fetches a request by its identifier.
func (r *GenerationRequestRepositoryPG) GetByID(ctx context.Context, id string) (*domain.GenerationRequest, error) {
	query := `
SELECT id, topic, duration_days, study_style, difficulty, audience, special_requirements, translation, status, progress_percentage, error_message, created_at, updated_at, completed_at
FROM generation_requests
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var req domain.GenerationRequest
	if err := row.Scan(
		&req.ID,
		&req.Parameters.Topic,
		&req.Parameters.DurationDays,
		&req.Parameters.Style,
		&req.Parameters.Difficulty,
		&req.Parameters.Audience,
		&req.Parameters.SpecialRequirements,
		&req.Parameters.Translation,
		&req.Status,
		&req.ProgressPercentage,
		&req.ErrorMessage,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// UpdateStatus writes status, derived progress and the optional error message
// together. The completion date is stamped only once.
func (r *GenerationRequestRepositoryPG) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus, progress int, errMsg *string, completedAt *time.Time) error {
	query := `
UPDATE generation_requests
SET status = $2,
    progress_percentage = $3,
    updated_at = NOW(),
    error_message = COALESCE($4, error_message),
    completed_at = COALESCE(completed_at, $5)
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, id, status, progress, errMsg, completedAt)
	return err
}
