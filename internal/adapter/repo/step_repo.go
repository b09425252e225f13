package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"biblestudy/internal/domain"
)

// WorkflowStepRepositoryPG implements domain.WorkflowStepRepository.
type WorkflowStepRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewWorkflowStepRepository creates a step repository backed by PostgreSQL.
func NewWorkflowStepRepository(pool *pgxpool.Pool) *WorkflowStepRepositoryPG {
	return &WorkflowStepRepositoryPG{pool: pool}
}

const stepColumns = `request_id, step_name, step_status, step_data, error_details, retry_count, started_at, completed_at, created_at, updated_at`

// Get fetches the record for one (request, step name) pair.
func (r *WorkflowStepRepositoryPG) Get(ctx context.Context, requestID string, name domain.StepName) (*domain.WorkflowStep, error) {
	query := `
SELECT ` + stepColumns + `
FROM workflow_steps
WHERE request_id = $1 AND step_name = $2;
`
	row := r.pool.QueryRow(ctx, query, requestID, name)
	step, err := scanStep(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return step, nil
}

// ListByRequest returns all step records for a request in pipeline order.
func (r *WorkflowStepRepositoryPG) ListByRequest(ctx context.Context, requestID string) ([]domain.WorkflowStep, error) {
	query := `
SELECT ` + stepColumns + `
FROM workflow_steps
WHERE request_id = $1
ORDER BY created_at ASC;
`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.WorkflowStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}

// Upsert writes a step record, unique on (request_id, step_name).
func (r *WorkflowStepRepositoryPG) Upsert(ctx context.Context, step *domain.WorkflowStep) error {
	query := `
INSERT INTO workflow_steps (request_id, step_name, step_status, step_data, error_details, retry_count, started_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (request_id, step_name) DO UPDATE
SET step_status = EXCLUDED.step_status,
    step_data = EXCLUDED.step_data,
    error_details = EXCLUDED.error_details,
    retry_count = EXCLUDED.retry_count,
    started_at = EXCLUDED.started_at,
    completed_at = EXCLUDED.completed_at,
    updated_at = NOW();
`
	_, err := r.pool.Exec(ctx, query,
		step.RequestID,
		step.Name,
		step.Status,
		nullableBytes(step.Data),
		nullableBytes(step.ErrorDetails),
		step.RetryCount,
		step.StartedAt,
		step.CompletedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStep(row rowScanner) (*domain.WorkflowStep, error) {
	var step domain.WorkflowStep
	if err := row.Scan(
		&step.RequestID,
		&step.Name,
		&step.Status,
		&step.Data,
		&step.ErrorDetails,
		&step.RetryCount,
		&step.StartedAt,
		&step.CompletedAt,
		&step.CreatedAt,
		&step.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &step, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
