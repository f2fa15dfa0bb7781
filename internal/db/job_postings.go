package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/hiring-pipeline/internal/pipeline"
)

// -----------------------------------------------------------------------------
// Job Posting Methods
// -----------------------------------------------------------------------------

type jobRepo struct {
	q querier
}

// GetJob retrieves a job posting by ID
func (r *jobRepo) GetJob(ctx context.Context, id uuid.UUID) (*pipeline.JobPosting, error) {
	var j pipeline.JobPosting
	err := r.q.QueryRow(ctx,
		`SELECT id, title, status, pipeline_id, created_at, updated_at
		 FROM job_postings WHERE id = $1`,
		id,
	).Scan(&j.ID, &j.Title, &j.Status, &j.PipelineID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job posting: %w", err)
	}
	return &j, nil
}

// InsertJob creates a job posting row
func (r *jobRepo) InsertJob(ctx context.Context, j *pipeline.JobPosting) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO job_postings (id, title, status, pipeline_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		j.ID, j.Title, j.Status, j.PipelineID,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job posting: %w", err)
	}
	return nil
}

// ListJobIDsByPipeline returns the ids of every job running a pipeline
func (r *jobRepo) ListJobIDsByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM job_postings WHERE pipeline_id = $1`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job postings: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan job posting ids: %w", err)
	}
	return ids, nil
}

// DeleteJobs removes the given job postings
func (r *jobRepo) DeleteJobs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM job_postings WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete job postings: %w", err)
	}
	return tag.RowsAffected(), nil
}
