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
// Candidate Methods
// -----------------------------------------------------------------------------

const candidateColumns = `id, persona_id, job_id, current_stage_id, cv_id, rating, version, created_at, updated_at`

type candidateRepo struct {
	q querier
}

func scanCandidate(row pgx.Row) (*pipeline.Candidate, error) {
	var c pipeline.Candidate
	var rating []byte
	if err := row.Scan(&c.ID, &c.PersonaID, &c.JobID, &c.CurrentStageID, &c.CVID,
		&rating, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if len(rating) > 0 {
		c.Rating = rating
	}
	return &c, nil
}

// GetCandidate retrieves a candidate by ID
func (r *candidateRepo) GetCandidate(ctx context.Context, id uuid.UUID) (*pipeline.Candidate, error) {
	c, err := scanCandidate(r.q.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return c, nil
}

// InsertCandidate creates a candidate row without a current stage
func (r *candidateRepo) InsertCandidate(ctx context.Context, c *pipeline.Candidate) error {
	var rating []byte
	if len(c.Rating) > 0 {
		rating = c.Rating
	}
	err := r.q.QueryRow(ctx,
		`INSERT INTO candidates (id, persona_id, job_id, cv_id, rating)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING version, created_at, updated_at`,
		c.ID, c.PersonaID, c.JobID, c.CVID, rating,
	).Scan(&c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert candidate: %w", err)
	}
	return nil
}

// ListCandidatesByJobs returns every candidate of the given jobs
func (r *candidateRepo) ListCandidatesByJobs(ctx context.Context, jobIDs []uuid.UUID) ([]pipeline.Candidate, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE job_id = ANY($1)`, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}
	return out, nil
}

// FindCandidateByCV returns the candidate holding cvID, or nil
func (r *candidateRepo) FindCandidateByCV(ctx context.Context, cvID uuid.UUID) (*pipeline.Candidate, error) {
	c, err := scanCandidate(r.q.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE cv_id = $1`, cvID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find candidate by cv: %w", err)
	}
	return c, nil
}

// SetCurrentStage moves the current-stage pointer if the row still carries
// expectedVersion
func (r *candidateRepo) SetCurrentStage(ctx context.Context, id uuid.UUID, stageID *uuid.UUID, expectedVersion int64) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE candidates
		 SET current_stage_id = $2, version = version + 1, updated_at = NOW()
		 WHERE id = $1 AND version = $3`,
		id, stageID, expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set current stage: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DetachCandidates nulls the stage and CV references of the given candidates
func (r *candidateRepo) DetachCandidates(ctx context.Context, ids []uuid.UUID) error {
	_, err := r.q.Exec(ctx,
		`UPDATE candidates
		 SET current_stage_id = NULL, cv_id = NULL, version = version + 1, updated_at = NOW()
		 WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("failed to detach candidates: %w", err)
	}
	return nil
}

// DeleteCandidates removes the given candidates
func (r *candidateRepo) DeleteCandidates(ctx context.Context, ids []uuid.UUID) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM candidates WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete candidates: %w", err)
	}
	return tag.RowsAffected(), nil
}
