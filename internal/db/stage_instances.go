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
// Stage Instance Methods
// -----------------------------------------------------------------------------

const instanceColumns = `id, status, notes, "date", rating, template_id, pipeline_id, candidate_id, created_at, updated_at`

type stageInstanceRepo struct {
	q querier
}

func scanInstance(row pgx.Row) (*pipeline.StageInstance, error) {
	var si pipeline.StageInstance
	var status string
	if err := row.Scan(&si.ID, &status, &si.Notes, &si.Date, &si.Rating,
		&si.TemplateID, &si.PipelineID, &si.CandidateID, &si.CreatedAt, &si.UpdatedAt); err != nil {
		return nil, err
	}
	si.Status = pipeline.StageStatus(status)
	return &si, nil
}

func (r *stageInstanceRepo) getOne(ctx context.Context, sql string, args ...any) (*pipeline.StageInstance, error) {
	si, err := scanInstance(r.q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get stage instance: %w", err)
	}
	return si, nil
}

// GetInstance retrieves a stage instance by ID
func (r *stageInstanceRepo) GetInstance(ctx context.Context, id uuid.UUID) (*pipeline.StageInstance, error) {
	return r.getOne(ctx, `SELECT `+instanceColumns+` FROM stage_instances WHERE id = $1`, id)
}

// FindInstance retrieves the instance of a template for a candidate
func (r *stageInstanceRepo) FindInstance(ctx context.Context, candidateID, templateID uuid.UUID) (*pipeline.StageInstance, error) {
	return r.getOne(ctx,
		`SELECT `+instanceColumns+` FROM stage_instances WHERE candidate_id = $1 AND template_id = $2`,
		candidateID, templateID)
}

// ListInstances returns every instance of a candidate, oldest first
func (r *stageInstanceRepo) ListInstances(ctx context.Context, candidateID uuid.UUID) ([]pipeline.StageInstance, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+instanceColumns+`
		 FROM stage_instances
		 WHERE candidate_id = $1
		 ORDER BY created_at ASC`,
		candidateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage instances: %w", err)
	}
	defer rows.Close()

	var out []pipeline.StageInstance
	for rows.Next() {
		si, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage instance: %w", err)
		}
		out = append(out, *si)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stage instances: %w", err)
	}
	return out, nil
}

// CountInstancesByTemplates counts instances of any of the given templates
func (r *stageInstanceRepo) CountInstancesByTemplates(ctx context.Context, templateIDs []uuid.UUID) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM stage_instances WHERE template_id = ANY($1)`, templateIDs,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count stage instances: %w", err)
	}
	return n, nil
}

// InsertInstance creates a stage instance row
func (r *stageInstanceRepo) InsertInstance(ctx context.Context, si *pipeline.StageInstance) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO stage_instances (id, status, notes, "date", rating, template_id, pipeline_id, candidate_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		si.ID, string(si.Status), si.Notes, si.Date, si.Rating, si.TemplateID, si.PipelineID, si.CandidateID,
	).Scan(&si.CreatedAt, &si.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert stage instance: %w", err)
	}
	return nil
}

// UpdateInstance writes the editable fields of a stage instance
func (r *stageInstanceRepo) UpdateInstance(ctx context.Context, si *pipeline.StageInstance) error {
	err := r.q.QueryRow(ctx,
		`UPDATE stage_instances
		 SET status = $2, notes = $3, "date" = $4, rating = $5, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		si.ID, string(si.Status), si.Notes, si.Date, si.Rating,
	).Scan(&si.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update stage instance: %w", err)
	}
	return nil
}

// DeleteInstancesByCandidates removes every instance of the given candidates
func (r *stageInstanceRepo) DeleteInstancesByCandidates(ctx context.Context, candidateIDs []uuid.UUID) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM stage_instances WHERE candidate_id = ANY($1)`, candidateIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stage instances: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteInstancesByPipeline removes every instance recorded against a pipeline
func (r *stageInstanceRepo) DeleteInstancesByPipeline(ctx context.Context, pipelineID uuid.UUID) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM stage_instances WHERE pipeline_id = $1`, pipelineID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stage instances: %w", err)
	}
	return tag.RowsAffected(), nil
}
