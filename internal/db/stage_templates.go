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
// Stage Template Methods
// -----------------------------------------------------------------------------

const templateColumns = `id, "order", name, pipeline_id, created_at, updated_at, deleted_at`

type templateRepo struct {
	q querier
}

// ListTemplates returns the live templates of a pipeline ascending by order
func (r *templateRepo) ListTemplates(ctx context.Context, pipelineID uuid.UUID) ([]pipeline.StageTemplate, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+templateColumns+`
		 FROM stage_templates
		 WHERE pipeline_id = $1 AND deleted_at IS NULL
		 ORDER BY "order" ASC`,
		pipelineID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage templates: %w", err)
	}
	defer rows.Close()

	var templates []pipeline.StageTemplate
	for rows.Next() {
		var t pipeline.StageTemplate
		if err := rows.Scan(&t.ID, &t.Order, &t.Name, &t.PipelineID, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stage templates: %w", err)
	}
	return templates, nil
}

// FirstTemplate returns the live template with the lowest order
func (r *templateRepo) FirstTemplate(ctx context.Context, pipelineID uuid.UUID) (*pipeline.StageTemplate, error) {
	return r.getOne(ctx,
		`SELECT `+templateColumns+`
		 FROM stage_templates
		 WHERE pipeline_id = $1 AND deleted_at IS NULL
		 ORDER BY "order" ASC
		 LIMIT 1`,
		pipelineID)
}

// GetTemplate retrieves a live stage template by ID
func (r *templateRepo) GetTemplate(ctx context.Context, id uuid.UUID) (*pipeline.StageTemplate, error) {
	return r.getOne(ctx,
		`SELECT `+templateColumns+`
		 FROM stage_templates
		 WHERE id = $1 AND deleted_at IS NULL`,
		id)
}

func (r *templateRepo) getOne(ctx context.Context, sql string, arg uuid.UUID) (*pipeline.StageTemplate, error) {
	var t pipeline.StageTemplate
	err := r.q.QueryRow(ctx, sql, arg).
		Scan(&t.ID, &t.Order, &t.Name, &t.PipelineID, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get stage template: %w", err)
	}
	return &t, nil
}

// InsertTemplate creates a stage template row
func (r *templateRepo) InsertTemplate(ctx context.Context, t *pipeline.StageTemplate) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO stage_templates (id, pipeline_id, "order", name)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		t.ID, t.PipelineID, t.Order, t.Name,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert stage template: %w", err)
	}
	return nil
}

// UpdateTemplate updates order and name of a stage template
func (r *templateRepo) UpdateTemplate(ctx context.Context, t *pipeline.StageTemplate) error {
	err := r.q.QueryRow(ctx,
		`UPDATE stage_templates
		 SET "order" = $2, name = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		t.ID, t.Order, t.Name,
	).Scan(&t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update stage template: %w", err)
	}
	return nil
}

// DeleteTemplates removes the given stage templates
func (r *templateRepo) DeleteTemplates(ctx context.Context, ids []uuid.UUID) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM stage_templates WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stage templates: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteTemplatesByPipeline removes every template of a pipeline, live or not
func (r *templateRepo) DeleteTemplatesByPipeline(ctx context.Context, pipelineID uuid.UUID) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM stage_templates WHERE pipeline_id = $1`, pipelineID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stage templates: %w", err)
	}
	return tag.RowsAffected(), nil
}
