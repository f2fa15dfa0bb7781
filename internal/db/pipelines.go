package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/hiring-pipeline/internal/pipeline"
)

// -----------------------------------------------------------------------------
// Pipeline Definition Methods
// -----------------------------------------------------------------------------

type pipelineRepo struct {
	q querier
}

// GetPipeline retrieves a live pipeline definition by ID
func (r *pipelineRepo) GetPipeline(ctx context.Context, id uuid.UUID) (*pipeline.PipelineDefinition, error) {
	var p pipeline.PipelineDefinition
	var metadataJSON []byte

	err := r.q.QueryRow(ctx,
		`SELECT id, name, metadata, created_at, updated_at, deleted_at
		 FROM pipeline_definitions
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	).Scan(&p.ID, &p.Name, &metadataJSON, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pipeline: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &p.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode pipeline metadata: %w", err)
		}
	}
	return &p, nil
}

// InsertPipeline creates a pipeline definition row
func (r *pipelineRepo) InsertPipeline(ctx context.Context, p *pipeline.PipelineDefinition) error {
	metadataJSON, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}

	err = r.q.QueryRow(ctx,
		`INSERT INTO pipeline_definitions (id, name, metadata)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		p.ID, p.Name, metadataJSON,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert pipeline: %w", err)
	}
	return nil
}

// UpdatePipeline updates name and metadata of a pipeline definition
func (r *pipelineRepo) UpdatePipeline(ctx context.Context, p *pipeline.PipelineDefinition) error {
	metadataJSON, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}

	err = r.q.QueryRow(ctx,
		`UPDATE pipeline_definitions
		 SET name = $2, metadata = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		p.ID, p.Name, metadataJSON,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update pipeline: %w", err)
	}
	return nil
}

// DeletePipeline removes a pipeline definition row
func (r *pipelineRepo) DeletePipeline(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM pipeline_definitions WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pipeline: %w", err)
	}
	return tag.RowsAffected(), nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pipeline metadata: %w", err)
	}
	return b, nil
}
