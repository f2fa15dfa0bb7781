package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type cvRepo struct {
	q querier
}

// CVExists reports whether a CV document row exists
func (r *cvRepo) CVExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cv_documents WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up cv: %w", err)
	}
	return exists, nil
}

// DeleteCVs removes CV documents and their embedding chunks. Candidates must
// already be detached from them.
func (r *cvRepo) DeleteCVs(ctx context.Context, ids []uuid.UUID) (int64, int64, error) {
	chunks, err := r.q.Exec(ctx, `DELETE FROM cv_chunks WHERE cv_id = ANY($1)`, ids)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete cv chunks: %w", err)
	}

	docs, err := r.q.Exec(ctx, `DELETE FROM cv_documents WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete cv documents: %w", err)
	}
	return docs.RowsAffected(), chunks.RowsAffected(), nil
}
