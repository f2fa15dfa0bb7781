package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type personaRepo struct {
	q querier
}

// PersonaExists reports whether a persona row exists
func (r *personaRepo) PersonaExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM personas WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up persona: %w", err)
	}
	return exists, nil
}
