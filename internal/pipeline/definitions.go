package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ValidateTemplates checks a submitted template list before anything is
// written: orders must be unique and no template id may appear twice.
func ValidateTemplates(templates []StageTemplate) error {
	orders := make(map[int]string, len(templates))
	ids := make(map[uuid.UUID]struct{}, len(templates))

	for i, t := range templates {
		if prev, ok := orders[t.Order]; ok {
			return &ConstraintError{
				Field:   fmt.Sprintf("templates[%d].order", i),
				Message: fmt.Sprintf("order %d is used by both %q and %q", t.Order, prev, t.Name),
			}
		}
		orders[t.Order] = t.Name

		if t.ID == uuid.Nil {
			continue
		}
		if _, ok := ids[t.ID]; ok {
			return &ConstraintError{
				Field:   fmt.Sprintf("templates[%d].id", i),
				Message: fmt.Sprintf("template %s is listed more than once", t.ID),
			}
		}
		ids[t.ID] = struct{}{}
	}
	return nil
}

// UpsertPipelineTx creates def when def.ID is zero, otherwise updates the
// existing definition and reconciles its templates against templates:
// missing ones are deleted, known ones updated in place and new ones created.
// A missing template that any candidate has reached is not deleted: the
// whole upsert fails with a ConstraintError on "templates" and nothing is
// written.
func UpsertPipelineTx(ctx context.Context, tx Tx, def PipelineDefinition, templates []StageTemplate) (*PipelineDefinition, error) {
	if err := ValidateTemplates(templates); err != nil {
		return nil, err
	}

	if def.ID == uuid.Nil {
		return createPipeline(ctx, tx, def, templates)
	}

	existing, err := tx.Pipelines().GetPipeline(ctx, def.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	if existing == nil {
		return nil, notFound("pipeline", def.ID)
	}
	return updatePipeline(ctx, tx, existing, def, templates)
}

func createPipeline(ctx context.Context, tx Tx, def PipelineDefinition, templates []StageTemplate) (*PipelineDefinition, error) {
	p := &PipelineDefinition{
		ID:       uuid.New(),
		Name:     def.Name,
		Metadata: def.Metadata,
	}
	if err := tx.Pipelines().InsertPipeline(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to insert pipeline: %w", err)
	}

	for _, t := range templates {
		if err := insertTemplate(ctx, tx, p.ID, t); err != nil {
			return nil, err
		}
	}

	return attachTemplates(ctx, tx, p)
}

func updatePipeline(
	ctx context.Context,
	tx Tx,
	existing *PipelineDefinition,
	def PipelineDefinition,
	templates []StageTemplate,
) (*PipelineDefinition, error) {
	existing.Name = def.Name
	existing.Metadata = def.Metadata
	if err := tx.Pipelines().UpdatePipeline(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update pipeline: %w", err)
	}

	current, err := tx.Templates().ListTemplates(ctx, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage templates: %w", err)
	}

	submitted := make(map[uuid.UUID]struct{}, len(templates))
	for _, t := range templates {
		if t.ID != uuid.Nil {
			submitted[t.ID] = struct{}{}
		}
	}

	currentByID := make(map[uuid.UUID]StageTemplate, len(current))
	var removed []uuid.UUID
	for _, t := range current {
		currentByID[t.ID] = t
		if _, ok := submitted[t.ID]; !ok {
			removed = append(removed, t.ID)
		}
	}

	// Removals go first so their orders are free for the updates below.
	if len(removed) > 0 {
		inUse, err := tx.StageInstances().CountInstancesByTemplates(ctx, removed)
		if err != nil {
			return nil, fmt.Errorf("failed to check stage template usage: %w", err)
		}
		if inUse > 0 {
			return nil, &ConstraintError{
				Field:   "templates",
				Message: fmt.Sprintf("cannot remove stage templates reached by candidates (%d stage instances)", inUse),
			}
		}
		if _, err := tx.Templates().DeleteTemplates(ctx, removed); err != nil {
			return nil, fmt.Errorf("failed to delete stage templates: %w", err)
		}
	}

	for _, t := range templates {
		if t.ID == uuid.Nil {
			if err := insertTemplate(ctx, tx, existing.ID, t); err != nil {
				return nil, err
			}
			continue
		}

		if cur, ok := currentByID[t.ID]; ok {
			cur.Order = t.Order
			cur.Name = t.Name
			if err := tx.Templates().UpdateTemplate(ctx, &cur); err != nil {
				return nil, fmt.Errorf("failed to update stage template %s: %w", t.ID, err)
			}
			continue
		}

		if err := insertTemplate(ctx, tx, existing.ID, t); err != nil {
			return nil, err
		}
	}

	return attachTemplates(ctx, tx, existing)
}

// insertTemplate creates t under pipelineID. A caller-chosen id is kept
// unless it already belongs to another pipeline.
func insertTemplate(ctx context.Context, tx Tx, pipelineID uuid.UUID, t StageTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	} else {
		other, err := tx.Templates().GetTemplate(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("failed to load stage template %s: %w", t.ID, err)
		}
		if other != nil {
			return &CrossPipelineError{
				TemplateID:       t.ID,
				TemplatePipeline: other.PipelineID,
				ExpectedPipeline: pipelineID,
			}
		}
	}

	t.PipelineID = pipelineID
	if err := tx.Templates().InsertTemplate(ctx, &t); err != nil {
		return fmt.Errorf("failed to insert stage template %q: %w", t.Name, err)
	}
	return nil
}

func attachTemplates(ctx context.Context, tx Tx, p *PipelineDefinition) (*PipelineDefinition, error) {
	templates, err := tx.Templates().ListTemplates(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage templates: %w", err)
	}
	SortTemplates(templates)
	p.Templates = templates
	return p, nil
}

// GetPipelineTx loads a live pipeline definition with its templates
func GetPipelineTx(ctx context.Context, tx Tx, id uuid.UUID) (*PipelineDefinition, error) {
	p, err := tx.Pipelines().GetPipeline(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	if p == nil {
		return nil, notFound("pipeline", id)
	}
	return attachTemplates(ctx, tx, p)
}
