package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// AdvanceStageTx moves a candidate to targetTemplateID. The target must
// belong to the pipeline of the candidate's job and sit strictly after the
// current stage. Advancing to the template the candidate is already on
// touches the existing instance and is not an error.
func AdvanceStageTx(ctx context.Context, tx Tx, candidateID, targetTemplateID uuid.UUID) (*Candidate, error) {
	c, err := tx.Candidates().GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate: %w", err)
	}
	if c == nil {
		return nil, notFound("candidate", candidateID)
	}

	job, err := tx.Jobs().GetJob(ctx, c.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, notFound("job", c.JobID)
	}

	target, err := tx.Templates().GetTemplate(ctx, targetTemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target stage template: %w", err)
	}
	if target == nil {
		return nil, notFound("stage template", targetTemplateID)
	}
	if target.PipelineID != job.PipelineID {
		return nil, &CrossPipelineError{
			TemplateID:       target.ID,
			TemplatePipeline: target.PipelineID,
			ExpectedPipeline: job.PipelineID,
		}
	}

	current, currentOrder, err := currentPosition(ctx, tx, c)
	if err != nil {
		return nil, err
	}

	if current != nil && current.TemplateID == target.ID {
		if err := tx.StageInstances().UpdateInstance(ctx, current); err != nil {
			return nil, fmt.Errorf("failed to update stage instance: %w", err)
		}
		c.CurrentStage = current
		return c, nil
	}

	if currentOrder != nil && target.Order <= *currentOrder {
		return nil, &InvalidTransitionError{
			CandidateID:  c.ID,
			CurrentOrder: currentOrder,
			TargetOrder:  target.Order,
		}
	}

	si, err := tx.StageInstances().FindInstance(ctx, c.ID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up stage instance: %w", err)
	}
	if si != nil {
		si.Status = StageStatusPending
		if err := tx.StageInstances().UpdateInstance(ctx, si); err != nil {
			return nil, fmt.Errorf("failed to update stage instance: %w", err)
		}
	} else {
		si = &StageInstance{
			ID:          uuid.New(),
			Status:      StageStatusPending,
			TemplateID:  target.ID,
			PipelineID:  target.PipelineID,
			CandidateID: c.ID,
		}
		if err := tx.StageInstances().InsertInstance(ctx, si); err != nil {
			return nil, fmt.Errorf("failed to insert stage instance: %w", err)
		}
	}

	if err := moveCurrentStage(ctx, tx, c, si); err != nil {
		return nil, err
	}
	return c, nil
}

// currentPosition resolves the candidate's current instance and the order of
// its template. Both are nil when the candidate has no current stage.
func currentPosition(ctx context.Context, tx Tx, c *Candidate) (*StageInstance, *int, error) {
	if c.CurrentStageID == nil {
		return nil, nil, nil
	}

	si, err := tx.StageInstances().GetInstance(ctx, *c.CurrentStageID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load current stage instance: %w", err)
	}
	if si == nil {
		return nil, nil, nil
	}

	t, err := tx.Templates().GetTemplate(ctx, si.TemplateID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load current stage template: %w", err)
	}
	if t == nil {
		return si, nil, nil
	}
	order := t.Order
	return si, &order, nil
}

// UpdateStageInstanceTx applies the non-nil fields of update to one of the
// candidate's stage instances. The current-stage pointer is never touched.
func UpdateStageInstanceTx(
	ctx context.Context,
	tx Tx,
	candidateID, instanceID uuid.UUID,
	update StageInstanceUpdate,
) (*StageInstance, error) {
	if update.Status != nil {
		switch *update.Status {
		case StageStatusPending, StageStatusCompleted, StageStatusCancelled:
		default:
			return nil, &ConstraintError{Field: "status", Message: fmt.Sprintf("unknown stage status %q", *update.Status)}
		}
	}
	if update.Rating != nil && (*update.Rating < 0 || *update.Rating > 5) {
		return nil, &ConstraintError{Field: "rating", Message: "rating must be between 0 and 5"}
	}

	si, err := tx.StageInstances().GetInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage instance: %w", err)
	}
	if si == nil || si.CandidateID != candidateID {
		return nil, notFound("stage instance", instanceID)
	}

	if update.Status != nil {
		si.Status = *update.Status
	}
	if update.Notes != nil {
		si.Notes = update.Notes
	}
	if update.Date != nil {
		si.Date = update.Date
	}
	if update.Rating != nil {
		si.Rating = update.Rating
	}

	if err := tx.StageInstances().UpdateInstance(ctx, si); err != nil {
		return nil, fmt.Errorf("failed to update stage instance: %w", err)
	}
	return si, nil
}

// sortInstances orders instances by template order; instances whose template
// is gone sort last by creation time.
func sortInstances(instances []StageInstance, orders map[uuid.UUID]int) {
	sort.SliceStable(instances, func(i, j int) bool {
		oi, iok := orders[instances[i].TemplateID]
		oj, jok := orders[instances[j].TemplateID]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return instances[i].CreatedAt.Before(instances[j].CreatedAt)
		}
	})
}
