package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateJobTx inserts a job posting. The referenced pipeline must exist;
// a job never exists without one.
func CreateJobTx(ctx context.Context, tx Tx, job JobPosting) (*JobPosting, error) {
	p, err := tx.Pipelines().GetPipeline(ctx, job.PipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	if p == nil {
		return nil, notFound("pipeline", job.PipelineID)
	}

	j := &JobPosting{
		ID:         uuid.New(),
		Title:      job.Title,
		Status:     job.Status,
		PipelineID: p.ID,
	}
	if j.Status == "" {
		j.Status = JobStatusOpen
	}
	if err := tx.Jobs().InsertJob(ctx, j); err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	return j, nil
}

// CreateCandidateTx creates a candidate for jobID and binds them to the first
// stage template of the job's pipeline. A pipeline without stages is a
// ConfigurationError and nothing is written. A CV belongs to one candidate;
// attaching one that is already taken is a ConstraintError.
func CreateCandidateTx(ctx context.Context, tx Tx, jobID, personaID uuid.UUID, cvID *uuid.UUID) (*Candidate, error) {
	job, err := tx.Jobs().GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, notFound("job", jobID)
	}

	first, err := tx.Templates().FirstTemplate(ctx, job.PipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to load first stage template: %w", err)
	}
	if first == nil {
		return nil, &ConfigurationError{PipelineID: job.PipelineID, Message: "pipeline has no stages"}
	}

	exists, err := tx.Personas().PersonaExists(ctx, personaID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve persona: %w", err)
	}
	if !exists {
		return nil, notFound("persona", personaID)
	}

	if cvID != nil {
		if err := checkCVAvailable(ctx, tx, *cvID); err != nil {
			return nil, err
		}
	}

	c := &Candidate{
		ID:        uuid.New(),
		PersonaID: personaID,
		JobID:     job.ID,
		CVID:      cvID,
	}
	if err := tx.Candidates().InsertCandidate(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to insert candidate: %w", err)
	}

	si := &StageInstance{
		ID:          uuid.New(),
		Status:      StageStatusPending,
		TemplateID:  first.ID,
		PipelineID:  job.PipelineID,
		CandidateID: c.ID,
	}
	if err := tx.StageInstances().InsertInstance(ctx, si); err != nil {
		return nil, fmt.Errorf("failed to insert initial stage instance: %w", err)
	}

	if err := moveCurrentStage(ctx, tx, c, si); err != nil {
		return nil, err
	}
	c.Stages = []StageInstance{*si}
	return c, nil
}

// GetCandidateTx loads a candidate with their stage instances ordered by the
// order of the templates they instantiate.
func GetCandidateTx(ctx context.Context, tx Tx, id uuid.UUID) (*Candidate, error) {
	c, err := tx.Candidates().GetCandidate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate: %w", err)
	}
	if c == nil {
		return nil, notFound("candidate", id)
	}

	instances, err := tx.StageInstances().ListInstances(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage instances: %w", err)
	}

	orders := make(map[uuid.UUID]int)
	for _, si := range instances {
		if _, ok := orders[si.TemplateID]; ok {
			continue
		}
		t, err := tx.Templates().GetTemplate(ctx, si.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("failed to load stage template: %w", err)
		}
		if t != nil {
			orders[si.TemplateID] = t.Order
		}
	}
	sortInstances(instances, orders)

	c.Stages = instances
	if c.CurrentStageID != nil {
		for i := range instances {
			if instances[i].ID == *c.CurrentStageID {
				c.CurrentStage = &instances[i]
				break
			}
		}
	}
	return c, nil
}

// checkCVAvailable verifies the CV exists and no candidate owns it yet.
func checkCVAvailable(ctx context.Context, tx Tx, cvID uuid.UUID) error {
	exists, err := tx.CVs().CVExists(ctx, cvID)
	if err != nil {
		return fmt.Errorf("failed to resolve cv: %w", err)
	}
	if !exists {
		return notFound("cv", cvID)
	}

	owner, err := tx.Candidates().FindCandidateByCV(ctx, cvID)
	if err != nil {
		return fmt.Errorf("failed to look up cv owner: %w", err)
	}
	if owner != nil {
		return &ConstraintError{
			Field:   "cv_id",
			Message: fmt.Sprintf("cv %s is already attached to candidate %s", cvID, owner.ID),
		}
	}
	return nil
}

// moveCurrentStage points c at si, guarded by the candidate version.
func moveCurrentStage(ctx context.Context, tx Tx, c *Candidate, si *StageInstance) error {
	ok, err := tx.Candidates().SetCurrentStage(ctx, c.ID, &si.ID, c.Version)
	if err != nil {
		return fmt.Errorf("failed to set current stage: %w", err)
	}
	if !ok {
		return &ConflictError{Entity: "candidate", ID: c.ID}
	}
	c.CurrentStageID = &si.ID
	c.CurrentStage = si
	c.Version++
	return nil
}
