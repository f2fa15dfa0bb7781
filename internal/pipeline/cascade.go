package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// DeleteCandidateTx removes a candidate, their stage instances and their CV.
func DeleteCandidateTx(ctx context.Context, tx Tx, candidateID uuid.UUID) (DeletionReport, error) {
	c, err := tx.Candidates().GetCandidate(ctx, candidateID)
	if err != nil {
		return DeletionReport{}, fmt.Errorf("failed to load candidate: %w", err)
	}
	if c == nil {
		return DeletionReport{}, notFound("candidate", candidateID)
	}
	return deleteCandidatesCascade(ctx, tx, []Candidate{*c})
}

// DeleteJobTx removes a job together with its candidates, their stage
// instances and their CVs.
func DeleteJobTx(ctx context.Context, tx Tx, jobID uuid.UUID) (DeletionReport, error) {
	job, err := tx.Jobs().GetJob(ctx, jobID)
	if err != nil {
		return DeletionReport{}, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return DeletionReport{}, notFound("job", jobID)
	}
	return deleteJobsCascade(ctx, tx, []uuid.UUID{job.ID})
}

// DeletePipelineTx removes a pipeline definition, every job running it (with
// their candidates), then the templates and the definition itself.
func DeletePipelineTx(ctx context.Context, tx Tx, pipelineID uuid.UUID) (DeletionReport, error) {
	p, err := tx.Pipelines().GetPipeline(ctx, pipelineID)
	if err != nil {
		return DeletionReport{}, fmt.Errorf("failed to load pipeline: %w", err)
	}
	if p == nil {
		return DeletionReport{}, notFound("pipeline", pipelineID)
	}

	jobIDs, err := tx.Jobs().ListJobIDsByPipeline(ctx, p.ID)
	if err != nil {
		return DeletionReport{}, fmt.Errorf("failed to list jobs: %w", err)
	}

	report, err := deleteJobsCascade(ctx, tx, jobIDs)
	if err != nil {
		return DeletionReport{}, err
	}

	// Instances referencing this pipeline's templates from any other candidate
	// would block the template delete.
	swept, err := tx.StageInstances().DeleteInstancesByPipeline(ctx, p.ID)
	if err != nil {
		return DeletionReport{}, fmt.Errorf("failed to delete stage instances: %w", err)
	}
	report.StageInstances += swept

	templates, err := tx.Templates().DeleteTemplatesByPipeline(ctx, p.ID)
	if err != nil {
		return DeletionReport{}, fmt.Errorf("failed to delete stage templates: %w", err)
	}
	report.StageTemplates = templates

	pipelines, err := tx.Pipelines().DeletePipeline(ctx, p.ID)
	if err != nil {
		return DeletionReport{}, fmt.Errorf("failed to delete pipeline: %w", err)
	}
	report.Pipelines = pipelines

	return report, nil
}

func deleteJobsCascade(ctx context.Context, tx Tx, jobIDs []uuid.UUID) (DeletionReport, error) {
	if len(jobIDs) == 0 {
		return DeletionReport{}, nil
	}

	candidates, err := tx.Candidates().ListCandidatesByJobs(ctx, jobIDs)
	if err != nil {
		return DeletionReport{}, fmt.Errorf("failed to list candidates: %w", err)
	}

	report, err := deleteCandidatesCascade(ctx, tx, candidates)
	if err != nil {
		return DeletionReport{}, err
	}

	jobs, err := tx.Jobs().DeleteJobs(ctx, jobIDs)
	if err != nil {
		return DeletionReport{}, fmt.Errorf("failed to delete jobs: %w", err)
	}
	report.Jobs = jobs
	return report, nil
}

// deleteCandidatesCascade removes candidates in dependency order: detach the
// current-stage and CV pointers, drop stage instances, drop CVs (chunks
// first), then the candidate rows.
func deleteCandidatesCascade(ctx context.Context, tx Tx, candidates []Candidate) (DeletionReport, error) {
	var report DeletionReport
	if len(candidates) == 0 {
		return report, nil
	}

	ids := make([]uuid.UUID, 0, len(candidates))
	cvIDs := make([]uuid.UUID, 0, len(candidates))
	seenCV := make(map[uuid.UUID]struct{})
	for _, c := range candidates {
		ids = append(ids, c.ID)
		if c.CVID == nil {
			continue
		}
		if _, ok := seenCV[*c.CVID]; ok {
			continue
		}
		seenCV[*c.CVID] = struct{}{}
		cvIDs = append(cvIDs, *c.CVID)
	}

	if err := tx.Candidates().DetachCandidates(ctx, ids); err != nil {
		return report, fmt.Errorf("failed to detach candidates: %w", err)
	}

	instances, err := tx.StageInstances().DeleteInstancesByCandidates(ctx, ids)
	if err != nil {
		return report, fmt.Errorf("failed to delete stage instances: %w", err)
	}
	report.StageInstances = instances

	if len(cvIDs) > 0 {
		cvs, chunks, err := tx.CVs().DeleteCVs(ctx, cvIDs)
		if err != nil {
			return report, fmt.Errorf("failed to delete cvs: %w", err)
		}
		report.CVs = cvs
		report.CVChunks = chunks
	}

	deleted, err := tx.Candidates().DeleteCandidates(ctx, ids)
	if err != nil {
		return report, fmt.Errorf("failed to delete candidates: %w", err)
	}
	report.Candidates = deleted
	return report, nil
}

// asDeletionError wraps err in a DeletionError unless it already is one.
func asDeletionError(entity string, id uuid.UUID, err error) error {
	var de *DeletionError
	if errors.As(err, &de) {
		return err
	}
	return &DeletionError{Entity: entity, ID: id, Cause: err}
}
