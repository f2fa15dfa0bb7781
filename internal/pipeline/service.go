package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Service is the entry point used by collaborators (HTTP layer, CLI). Each
// method runs exactly one transaction on the injected Store.
type Service struct {
	store  Store
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the tracer. Defaults to the global otel tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// NewService creates a Service backed by store
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the underlying store is reachable
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// UpsertPipeline creates or updates a pipeline definition and replaces its
// template set.
func (s *Service) UpsertPipeline(ctx context.Context, def PipelineDefinition, templates []StageTemplate) (*PipelineDefinition, error) {
	ctx, span := s.startSpan(ctx, "pipeline.UpsertPipeline",
		AttrPipelineID.String(def.ID.String()),
		AttrTemplates.Int(len(templates)))
	defer span.End()
	start := time.Now()

	var result *PipelineDefinition
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		result, err = UpsertPipelineTx(ctx, tx, def, templates)
		return err
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "Pipeline upserted",
		"pipeline_id", result.ID,
		"templates", len(result.Templates),
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// GetPipeline returns a live pipeline definition with its templates
func (s *Service) GetPipeline(ctx context.Context, id uuid.UUID) (*PipelineDefinition, error) {
	ctx, span := s.startSpan(ctx, "pipeline.GetPipeline", AttrPipelineID.String(id.String()))
	defer span.End()

	var result *PipelineDefinition
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		result, err = GetPipelineTx(ctx, tx, id)
		return err
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return result, nil
}

// CreateJob creates a job posting bound to an existing pipeline
func (s *Service) CreateJob(ctx context.Context, job JobPosting) (*JobPosting, error) {
	ctx, span := s.startSpan(ctx, "pipeline.CreateJob", AttrPipelineID.String(job.PipelineID.String()))
	defer span.End()

	var result *JobPosting
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		result, err = CreateJobTx(ctx, tx, job)
		return err
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "Job created", "job_id", result.ID, "pipeline_id", result.PipelineID)
	return result, nil
}

// CreateCandidate creates a candidate for a job and places them on the first
// stage of the job's pipeline.
func (s *Service) CreateCandidate(ctx context.Context, jobID, personaID uuid.UUID, cvID *uuid.UUID) (*Candidate, error) {
	ctx, span := s.startSpan(ctx, "pipeline.CreateCandidate", AttrJobID.String(jobID.String()))
	defer span.End()

	var result *Candidate
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		result, err = CreateCandidateTx(ctx, tx, jobID, personaID, cvID)
		return err
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(AttrCandidateID.String(result.ID.String()))
	s.logger.InfoContext(ctx, "Candidate created",
		"candidate_id", result.ID,
		"job_id", jobID,
		"stage_instance_id", result.CurrentStageID)
	return result, nil
}

// GetCandidate returns a candidate with their stage history
func (s *Service) GetCandidate(ctx context.Context, id uuid.UUID) (*Candidate, error) {
	ctx, span := s.startSpan(ctx, "pipeline.GetCandidate", AttrCandidateID.String(id.String()))
	defer span.End()

	var result *Candidate
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		result, err = GetCandidateTx(ctx, tx, id)
		return err
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return result, nil
}

// AdvanceStage moves a candidate forward to the target stage template
func (s *Service) AdvanceStage(ctx context.Context, candidateID, targetTemplateID uuid.UUID) (*Candidate, error) {
	ctx, span := s.startSpan(ctx, "pipeline.AdvanceStage",
		AttrCandidateID.String(candidateID.String()),
		AttrTemplateID.String(targetTemplateID.String()))
	defer span.End()

	var result *Candidate
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		result, err = AdvanceStageTx(ctx, tx, candidateID, targetTemplateID)
		return err
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "Candidate stage advanced",
		"candidate_id", candidateID,
		"template_id", targetTemplateID,
		"stage_instance_id", result.CurrentStageID)
	return result, nil
}

// UpdateStageInstance edits status, notes, date or rating of one of the
// candidate's stage instances without moving the current-stage pointer.
func (s *Service) UpdateStageInstance(ctx context.Context, candidateID, instanceID uuid.UUID, update StageInstanceUpdate) (*StageInstance, error) {
	ctx, span := s.startSpan(ctx, "pipeline.UpdateStageInstance",
		AttrCandidateID.String(candidateID.String()),
		AttrInstanceID.String(instanceID.String()))
	defer span.End()

	var result *StageInstance
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		result, err = UpdateStageInstanceTx(ctx, tx, candidateID, instanceID, update)
		return err
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return result, nil
}

// DeleteJob removes a job and everything hanging off its candidates
func (s *Service) DeleteJob(ctx context.Context, jobID uuid.UUID) (DeletionReport, error) {
	ctx, span := s.startSpan(ctx, "pipeline.DeleteJob", AttrJobID.String(jobID.String()))
	defer span.End()

	report, err := s.runCascade(ctx, "job", jobID, func(ctx context.Context, tx Tx) (DeletionReport, error) {
		return DeleteJobTx(ctx, tx, jobID)
	})
	if err != nil {
		recordError(span, err)
		return DeletionReport{}, err
	}
	return report, nil
}

// DeletePipeline removes a pipeline definition, its templates and every job
// that runs it
func (s *Service) DeletePipeline(ctx context.Context, pipelineID uuid.UUID) (DeletionReport, error) {
	ctx, span := s.startSpan(ctx, "pipeline.DeletePipeline", AttrPipelineID.String(pipelineID.String()))
	defer span.End()

	report, err := s.runCascade(ctx, "pipeline", pipelineID, func(ctx context.Context, tx Tx) (DeletionReport, error) {
		return DeletePipelineTx(ctx, tx, pipelineID)
	})
	if err != nil {
		recordError(span, err)
		return DeletionReport{}, err
	}
	return report, nil
}

// DeleteCandidate removes a candidate with their stage instances and CV
func (s *Service) DeleteCandidate(ctx context.Context, candidateID uuid.UUID) (DeletionReport, error) {
	ctx, span := s.startSpan(ctx, "pipeline.DeleteCandidate", AttrCandidateID.String(candidateID.String()))
	defer span.End()

	report, err := s.runCascade(ctx, "candidate", candidateID, func(ctx context.Context, tx Tx) (DeletionReport, error) {
		return DeleteCandidateTx(ctx, tx, candidateID)
	})
	if err != nil {
		recordError(span, err)
		return DeletionReport{}, err
	}
	return report, nil
}

// runCascade executes a cascade in one transaction. Commit failures are
// reported as DeletionError just like failures of individual steps.
func (s *Service) runCascade(
	ctx context.Context,
	entity string,
	id uuid.UUID,
	cascade func(ctx context.Context, tx Tx) (DeletionReport, error),
) (DeletionReport, error) {
	start := time.Now()

	var report DeletionReport
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		report, err = cascade(ctx, tx)
		return err
	})
	if err != nil {
		err = asDeletionError(entity, id, err)
		s.logger.WarnContext(ctx, "Cascade deletion rolled back",
			"entity", entity,
			"id", id,
			"error", err)
		return DeletionReport{}, err
	}

	s.logger.InfoContext(ctx, "Cascade deletion committed",
		"entity", entity,
		"id", id,
		"jobs", report.Jobs,
		"candidates", report.Candidates,
		"stage_instances", report.StageInstances,
		"stage_templates", report.StageTemplates,
		"cvs", report.CVs,
		"duration_ms", time.Since(start).Milliseconds())
	return report, nil
}

func notFound(entity string, id uuid.UUID) error {
	return &NotFoundError{Entity: entity, ID: id}
}
