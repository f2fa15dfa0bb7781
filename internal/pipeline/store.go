package pipeline

import (
	"context"

	"github.com/google/uuid"
)

// Store runs units of work against the pipeline graph. InTx must commit when
// fn returns nil and roll back otherwise; reads inside fn see one consistent
// snapshot.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx exposes the typed repositories bound to one transaction. Single-row
// lookups return (nil, nil) when the row does not exist.
type Tx interface {
	Pipelines() PipelineRepository
	Templates() TemplateRepository
	Jobs() JobRepository
	Personas() PersonaLookup
	Candidates() CandidateRepository
	StageInstances() StageInstanceRepository
	CVs() CVStore
}

// PipelineRepository persists pipeline definitions. Soft-deleted rows are
// invisible to GetPipeline.
type PipelineRepository interface {
	GetPipeline(ctx context.Context, id uuid.UUID) (*PipelineDefinition, error)
	InsertPipeline(ctx context.Context, p *PipelineDefinition) error
	UpdatePipeline(ctx context.Context, p *PipelineDefinition) error
	DeletePipeline(ctx context.Context, id uuid.UUID) (int64, error)
}

// TemplateRepository persists stage templates. Listings are ascending by
// order.
type TemplateRepository interface {
	ListTemplates(ctx context.Context, pipelineID uuid.UUID) ([]StageTemplate, error)
	FirstTemplate(ctx context.Context, pipelineID uuid.UUID) (*StageTemplate, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*StageTemplate, error)
	InsertTemplate(ctx context.Context, t *StageTemplate) error
	UpdateTemplate(ctx context.Context, t *StageTemplate) error
	DeleteTemplates(ctx context.Context, ids []uuid.UUID) (int64, error)
	DeleteTemplatesByPipeline(ctx context.Context, pipelineID uuid.UUID) (int64, error)
}

// JobRepository resolves job postings to their pipeline.
type JobRepository interface {
	GetJob(ctx context.Context, id uuid.UUID) (*JobPosting, error)
	InsertJob(ctx context.Context, j *JobPosting) error
	ListJobIDsByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]uuid.UUID, error)
	DeleteJobs(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// PersonaLookup resolves persona references. Personas are owned elsewhere.
type PersonaLookup interface {
	PersonaExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// CandidateRepository persists candidates.
type CandidateRepository interface {
	GetCandidate(ctx context.Context, id uuid.UUID) (*Candidate, error)
	InsertCandidate(ctx context.Context, c *Candidate) error
	ListCandidatesByJobs(ctx context.Context, jobIDs []uuid.UUID) ([]Candidate, error)

	// FindCandidateByCV returns the candidate a CV is attached to. A CV has
	// at most one owner.
	FindCandidateByCV(ctx context.Context, cvID uuid.UUID) (*Candidate, error)

	// SetCurrentStage moves the current-stage pointer only if the stored
	// version still equals expectedVersion, bumping the version on success.
	// It reports false when the row was changed by someone else.
	SetCurrentStage(ctx context.Context, id uuid.UUID, stageID *uuid.UUID, expectedVersion int64) (bool, error)

	// DetachCandidates nulls the current-stage and CV references of the
	// given candidates so their dependents can be deleted.
	DetachCandidates(ctx context.Context, ids []uuid.UUID) error
	DeleteCandidates(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// StageInstanceRepository persists stage instances. There is at most one
// instance per (candidate, template).
type StageInstanceRepository interface {
	GetInstance(ctx context.Context, id uuid.UUID) (*StageInstance, error)
	FindInstance(ctx context.Context, candidateID, templateID uuid.UUID) (*StageInstance, error)
	ListInstances(ctx context.Context, candidateID uuid.UUID) ([]StageInstance, error)
	CountInstancesByTemplates(ctx context.Context, templateIDs []uuid.UUID) (int64, error)
	InsertInstance(ctx context.Context, si *StageInstance) error
	UpdateInstance(ctx context.Context, si *StageInstance) error
	DeleteInstancesByCandidates(ctx context.Context, candidateIDs []uuid.UUID) (int64, error)
	DeleteInstancesByPipeline(ctx context.Context, pipelineID uuid.UUID) (int64, error)
}

// CVStore looks up and removes CV documents together with their embedding
// chunks. Callers detach candidates from the CVs before deleting them.
type CVStore interface {
	CVExists(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteCVs(ctx context.Context, ids []uuid.UUID) (cvs int64, chunks int64, err error)
}
