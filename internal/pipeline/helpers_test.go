package pipeline_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hiring-pipeline/internal/memstore"
	"github.com/jonathan/hiring-pipeline/internal/pipeline"
)

type fixture struct {
	store   *memstore.Store
	svc     *pipeline.Service
	persona uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	persona := uuid.New()
	store.AddPersona(persona)
	return &fixture{
		store:   store,
		svc:     pipeline.NewService(store),
		persona: persona,
	}
}

// engineering creates the Applied/Interview/Offer pipeline and returns it
// with its templates keyed by name.
func (f *fixture) engineering(t *testing.T) (*pipeline.PipelineDefinition, map[string]pipeline.StageTemplate) {
	t.Helper()
	return f.pipeline(t, "Engineering", "Applied", "Interview", "Offer")
}

func (f *fixture) pipeline(t *testing.T, name string, stages ...string) (*pipeline.PipelineDefinition, map[string]pipeline.StageTemplate) {
	t.Helper()
	templates := make([]pipeline.StageTemplate, 0, len(stages))
	for i, s := range stages {
		templates = append(templates, pipeline.StageTemplate{Order: i + 1, Name: s})
	}

	p, err := f.svc.UpsertPipeline(context.Background(), pipeline.PipelineDefinition{Name: name}, templates)
	require.NoError(t, err)

	byName := make(map[string]pipeline.StageTemplate, len(p.Templates))
	for _, tpl := range p.Templates {
		byName[tpl.Name] = tpl
	}
	return p, byName
}

func (f *fixture) job(t *testing.T, pipelineID uuid.UUID) *pipeline.JobPosting {
	t.Helper()
	j, err := f.svc.CreateJob(context.Background(), pipeline.JobPosting{
		Title:      "Backend Engineer",
		Status:     "open",
		PipelineID: pipelineID,
	})
	require.NoError(t, err)
	return j
}

func (f *fixture) candidate(t *testing.T, jobID uuid.UUID, cvID *uuid.UUID) *pipeline.Candidate {
	t.Helper()
	c, err := f.svc.CreateCandidate(context.Background(), jobID, f.persona, cvID)
	require.NoError(t, err)
	return c
}

func (f *fixture) currentTemplate(t *testing.T, candidateID uuid.UUID) uuid.UUID {
	t.Helper()
	c, err := f.svc.GetCandidate(context.Background(), candidateID)
	require.NoError(t, err)
	require.NotNil(t, c.CurrentStage)
	return c.CurrentStage.TemplateID
}

// racingStore makes every compare-and-swap on the current-stage pointer
// lose, as if another transaction had moved the candidate first.
type racingStore struct {
	*memstore.Store
}

func (s racingStore) InTx(ctx context.Context, fn func(ctx context.Context, tx pipeline.Tx) error) error {
	return s.Store.InTx(ctx, func(ctx context.Context, tx pipeline.Tx) error {
		return fn(ctx, racingTx{tx})
	})
}

type racingTx struct {
	pipeline.Tx
}

func (t racingTx) Candidates() pipeline.CandidateRepository {
	return racingCandidates{t.Tx.Candidates()}
}

type racingCandidates struct {
	pipeline.CandidateRepository
}

func (racingCandidates) SetCurrentStage(context.Context, uuid.UUID, *uuid.UUID, int64) (bool, error) {
	return false, nil
}
