package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hiring-pipeline/internal/pipeline"
)

func TestCreateCandidate_BindsLowestOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.UpsertPipeline(ctx, pipeline.PipelineDefinition{Name: "Shuffled"},
		[]pipeline.StageTemplate{
			{Order: 30, Name: "Offer"},
			{Order: 5, Name: "Applied"},
			{Order: 17, Name: "Interview"},
		})
	require.NoError(t, err)
	job := f.job(t, p.ID)

	c := f.candidate(t, job.ID, nil)

	require.NotNil(t, c.CurrentStageID)
	require.NotNil(t, c.CurrentStage)
	assert.Equal(t, p.Templates[0].ID, c.CurrentStage.TemplateID)
	assert.Equal(t, "Applied", p.Templates[0].Name)
	assert.Equal(t, pipeline.StageStatusPending, c.CurrentStage.Status)
	assert.Equal(t, p.ID, c.CurrentStage.PipelineID)
	require.Len(t, c.Stages, 1)
}

func TestCreateCandidate_NoStages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.UpsertPipeline(ctx, pipeline.PipelineDefinition{Name: "Empty"}, nil)
	require.NoError(t, err)
	job := f.job(t, p.ID)

	_, err = f.svc.CreateCandidate(ctx, job.ID, f.persona, nil)

	var ce *pipeline.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, p.ID, ce.PipelineID)
	assert.Equal(t, 0, f.store.Counts().Candidates)
	assert.Equal(t, 0, f.store.Counts().StageInstances)
}

func TestCreateCandidate_MissingReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.engineering(t)
	job := f.job(t, p.ID)

	unknownCV := uuid.New()

	tests := []struct {
		name       string
		jobID      uuid.UUID
		personaID  uuid.UUID
		cvID       *uuid.UUID
		wantEntity string
		wantID     uuid.UUID
	}{
		{"unknown job", uuid.New(), f.persona, nil, "job", uuid.Nil},
		{"unknown persona", job.ID, uuid.New(), nil, "persona", uuid.Nil},
		{"unknown cv", job.ID, f.persona, &unknownCV, "cv", unknownCV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateCandidate(ctx, tt.jobID, tt.personaID, tt.cvID)
			var nf *pipeline.NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, tt.wantEntity, nf.Entity)
			if tt.wantID != uuid.Nil {
				assert.Equal(t, tt.wantID, nf.ID)
			}
			assert.False(t, pipeline.IsRetryable(err))
			assert.Equal(t, 0, f.store.Counts().Candidates)
		})
	}
}

func TestEngineeringScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, byName := f.engineering(t)
	job := f.job(t, p.ID)

	c := f.candidate(t, job.ID, nil)
	assert.Equal(t, byName["Applied"].ID, c.CurrentStage.TemplateID)

	advanced, err := f.svc.AdvanceStage(ctx, c.ID, byName["Interview"].ID)
	require.NoError(t, err)
	assert.Equal(t, byName["Interview"].ID, advanced.CurrentStage.TemplateID)

	_, err = f.svc.AdvanceStage(ctx, c.ID, byName["Applied"].ID)
	var ite *pipeline.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	require.NotNil(t, ite.CurrentOrder)
	assert.Equal(t, 2, *ite.CurrentOrder)
	assert.Equal(t, 1, ite.TargetOrder)

	assert.Equal(t, byName["Interview"].ID, f.currentTemplate(t, c.ID))
}

func TestAdvanceStage_BackwardOrLateralRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, byName := f.engineering(t)
	job := f.job(t, p.ID)
	c := f.candidate(t, job.ID, nil)

	_, err := f.svc.AdvanceStage(ctx, c.ID, byName["Offer"].ID)
	require.NoError(t, err)

	for _, target := range []string{"Applied", "Interview"} {
		t.Run(target, func(t *testing.T) {
			_, err := f.svc.AdvanceStage(ctx, c.ID, byName[target].ID)
			var ite *pipeline.InvalidTransitionError
			require.ErrorAs(t, err, &ite)
			assert.Equal(t, byName["Offer"].ID, f.currentTemplate(t, c.ID))
		})
	}
}

func TestAdvanceStage_SkipsForward(t *testing.T) {
	f := newFixture(t)
	p, byName := f.engineering(t)
	job := f.job(t, p.ID)
	c := f.candidate(t, job.ID, nil)

	got, err := f.svc.AdvanceStage(context.Background(), c.ID, byName["Offer"].ID)
	require.NoError(t, err)

	assert.Equal(t, byName["Offer"].ID, got.CurrentStage.TemplateID)
	assert.Equal(t, 2, f.store.Counts().StageInstances)
}

func TestAdvanceStage_CrossPipeline(t *testing.T) {
	f := newFixture(t)
	eng, _ := f.engineering(t)
	sales, salesTemplates := f.pipeline(t, "Sales", "Lead", "Demo")
	job := f.job(t, eng.ID)
	c := f.candidate(t, job.ID, nil)

	_, err := f.svc.AdvanceStage(context.Background(), c.ID, salesTemplates["Demo"].ID)

	var cpe *pipeline.CrossPipelineError
	require.ErrorAs(t, err, &cpe)
	assert.Equal(t, sales.ID, cpe.TemplatePipeline)
	assert.Equal(t, eng.ID, cpe.ExpectedPipeline)
	assert.Equal(t, 1, f.store.Counts().StageInstances)
}

func TestAdvanceStage_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, byName := f.engineering(t)
	job := f.job(t, p.ID)
	c := f.candidate(t, job.ID, nil)

	_, err := f.svc.AdvanceStage(ctx, uuid.New(), byName["Interview"].ID)
	var nf *pipeline.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "candidate", nf.Entity)

	_, err = f.svc.AdvanceStage(ctx, c.ID, uuid.New())
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "stage template", nf.Entity)
}

func TestAdvanceStage_SameTargetTwiceKeepsOneInstance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, byName := f.engineering(t)
	job := f.job(t, p.ID)
	c := f.candidate(t, job.ID, nil)

	first, err := f.svc.AdvanceStage(ctx, c.ID, byName["Interview"].ID)
	require.NoError(t, err)
	second, err := f.svc.AdvanceStage(ctx, c.ID, byName["Interview"].ID)
	require.NoError(t, err)

	assert.Equal(t, *first.CurrentStageID, *second.CurrentStageID)

	got, err := f.svc.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	var interviews int
	for _, si := range got.Stages {
		if si.TemplateID == byName["Interview"].ID {
			interviews++
		}
	}
	assert.Equal(t, 1, interviews)
	assert.Equal(t, 2, f.store.Counts().StageInstances)
}

func TestAdvanceStage_ReentryKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, byName := f.engineering(t)
	job := f.job(t, p.ID)
	c := f.candidate(t, job.ID, nil)

	completed := pipeline.StageStatusCompleted
	_, err := f.svc.UpdateStageInstance(ctx, c.ID, *c.CurrentStageID, pipeline.StageInstanceUpdate{Status: &completed})
	require.NoError(t, err)

	got, err := f.svc.AdvanceStage(ctx, c.ID, byName["Applied"].ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StageStatusCompleted, got.CurrentStage.Status)
}

func TestAdvanceStage_LostRaceIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, byName := f.engineering(t)
	job := f.job(t, p.ID)
	c := f.candidate(t, job.ID, nil)

	racing := pipeline.NewService(racingStore{f.store})
	_, err := racing.AdvanceStage(ctx, c.ID, byName["Interview"].ID)

	var conflict *pipeline.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, c.ID, conflict.ID)
	assert.True(t, pipeline.IsRetryable(err))

	assert.Equal(t, byName["Applied"].ID, f.currentTemplate(t, c.ID))
	assert.Equal(t, 1, f.store.Counts().StageInstances)
}

func TestUpdateStageInstance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.engineering(t)
	job := f.job(t, p.ID)
	c := f.candidate(t, job.ID, nil)

	notes := "strong systems background"
	rating := 4
	date := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	cancelled := pipeline.StageStatusCancelled

	si, err := f.svc.UpdateStageInstance(ctx, c.ID, *c.CurrentStageID, pipeline.StageInstanceUpdate{
		Status: &cancelled,
		Notes:  &notes,
		Date:   &date,
		Rating: &rating,
	})
	require.NoError(t, err)

	assert.Equal(t, pipeline.StageStatusCancelled, si.Status)
	assert.Equal(t, notes, *si.Notes)
	assert.Equal(t, rating, *si.Rating)
	assert.True(t, date.Equal(*si.Date))

	got, err := f.svc.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, *c.CurrentStageID, *got.CurrentStageID)
	assert.Equal(t, pipeline.StageStatusCancelled, got.CurrentStage.Status)

	t.Run("partial update leaves other fields", func(t *testing.T) {
		pending := pipeline.StageStatusPending
		si, err := f.svc.UpdateStageInstance(ctx, c.ID, *c.CurrentStageID, pipeline.StageInstanceUpdate{Status: &pending})
		require.NoError(t, err)
		assert.Equal(t, notes, *si.Notes)
	})

	t.Run("instance of another candidate", func(t *testing.T) {
		other := f.candidate(t, job.ID, nil)
		_, err := f.svc.UpdateStageInstance(ctx, c.ID, *other.CurrentStageID, pipeline.StageInstanceUpdate{Notes: &notes})
		var nf *pipeline.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("invalid values", func(t *testing.T) {
		bad := 9
		_, err := f.svc.UpdateStageInstance(ctx, c.ID, *c.CurrentStageID, pipeline.StageInstanceUpdate{Rating: &bad})
		var ce *pipeline.ConstraintError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "rating", ce.Field)

		unknown := pipeline.StageStatus("archived")
		_, err = f.svc.UpdateStageInstance(ctx, c.ID, *c.CurrentStageID, pipeline.StageInstanceUpdate{Status: &unknown})
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "status", ce.Field)
	})
}

func TestGetCandidate_HistoryInTemplateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, byName := f.engineering(t)
	job := f.job(t, p.ID)
	c := f.candidate(t, job.ID, nil)

	_, err := f.svc.AdvanceStage(ctx, c.ID, byName["Interview"].ID)
	require.NoError(t, err)
	_, err = f.svc.AdvanceStage(ctx, c.ID, byName["Offer"].ID)
	require.NoError(t, err)

	got, err := f.svc.GetCandidate(ctx, c.ID)
	require.NoError(t, err)

	require.Len(t, got.Stages, 3)
	assert.Equal(t, byName["Applied"].ID, got.Stages[0].TemplateID)
	assert.Equal(t, byName["Interview"].ID, got.Stages[1].TemplateID)
	assert.Equal(t, byName["Offer"].ID, got.Stages[2].TemplateID)
	assert.Equal(t, byName["Offer"].ID, got.CurrentStage.TemplateID)
}
