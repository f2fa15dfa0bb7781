//go:build integration

package db

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hiring-pipeline/database"
	"github.com/jonathan/hiring-pipeline/internal/pipeline"
)

// getTestDB returns a store on a migrated database with all pipeline tables
// emptied.
func getTestDB(t *testing.T) (*DB, *pgxpool.Pool) {
	t.Helper()

	pool, cleanup := database.SetupTestPool(t)
	t.Cleanup(cleanup)

	_, err := pool.Exec(context.Background(),
		`TRUNCATE stage_instances, candidates, cv_chunks, cv_documents, personas,
		          job_postings, stage_templates, pipeline_definitions CASCADE`)
	require.NoError(t, err)

	return New(pool, nil), pool
}

func seedPersona(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `INSERT INTO personas (id, name) VALUES ($1, 'Ada Lovelace')`, id)
	require.NoError(t, err)
	return id
}

func seedCV(t *testing.T, pool *pgxpool.Pool, chunks int) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO cv_documents (id, file_name, storage_key) VALUES ($1, 'cv.pdf', $2)`,
		id, "cvs/"+id.String())
	require.NoError(t, err)
	for i := 0; i < chunks; i++ {
		_, err := pool.Exec(ctx,
			`INSERT INTO cv_chunks (id, cv_id, ordinal, content, embedding) VALUES ($1, $2, $3, 'chunk', $4)`,
			uuid.New(), id, i, []float32{0.1, 0.2, 0.3})
		require.NoError(t, err)
	}
	return id
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func engineering(t *testing.T, svc *pipeline.Service) (*pipeline.PipelineDefinition, map[string]uuid.UUID) {
	t.Helper()
	p, err := svc.UpsertPipeline(context.Background(), pipeline.PipelineDefinition{
		Name:     "Engineering",
		Metadata: map[string]any{"department": "R&D"},
	}, []pipeline.StageTemplate{
		{Order: 1, Name: "Applied"},
		{Order: 2, Name: "Interview"},
		{Order: 3, Name: "Offer"},
	})
	require.NoError(t, err)

	ids := make(map[string]uuid.UUID)
	for _, tpl := range p.Templates {
		ids[tpl.Name] = tpl.ID
	}
	return p, ids
}

func TestIntegration_EngineeringScenario(t *testing.T) {
	store, pool := getTestDB(t)
	svc := pipeline.NewService(store)
	ctx := context.Background()

	p, ids := engineering(t, svc)
	assert.Equal(t, "R&D", p.Metadata["department"])

	job, err := svc.CreateJob(ctx, pipeline.JobPosting{Title: "Backend Engineer", PipelineID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, "open", job.Status)

	c, err := svc.CreateCandidate(ctx, job.ID, seedPersona(t, pool), nil)
	require.NoError(t, err)
	assert.Equal(t, ids["Applied"], c.CurrentStage.TemplateID)
	assert.Equal(t, int64(2), c.Version)

	advanced, err := svc.AdvanceStage(ctx, c.ID, ids["Interview"])
	require.NoError(t, err)
	assert.Equal(t, ids["Interview"], advanced.CurrentStage.TemplateID)

	_, err = svc.AdvanceStage(ctx, c.ID, ids["Interview"])
	require.NoError(t, err)
	assert.Equal(t, 2, countRows(t, pool, "stage_instances"))

	_, err = svc.AdvanceStage(ctx, c.ID, ids["Applied"])
	var ite *pipeline.InvalidTransitionError
	require.ErrorAs(t, err, &ite)

	got, err := svc.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, ids["Interview"], got.CurrentStage.TemplateID)
	require.Len(t, got.Stages, 2)
	assert.Equal(t, ids["Applied"], got.Stages[0].TemplateID)
}

func TestIntegration_NoStagesWritesNothing(t *testing.T) {
	store, pool := getTestDB(t)
	svc := pipeline.NewService(store)
	ctx := context.Background()

	p, err := svc.UpsertPipeline(ctx, pipeline.PipelineDefinition{Name: "Empty"}, nil)
	require.NoError(t, err)
	job, err := svc.CreateJob(ctx, pipeline.JobPosting{Title: "Anything", PipelineID: p.ID})
	require.NoError(t, err)

	_, err = svc.CreateCandidate(ctx, job.ID, seedPersona(t, pool), nil)
	var ce *pipeline.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, countRows(t, pool, "candidates"))
}

func TestIntegration_UpsertSwapsOrders(t *testing.T) {
	store, _ := getTestDB(t)
	svc := pipeline.NewService(store)
	ctx := context.Background()

	p, ids := engineering(t, svc)

	updated, err := svc.UpsertPipeline(ctx, pipeline.PipelineDefinition{ID: p.ID, Name: p.Name}, []pipeline.StageTemplate{
		{ID: ids["Applied"], Order: 1, Name: "Applied"},
		{ID: ids["Offer"], Order: 2, Name: "Offer"},
		{ID: ids["Interview"], Order: 3, Name: "Interview"},
	})
	require.NoError(t, err)
	require.Len(t, updated.Templates, 3)
	assert.Equal(t, ids["Offer"], updated.Templates[1].ID)
	assert.Equal(t, ids["Interview"], updated.Templates[2].ID)

	dropped, err := svc.UpsertPipeline(ctx, pipeline.PipelineDefinition{ID: p.ID, Name: p.Name}, []pipeline.StageTemplate{
		{ID: ids["Applied"], Order: 1, Name: "Applied"},
		{ID: ids["Interview"], Order: 3, Name: "Interview"},
	})
	require.NoError(t, err)
	require.Len(t, dropped.Templates, 2)
	assert.Equal(t, ids["Applied"], dropped.Templates[0].ID)
	assert.Equal(t, ids["Interview"], dropped.Templates[1].ID)
}

func TestIntegration_DeletePipelineLeavesNoOrphans(t *testing.T) {
	store, pool := getTestDB(t)
	svc := pipeline.NewService(store)
	ctx := context.Background()

	p, ids := engineering(t, svc)
	job, err := svc.CreateJob(ctx, pipeline.JobPosting{Title: "Backend Engineer", PipelineID: p.ID})
	require.NoError(t, err)

	persona := seedPersona(t, pool)
	for i := 0; i < 3; i++ {
		cv := seedCV(t, pool, 2)
		c, err := svc.CreateCandidate(ctx, job.ID, persona, &cv)
		require.NoError(t, err)
		if i == 0 {
			_, err = svc.AdvanceStage(ctx, c.ID, ids["Offer"])
			require.NoError(t, err)
		}
	}

	report, err := svc.DeletePipeline(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, pipeline.DeletionReport{
		Pipelines:      1,
		StageTemplates: 3,
		Jobs:           1,
		Candidates:     3,
		StageInstances: 4,
		CVs:            3,
		CVChunks:       6,
	}, report)

	for _, table := range []string{
		"pipeline_definitions", "stage_templates", "job_postings",
		"candidates", "stage_instances", "cv_documents", "cv_chunks",
	} {
		assert.Equal(t, 0, countRows(t, pool, table), table)
	}
	assert.Equal(t, 1, countRows(t, pool, "personas"))
}

func TestIntegration_DeleteJobAndCandidate(t *testing.T) {
	store, pool := getTestDB(t)
	svc := pipeline.NewService(store)
	ctx := context.Background()

	p, _ := engineering(t, svc)
	job, err := svc.CreateJob(ctx, pipeline.JobPosting{Title: "SRE", PipelineID: p.ID})
	require.NoError(t, err)
	persona := seedPersona(t, pool)
	cv := seedCV(t, pool, 3)

	a, err := svc.CreateCandidate(ctx, job.ID, persona, &cv)
	require.NoError(t, err)
	_, err = svc.CreateCandidate(ctx, job.ID, persona, nil)
	require.NoError(t, err)

	report, err := svc.DeleteCandidate(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.CVs)
	assert.Equal(t, int64(3), report.CVChunks)
	assert.Equal(t, 1, countRows(t, pool, "candidates"))

	report, err = svc.DeleteJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Jobs)
	assert.Equal(t, int64(1), report.Candidates)
	assert.Equal(t, 0, countRows(t, pool, "stage_instances"))
	assert.Equal(t, 3, countRows(t, pool, "stage_templates"))

	_, err = svc.DeleteJob(ctx, job.ID)
	var de *pipeline.DeletionError
	require.ErrorAs(t, err, &de)
	var nf *pipeline.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestIntegration_ConcurrentAdvanceNeverSilentlyOverwrites(t *testing.T) {
	store, pool := getTestDB(t)
	svc := pipeline.NewService(store)
	ctx := context.Background()

	p, ids := engineering(t, svc)
	job, err := svc.CreateJob(ctx, pipeline.JobPosting{Title: "SRE", PipelineID: p.ID})
	require.NoError(t, err)
	c, err := svc.CreateCandidate(ctx, job.ID, seedPersona(t, pool), nil)
	require.NoError(t, err)

	targets := []uuid.UUID{ids["Interview"], ids["Offer"]}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target uuid.UUID) {
			defer wg.Done()
			_, errs[i] = svc.AdvanceStage(ctx, c.ID, target)
		}(i, target)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, pipeline.IsRetryable(err) || isInvalidTransition(err), "unexpected error: %v", err)
	}
	assert.GreaterOrEqual(t, succeeded, 1)

	got, err := svc.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Contains(t, targets, got.CurrentStage.TemplateID)
}

func isInvalidTransition(err error) bool {
	var ite *pipeline.InvalidTransitionError
	return errors.As(err, &ite)
}

func TestIntegration_CVReferences(t *testing.T) {
	store, pool := getTestDB(t)
	svc := pipeline.NewService(store)
	ctx := context.Background()

	p, _ := engineering(t, svc)
	first, err := svc.CreateJob(ctx, pipeline.JobPosting{Title: "Backend Engineer", PipelineID: p.ID})
	require.NoError(t, err)
	second, err := svc.CreateJob(ctx, pipeline.JobPosting{Title: "SRE", PipelineID: p.ID})
	require.NoError(t, err)
	persona := seedPersona(t, pool)

	missing := uuid.New()
	_, err = svc.CreateCandidate(ctx, first.ID, persona, &missing)
	var nf *pipeline.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "cv", nf.Entity)

	cv := seedCV(t, pool, 2)
	_, err = svc.CreateCandidate(ctx, first.ID, persona, &cv)
	require.NoError(t, err)

	_, err = svc.CreateCandidate(ctx, second.ID, persona, &cv)
	var ce *pipeline.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cv_id", ce.Field)

	// Bypass the engine to hit the unique constraint itself.
	_, err = pool.Exec(ctx,
		`INSERT INTO candidates (id, persona_id, job_id, cv_id) VALUES ($1, $2, $3, $4)`,
		uuid.New(), persona, second.ID, cv)
	require.Error(t, err)
	ce = nil
	require.ErrorAs(t, translate(err), &ce)
	assert.Equal(t, "cv_id", ce.Field)

	report, err := svc.DeleteJob(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.CVs)
	assert.Equal(t, int64(2), report.CVChunks)
	assert.Equal(t, 0, countRows(t, pool, "cv_documents"))
}
