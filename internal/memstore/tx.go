package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/hiring-pipeline/internal/pipeline"
)

type memTx struct {
	data  *state
	now   func() time.Time
	fault func(op string) error
}

func (t *memTx) Pipelines() pipeline.PipelineRepository           { return pipelines{t} }
func (t *memTx) Templates() pipeline.TemplateRepository           { return templates{t} }
func (t *memTx) Jobs() pipeline.JobRepository                     { return jobs{t} }
func (t *memTx) Personas() pipeline.PersonaLookup                 { return personas{t} }
func (t *memTx) Candidates() pipeline.CandidateRepository         { return candidates{t} }
func (t *memTx) StageInstances() pipeline.StageInstanceRepository { return instances{t} }
func (t *memTx) CVs() pipeline.CVStore                            { return cvs{t} }

func (t *memTx) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.fault != nil {
		return t.fault(op)
	}
	return nil
}

func fkError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForeignKey, fmt.Sprintf(format, args...))
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// ---------------------------------------------------------------------------
// pipeline_definitions

type pipelines struct{ *memTx }

func (r pipelines) GetPipeline(ctx context.Context, id uuid.UUID) (*pipeline.PipelineDefinition, error) {
	if err := r.check(ctx, "GetPipeline"); err != nil {
		return nil, err
	}
	p, ok := r.data.pipelines[id]
	if !ok || p.DeletedAt != nil {
		return nil, nil
	}
	return &p, nil
}

func (r pipelines) InsertPipeline(ctx context.Context, p *pipeline.PipelineDefinition) error {
	if err := r.check(ctx, "InsertPipeline"); err != nil {
		return err
	}
	if _, ok := r.data.pipelines[p.ID]; ok {
		return fmt.Errorf("%w: pipeline %s", ErrUnique, p.ID)
	}
	now := r.now()
	p.CreatedAt, p.UpdatedAt = now, now
	stored := *p
	stored.Templates = nil
	r.data.pipelines[p.ID] = stored
	return nil
}

func (r pipelines) UpdatePipeline(ctx context.Context, p *pipeline.PipelineDefinition) error {
	if err := r.check(ctx, "UpdatePipeline"); err != nil {
		return err
	}
	cur, ok := r.data.pipelines[p.ID]
	if !ok {
		return fmt.Errorf("pipeline %s does not exist", p.ID)
	}
	cur.Name = p.Name
	cur.Metadata = p.Metadata
	cur.UpdatedAt = r.now()
	r.data.pipelines[p.ID] = cur
	p.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r pipelines) DeletePipeline(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.check(ctx, "DeletePipeline"); err != nil {
		return 0, err
	}
	if _, ok := r.data.pipelines[id]; !ok {
		return 0, nil
	}
	for _, t := range r.data.templates {
		if t.PipelineID == id {
			return 0, fkError("stage template %s references pipeline %s", t.ID, id)
		}
	}
	for _, j := range r.data.jobs {
		if j.PipelineID == id {
			return 0, fkError("job %s references pipeline %s", j.ID, id)
		}
	}
	delete(r.data.pipelines, id)
	return 1, nil
}

// ---------------------------------------------------------------------------
// stage_templates

type templates struct{ *memTx }

func (r templates) ListTemplates(ctx context.Context, pipelineID uuid.UUID) ([]pipeline.StageTemplate, error) {
	if err := r.check(ctx, "ListTemplates"); err != nil {
		return nil, err
	}
	var out []pipeline.StageTemplate
	for _, t := range r.data.templates {
		if t.PipelineID == pipelineID && t.DeletedAt == nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r templates) FirstTemplate(ctx context.Context, pipelineID uuid.UUID) (*pipeline.StageTemplate, error) {
	list, err := r.ListTemplates(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (r templates) GetTemplate(ctx context.Context, id uuid.UUID) (*pipeline.StageTemplate, error) {
	if err := r.check(ctx, "GetTemplate"); err != nil {
		return nil, err
	}
	t, ok := r.data.templates[id]
	if !ok || t.DeletedAt != nil {
		return nil, nil
	}
	return &t, nil
}

func (r templates) InsertTemplate(ctx context.Context, t *pipeline.StageTemplate) error {
	if err := r.check(ctx, "InsertTemplate"); err != nil {
		return err
	}
	if _, ok := r.data.templates[t.ID]; ok {
		return fmt.Errorf("%w: stage template %s", ErrUnique, t.ID)
	}
	if _, ok := r.data.pipelines[t.PipelineID]; !ok {
		return fkError("pipeline %s does not exist", t.PipelineID)
	}
	now := r.now()
	t.CreatedAt, t.UpdatedAt = now, now
	r.data.templates[t.ID] = *t
	return nil
}

func (r templates) UpdateTemplate(ctx context.Context, t *pipeline.StageTemplate) error {
	if err := r.check(ctx, "UpdateTemplate"); err != nil {
		return err
	}
	cur, ok := r.data.templates[t.ID]
	if !ok {
		return fmt.Errorf("stage template %s does not exist", t.ID)
	}
	cur.Order = t.Order
	cur.Name = t.Name
	cur.UpdatedAt = r.now()
	r.data.templates[t.ID] = cur
	t.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r templates) DeleteTemplates(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if err := r.check(ctx, "DeleteTemplates"); err != nil {
		return 0, err
	}
	wanted := idSet(ids)
	return r.deleteWhere(func(t pipeline.StageTemplate) bool {
		_, ok := wanted[t.ID]
		return ok
	})
}

func (r templates) DeleteTemplatesByPipeline(ctx context.Context, pipelineID uuid.UUID) (int64, error) {
	if err := r.check(ctx, "DeleteTemplatesByPipeline"); err != nil {
		return 0, err
	}
	return r.deleteWhere(func(t pipeline.StageTemplate) bool {
		return t.PipelineID == pipelineID
	})
}

func (r templates) deleteWhere(match func(pipeline.StageTemplate) bool) (int64, error) {
	var victims []uuid.UUID
	for id, t := range r.data.templates {
		if match(t) {
			victims = append(victims, id)
		}
	}
	doomed := idSet(victims)
	for _, si := range r.data.instances {
		if _, ok := doomed[si.TemplateID]; ok {
			return 0, fkError("stage instance %s references stage template %s", si.ID, si.TemplateID)
		}
	}
	for _, id := range victims {
		delete(r.data.templates, id)
	}
	return int64(len(victims)), nil
}

// ---------------------------------------------------------------------------
// job_postings

type jobs struct{ *memTx }

func (r jobs) GetJob(ctx context.Context, id uuid.UUID) (*pipeline.JobPosting, error) {
	if err := r.check(ctx, "GetJob"); err != nil {
		return nil, err
	}
	j, ok := r.data.jobs[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

func (r jobs) InsertJob(ctx context.Context, j *pipeline.JobPosting) error {
	if err := r.check(ctx, "InsertJob"); err != nil {
		return err
	}
	if _, ok := r.data.jobs[j.ID]; ok {
		return fmt.Errorf("%w: job %s", ErrUnique, j.ID)
	}
	if _, ok := r.data.pipelines[j.PipelineID]; !ok {
		return fkError("pipeline %s does not exist", j.PipelineID)
	}
	now := r.now()
	j.CreatedAt, j.UpdatedAt = now, now
	r.data.jobs[j.ID] = *j
	return nil
}

func (r jobs) ListJobIDsByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]uuid.UUID, error) {
	if err := r.check(ctx, "ListJobIDsByPipeline"); err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for id, j := range r.data.jobs {
		if j.PipelineID == pipelineID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r jobs) DeleteJobs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if err := r.check(ctx, "DeleteJobs"); err != nil {
		return 0, err
	}
	doomed := idSet(ids)
	for _, c := range r.data.cands {
		if _, ok := doomed[c.JobID]; ok {
			return 0, fkError("candidate %s references job %s", c.ID, c.JobID)
		}
	}
	var n int64
	for id := range doomed {
		if _, ok := r.data.jobs[id]; ok {
			delete(r.data.jobs, id)
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// personas

type personas struct{ *memTx }

func (r personas) PersonaExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := r.check(ctx, "PersonaExists"); err != nil {
		return false, err
	}
	_, ok := r.data.personas[id]
	return ok, nil
}

// ---------------------------------------------------------------------------
// candidates

type candidates struct{ *memTx }

func (r candidates) GetCandidate(ctx context.Context, id uuid.UUID) (*pipeline.Candidate, error) {
	if err := r.check(ctx, "GetCandidate"); err != nil {
		return nil, err
	}
	c, ok := r.data.cands[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r candidates) InsertCandidate(ctx context.Context, c *pipeline.Candidate) error {
	if err := r.check(ctx, "InsertCandidate"); err != nil {
		return err
	}
	if _, ok := r.data.cands[c.ID]; ok {
		return fmt.Errorf("%w: candidate %s", ErrUnique, c.ID)
	}
	if _, ok := r.data.jobs[c.JobID]; !ok {
		return fkError("job %s does not exist", c.JobID)
	}
	if _, ok := r.data.personas[c.PersonaID]; !ok {
		return fkError("persona %s does not exist", c.PersonaID)
	}
	if c.CVID != nil {
		if _, ok := r.data.cvs[*c.CVID]; !ok {
			return fkError("cv %s does not exist", *c.CVID)
		}
		for _, other := range r.data.cands {
			if other.CVID != nil && *other.CVID == *c.CVID {
				return fmt.Errorf("%w: cv %s is already attached to candidate %s", ErrUnique, *c.CVID, other.ID)
			}
		}
	}
	if c.CurrentStageID != nil {
		return fkError("stage instance %s does not exist", *c.CurrentStageID)
	}
	now := r.now()
	c.CreatedAt, c.UpdatedAt = now, now
	c.Version = 1
	stored := *c
	stored.CurrentStage, stored.Stages = nil, nil
	r.data.cands[c.ID] = stored
	return nil
}

func (r candidates) ListCandidatesByJobs(ctx context.Context, jobIDs []uuid.UUID) ([]pipeline.Candidate, error) {
	if err := r.check(ctx, "ListCandidatesByJobs"); err != nil {
		return nil, err
	}
	wanted := idSet(jobIDs)
	var out []pipeline.Candidate
	for _, c := range r.data.cands {
		if _, ok := wanted[c.JobID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r candidates) FindCandidateByCV(ctx context.Context, cvID uuid.UUID) (*pipeline.Candidate, error) {
	if err := r.check(ctx, "FindCandidateByCV"); err != nil {
		return nil, err
	}
	for _, c := range r.data.cands {
		if c.CVID != nil && *c.CVID == cvID {
			return &c, nil
		}
	}
	return nil, nil
}

func (r candidates) SetCurrentStage(ctx context.Context, id uuid.UUID, stageID *uuid.UUID, expectedVersion int64) (bool, error) {
	if err := r.check(ctx, "SetCurrentStage"); err != nil {
		return false, err
	}
	c, ok := r.data.cands[id]
	if !ok || c.Version != expectedVersion {
		return false, nil
	}
	if stageID != nil {
		si, ok := r.data.instances[*stageID]
		if !ok {
			return false, fkError("stage instance %s does not exist", *stageID)
		}
		if si.CandidateID != id {
			return false, fkError("stage instance %s belongs to candidate %s", si.ID, si.CandidateID)
		}
		stage := *stageID
		c.CurrentStageID = &stage
	} else {
		c.CurrentStageID = nil
	}
	c.Version++
	c.UpdatedAt = r.now()
	r.data.cands[id] = c
	return true, nil
}

func (r candidates) DetachCandidates(ctx context.Context, ids []uuid.UUID) error {
	if err := r.check(ctx, "DetachCandidates"); err != nil {
		return err
	}
	now := r.now()
	for _, id := range ids {
		c, ok := r.data.cands[id]
		if !ok {
			continue
		}
		c.CurrentStageID = nil
		c.CVID = nil
		c.Version++
		c.UpdatedAt = now
		r.data.cands[id] = c
	}
	return nil
}

func (r candidates) DeleteCandidates(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if err := r.check(ctx, "DeleteCandidates"); err != nil {
		return 0, err
	}
	doomed := idSet(ids)
	for _, si := range r.data.instances {
		if _, ok := doomed[si.CandidateID]; ok {
			return 0, fkError("stage instance %s references candidate %s", si.ID, si.CandidateID)
		}
	}
	var n int64
	for id := range doomed {
		if _, ok := r.data.cands[id]; ok {
			delete(r.data.cands, id)
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// stage_instances

type instances struct{ *memTx }

func (r instances) GetInstance(ctx context.Context, id uuid.UUID) (*pipeline.StageInstance, error) {
	if err := r.check(ctx, "GetInstance"); err != nil {
		return nil, err
	}
	si, ok := r.data.instances[id]
	if !ok {
		return nil, nil
	}
	return &si, nil
}

func (r instances) FindInstance(ctx context.Context, candidateID, templateID uuid.UUID) (*pipeline.StageInstance, error) {
	if err := r.check(ctx, "FindInstance"); err != nil {
		return nil, err
	}
	for _, si := range r.data.instances {
		if si.CandidateID == candidateID && si.TemplateID == templateID {
			return &si, nil
		}
	}
	return nil, nil
}

func (r instances) ListInstances(ctx context.Context, candidateID uuid.UUID) ([]pipeline.StageInstance, error) {
	if err := r.check(ctx, "ListInstances"); err != nil {
		return nil, err
	}
	var out []pipeline.StageInstance
	for _, si := range r.data.instances {
		if si.CandidateID == candidateID {
			out = append(out, si)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r instances) CountInstancesByTemplates(ctx context.Context, templateIDs []uuid.UUID) (int64, error) {
	if err := r.check(ctx, "CountInstancesByTemplates"); err != nil {
		return 0, err
	}
	wanted := idSet(templateIDs)
	var n int64
	for _, si := range r.data.instances {
		if _, ok := wanted[si.TemplateID]; ok {
			n++
		}
	}
	return n, nil
}

func (r instances) InsertInstance(ctx context.Context, si *pipeline.StageInstance) error {
	if err := r.check(ctx, "InsertInstance"); err != nil {
		return err
	}
	if _, ok := r.data.instances[si.ID]; ok {
		return fmt.Errorf("%w: stage instance %s", ErrUnique, si.ID)
	}
	t, ok := r.data.templates[si.TemplateID]
	if !ok {
		return fkError("stage template %s does not exist", si.TemplateID)
	}
	if t.PipelineID != si.PipelineID {
		return fkError("stage template %s is not part of pipeline %s", t.ID, si.PipelineID)
	}
	if _, ok := r.data.cands[si.CandidateID]; !ok {
		return fkError("candidate %s does not exist", si.CandidateID)
	}
	for _, other := range r.data.instances {
		if other.CandidateID == si.CandidateID && other.TemplateID == si.TemplateID {
			return fmt.Errorf("%w: candidate %s already has an instance of stage template %s",
				ErrUnique, si.CandidateID, si.TemplateID)
		}
	}
	now := r.now()
	si.CreatedAt, si.UpdatedAt = now, now
	r.data.instances[si.ID] = *si
	return nil
}

func (r instances) UpdateInstance(ctx context.Context, si *pipeline.StageInstance) error {
	if err := r.check(ctx, "UpdateInstance"); err != nil {
		return err
	}
	cur, ok := r.data.instances[si.ID]
	if !ok {
		return fmt.Errorf("stage instance %s does not exist", si.ID)
	}
	cur.Status = si.Status
	cur.Notes = si.Notes
	cur.Date = si.Date
	cur.Rating = si.Rating
	cur.UpdatedAt = r.now()
	r.data.instances[si.ID] = cur
	si.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r instances) DeleteInstancesByCandidates(ctx context.Context, candidateIDs []uuid.UUID) (int64, error) {
	if err := r.check(ctx, "DeleteInstancesByCandidates"); err != nil {
		return 0, err
	}
	owners := idSet(candidateIDs)
	return r.deleteWhere(func(si pipeline.StageInstance) bool {
		_, ok := owners[si.CandidateID]
		return ok
	})
}

func (r instances) DeleteInstancesByPipeline(ctx context.Context, pipelineID uuid.UUID) (int64, error) {
	if err := r.check(ctx, "DeleteInstancesByPipeline"); err != nil {
		return 0, err
	}
	return r.deleteWhere(func(si pipeline.StageInstance) bool {
		return si.PipelineID == pipelineID
	})
}

func (r instances) deleteWhere(match func(pipeline.StageInstance) bool) (int64, error) {
	var victims []uuid.UUID
	for id, si := range r.data.instances {
		if match(si) {
			victims = append(victims, id)
		}
	}
	doomed := idSet(victims)
	for _, c := range r.data.cands {
		if c.CurrentStageID == nil {
			continue
		}
		if _, ok := doomed[*c.CurrentStageID]; ok {
			return 0, fkError("candidate %s still points at stage instance %s", c.ID, *c.CurrentStageID)
		}
	}
	for _, id := range victims {
		delete(r.data.instances, id)
	}
	return int64(len(victims)), nil
}

// ---------------------------------------------------------------------------
// cv_documents, cv_chunks

type cvs struct{ *memTx }

func (r cvs) CVExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := r.check(ctx, "CVExists"); err != nil {
		return false, err
	}
	_, ok := r.data.cvs[id]
	return ok, nil
}

func (r cvs) DeleteCVs(ctx context.Context, ids []uuid.UUID) (int64, int64, error) {
	if err := r.check(ctx, "DeleteCVs"); err != nil {
		return 0, 0, err
	}
	doomed := idSet(ids)
	for _, c := range r.data.cands {
		if c.CVID == nil {
			continue
		}
		if _, ok := doomed[*c.CVID]; ok {
			return 0, 0, fkError("candidate %s still references cv %s", c.ID, *c.CVID)
		}
	}
	var docs, chunks int64
	for id := range doomed {
		cv, ok := r.data.cvs[id]
		if !ok {
			continue
		}
		docs++
		chunks += int64(cv.chunks)
		delete(r.data.cvs, id)
	}
	return docs, chunks, nil
}
