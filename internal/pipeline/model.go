// Package pipeline implements the recruitment pipeline engine: process
// definitions made of ordered stage templates, the initial stage binding of
// new candidates, forward-only stage transitions and the cascade deletion of
// jobs, pipelines and candidates.
package pipeline

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// StageStatus is the lifecycle status of a stage instance.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusCompleted StageStatus = "completed"
	StageStatusCancelled StageStatus = "cancelled"
)

// PipelineDefinition is a named, reusable sequence of hiring stages.
type PipelineDefinition struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	Templates []StageTemplate `json:"templates"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
}

// StageTemplate is one ordered step of a pipeline definition.
type StageTemplate struct {
	ID         uuid.UUID  `json:"id"`
	Order      int        `json:"order"`
	Name       string     `json:"name"`
	PipelineID uuid.UUID  `json:"pipeline_id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// JobStatusOpen is the status of a job accepting candidates.
const JobStatusOpen = "open"

// JobPosting is an opening candidates apply to. Every job runs exactly one
// pipeline definition.
type JobPosting struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	PipelineID uuid.UUID `json:"pipeline_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Candidate binds a persona to a job and tracks where they are in the job's
// pipeline. Version is bumped on every write of CurrentStageID.
type Candidate struct {
	ID             uuid.UUID       `json:"id"`
	PersonaID      uuid.UUID       `json:"persona_id"`
	JobID          uuid.UUID       `json:"job_id"`
	CurrentStageID *uuid.UUID      `json:"current_stage_id,omitempty"`
	CVID           *uuid.UUID      `json:"cv_id,omitempty"`
	Rating         json.RawMessage `json:"rating,omitempty"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	CurrentStage *StageInstance  `json:"current_stage,omitempty"`
	Stages       []StageInstance `json:"stages,omitempty"`
}

// StageInstance records a candidate having reached a stage template.
type StageInstance struct {
	ID          uuid.UUID   `json:"id"`
	Status      StageStatus `json:"status"`
	Notes       *string     `json:"notes,omitempty"`
	Date        *time.Time  `json:"date,omitempty"`
	Rating      *int        `json:"rating,omitempty"`
	TemplateID  uuid.UUID   `json:"template_id"`
	PipelineID  uuid.UUID   `json:"pipeline_id"`
	CandidateID uuid.UUID   `json:"candidate_id"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// StageInstanceUpdate carries the editable fields of a stage instance. Nil
// fields are left untouched.
type StageInstanceUpdate struct {
	Status *StageStatus
	Notes  *string
	Date   *time.Time
	Rating *int
}

// DeletionReport counts the rows removed by a cascade.
type DeletionReport struct {
	Pipelines      int64 `json:"pipelines"`
	StageTemplates int64 `json:"stage_templates"`
	Jobs           int64 `json:"jobs"`
	Candidates     int64 `json:"candidates"`
	StageInstances int64 `json:"stage_instances"`
	CVs            int64 `json:"cvs"`
	CVChunks       int64 `json:"cv_chunks"`
}

// SortTemplates orders templates ascending by Order.
func SortTemplates(templates []StageTemplate) {
	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].Order < templates[j].Order
	})
}
