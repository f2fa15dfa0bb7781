// Package types provides the request and response shapes of the hiring
// pipeline HTTP API.
package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/hiring-pipeline/internal/pipeline"
)

var validate = validator.New()

// StageTemplateInput is one stage of a submitted pipeline definition.
// Templates without an ID are created.
type StageTemplateInput struct {
	ID    *uuid.UUID `json:"id,omitempty"`
	Order int        `json:"order" validate:"gte=0"`
	Name  string     `json:"name" validate:"required,min=1,max=200"`
}

// UpsertPipelineRequest creates or replaces a pipeline definition
type UpsertPipelineRequest struct {
	Name      string               `json:"name" validate:"required,min=1,max=200"`
	Metadata  map[string]any       `json:"metadata,omitempty"`
	Templates []StageTemplateInput `json:"templates" validate:"dive"`
}

// Validate validates the UpsertPipelineRequest using the validator.
func (r *UpsertPipelineRequest) Validate() error {
	return validate.Struct(r)
}

// ToDefinition converts the request into the definition and template list
// expected by the pipeline service. id is uuid.Nil for creates.
func (r *UpsertPipelineRequest) ToDefinition(id uuid.UUID) (pipeline.PipelineDefinition, []pipeline.StageTemplate) {
	def := pipeline.PipelineDefinition{
		ID:       id,
		Name:     r.Name,
		Metadata: r.Metadata,
	}

	templates := make([]pipeline.StageTemplate, 0, len(r.Templates))
	for _, t := range r.Templates {
		tpl := pipeline.StageTemplate{Order: t.Order, Name: t.Name}
		if t.ID != nil {
			tpl.ID = *t.ID
		}
		templates = append(templates, tpl)
	}
	return def, templates
}

// CreateJobRequest creates a job posting bound to a pipeline
type CreateJobRequest struct {
	Title      string    `json:"title" validate:"required,min=1,max=300"`
	Status     string    `json:"status,omitempty" validate:"omitempty,oneof=draft open closed"`
	PipelineID uuid.UUID `json:"pipeline_id" validate:"required"`
}

// Validate validates the CreateJobRequest using the validator.
func (r *CreateJobRequest) Validate() error {
	return validate.Struct(r)
}

// ToJob converts the request into a job posting
func (r *CreateJobRequest) ToJob() pipeline.JobPosting {
	return pipeline.JobPosting{
		Title:      r.Title,
		Status:     r.Status,
		PipelineID: r.PipelineID,
	}
}

// DeletionResponse reports what a cascade removed
type DeletionResponse struct {
	Deleted pipeline.DeletionReport `json:"deleted"`
}
