package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/hiring-pipeline/internal/pipeline"
)

// CreateCandidateRequest creates a candidate for a job
type CreateCandidateRequest struct {
	PersonaID uuid.UUID  `json:"persona_id" validate:"required"`
	CVID      *uuid.UUID `json:"cv_id,omitempty"`
}

// Validate validates the CreateCandidateRequest using the validator.
func (r *CreateCandidateRequest) Validate() error {
	return validate.Struct(r)
}

// AdvanceStageRequest moves a candidate to another stage template
type AdvanceStageRequest struct {
	TemplateID uuid.UUID `json:"template_id" validate:"required"`
}

// Validate validates the AdvanceStageRequest using the validator.
func (r *AdvanceStageRequest) Validate() error {
	return validate.Struct(r)
}

// UpdateStageInstanceRequest edits a stage instance. Omitted fields are left
// unchanged.
type UpdateStageInstanceRequest struct {
	Status *string    `json:"status,omitempty" validate:"omitempty,oneof=pending completed cancelled"`
	Notes  *string    `json:"notes,omitempty" validate:"omitempty,max=10000"`
	Date   *time.Time `json:"date,omitempty"`
	Rating *int       `json:"rating,omitempty" validate:"omitempty,min=0,max=5"`
}

// Validate validates the UpdateStageInstanceRequest using the validator.
func (r *UpdateStageInstanceRequest) Validate() error {
	return validate.Struct(r)
}

// ToUpdate converts the request into a stage instance update
func (r *UpdateStageInstanceRequest) ToUpdate() pipeline.StageInstanceUpdate {
	u := pipeline.StageInstanceUpdate{
		Notes:  r.Notes,
		Date:   r.Date,
		Rating: r.Rating,
	}
	if r.Status != nil {
		s := pipeline.StageStatus(*r.Status)
		u.Status = &s
	}
	return u
}
