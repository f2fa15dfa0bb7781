package pipeline

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// NotFoundError indicates a referenced entity does not exist
type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// ConfigurationError indicates a pipeline that cannot be used as configured,
// e.g. one with no stages. It is a setup problem, not a transient one.
type ConfigurationError struct {
	PipelineID uuid.UUID
	Message    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("pipeline %s misconfigured: %s", e.PipelineID, e.Message)
}

// ConstraintError indicates a submitted template set violates a pipeline
// invariant, such as two templates sharing an order
type ConstraintError struct {
	Field   string
	Message string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violated: %s - %s", e.Field, e.Message)
}

// CrossPipelineError indicates a stage template that belongs to a different
// pipeline than the one being operated on
type CrossPipelineError struct {
	TemplateID       uuid.UUID
	TemplatePipeline uuid.UUID
	ExpectedPipeline uuid.UUID
}

func (e *CrossPipelineError) Error() string {
	return fmt.Sprintf("stage template %s belongs to pipeline %s, not %s",
		e.TemplateID, e.TemplatePipeline, e.ExpectedPipeline)
}

// InvalidTransitionError indicates an attempt to move a candidate to a stage
// that is not strictly after their current one
type InvalidTransitionError struct {
	CandidateID  uuid.UUID
	CurrentOrder *int
	TargetOrder  int
}

func (e *InvalidTransitionError) Error() string {
	if e.CurrentOrder == nil {
		return fmt.Sprintf("invalid transition for candidate %s to order %d", e.CandidateID, e.TargetOrder)
	}
	return fmt.Sprintf("invalid transition for candidate %s: order %d is not after current order %d",
		e.CandidateID, e.TargetOrder, *e.CurrentOrder)
}

// ConflictError indicates a concurrent write won the race for the same row.
// The operation can be retried with fresh reads.
type ConflictError struct {
	Entity string
	ID     uuid.UUID
	Cause  error
}

func (e *ConflictError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("concurrent update of %s %s: %v", e.Entity, e.ID, e.Cause)
	}
	return fmt.Sprintf("concurrent update of %s %s", e.Entity, e.ID)
}

func (e *ConflictError) Unwrap() error {
	return e.Cause
}

// DeletionError indicates a cascade step failed and the whole cascade was
// rolled back
type DeletionError struct {
	Entity string
	ID     uuid.UUID
	Cause  error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("failed to delete %s %s: %v", e.Entity, e.ID, e.Cause)
}

func (e *DeletionError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether err is worth retrying with a fresh transaction.
func IsRetryable(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
