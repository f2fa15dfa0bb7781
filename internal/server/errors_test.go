package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/hiring-pipeline/internal/pipeline"
	"github.com/jonathan/hiring-pipeline/internal/schemas"
	"github.com/jonathan/hiring-pipeline/internal/types"
)

func TestHTTPStatus(t *testing.T) {
	id := uuid.New()
	order := 3
	validationErr := (&types.AdvanceStageRequest{}).Validate()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &pipeline.NotFoundError{Entity: "job", ID: id}, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("failed to load: %w", &pipeline.NotFoundError{Entity: "job", ID: id}), http.StatusNotFound},
		{"configuration", &pipeline.ConfigurationError{PipelineID: id, Message: "pipeline has no stages"}, http.StatusUnprocessableEntity},
		{"cross pipeline", &pipeline.CrossPipelineError{TemplateID: id}, http.StatusUnprocessableEntity},
		{"invalid transition", &pipeline.InvalidTransitionError{CandidateID: id, CurrentOrder: &order, TargetOrder: 1}, http.StatusConflict},
		{"conflict", &pipeline.ConflictError{Entity: "candidate", ID: id}, http.StatusConflict},
		{"constraint", &pipeline.ConstraintError{Field: "templates[1].order"}, http.StatusBadRequest},
		{"request validation", &ErrValidation{Field: "id"}, http.StatusBadRequest},
		{"schema validation", &schemas.ValidationError{Errors: []schemas.FieldError{{Field: "name"}}}, http.StatusBadRequest},
		{"validator tags", validationErr, http.StatusBadRequest},
		{"deletion of missing root", &pipeline.DeletionError{Entity: "job", ID: id, Cause: &pipeline.NotFoundError{Entity: "job", ID: id}}, http.StatusNotFound},
		{"deletion storage failure", &pipeline.DeletionError{Entity: "job", ID: id, Cause: errors.New("connection reset")}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestDescribe_HidesInternalErrors(t *testing.T) {
	body := describe(errors.New("pq: password authentication failed"))

	assert.Equal(t, "internal_error", body.Error)
	assert.NotContains(t, body.Message, "password")
}
