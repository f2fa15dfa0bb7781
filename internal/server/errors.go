// Package server provides the HTTP REST API for the hiring pipeline engine.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/hiring-pipeline/internal/pipeline"
	"github.com/jonathan/hiring-pipeline/internal/schemas"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error. A
// DeletionError maps to the status of its cause.
func HTTPStatus(err error) int {
	var (
		notFound    *pipeline.NotFoundError
		configErr   *pipeline.ConfigurationError
		constraint  *pipeline.ConstraintError
		crossPipe   *pipeline.CrossPipelineError
		transition  *pipeline.InvalidTransitionError
		conflict    *pipeline.ConflictError
		reqInvalid  *ErrValidation
		schemaErr   *schemas.ValidationError
		fieldErrors validator.ValidationErrors
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &configErr), errors.As(err, &crossPipe):
		return http.StatusUnprocessableEntity
	case errors.As(err, &transition), errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &constraint), errors.As(err, &reqInvalid),
		errors.As(err, &schemaErr), errors.As(err, &fieldErrors):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON body of every error response.
type errorBody struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Fields  []fieldIssue `json:"fields,omitempty"`
}

type fieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// describe turns an error into a client-facing body. Internal errors are
// not echoed back.
func describe(err error) errorBody {
	var (
		notFound    *pipeline.NotFoundError
		configErr   *pipeline.ConfigurationError
		constraint  *pipeline.ConstraintError
		crossPipe   *pipeline.CrossPipelineError
		transition  *pipeline.InvalidTransitionError
		conflict    *pipeline.ConflictError
		reqInvalid  *ErrValidation
		schemaErr   *schemas.ValidationError
		fieldErrors validator.ValidationErrors
	)

	switch {
	case errors.As(err, &notFound):
		return errorBody{Error: "not_found", Message: fmt.Sprintf("%s %s does not exist", notFound.Entity, notFound.ID)}
	case errors.As(err, &configErr):
		return errorBody{Error: "pipeline_misconfigured", Message: "this pipeline has no stages configured"}
	case errors.As(err, &crossPipe):
		return errorBody{Error: "cross_pipeline", Message: "the stage belongs to a different hiring process than this job"}
	case errors.As(err, &transition):
		return errorBody{Error: "invalid_transition", Message: "cannot move a candidate backward in the process"}
	case errors.As(err, &conflict):
		return errorBody{Error: "conflict", Message: "the record was changed by another request, retry with fresh data"}
	case errors.As(err, &constraint):
		return errorBody{
			Error:   "constraint_violation",
			Message: constraint.Message,
			Fields:  []fieldIssue{{Field: constraint.Field, Message: constraint.Message}},
		}
	case errors.As(err, &reqInvalid):
		return errorBody{
			Error:   "invalid_request",
			Message: reqInvalid.Message,
			Fields:  []fieldIssue{{Field: reqInvalid.Field, Message: reqInvalid.Message}},
		}
	case errors.As(err, &schemaErr):
		body := errorBody{Error: "invalid_request", Message: "request body does not match the expected shape"}
		for _, fe := range schemaErr.Errors {
			body.Fields = append(body.Fields, fieldIssue{Field: fe.Field, Message: fe.Message})
		}
		return body
	case errors.As(err, &fieldErrors):
		body := errorBody{Error: "invalid_request", Message: "request validation failed"}
		for _, fe := range fieldErrors {
			body.Fields = append(body.Fields, fieldIssue{
				Field:   fe.Namespace(),
				Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
			})
		}
		return body
	default:
		return errorBody{Error: "internal_error", Message: "an internal error occurred"}
	}
}
