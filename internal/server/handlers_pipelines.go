package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/hiring-pipeline/internal/schemas"
	"github.com/jonathan/hiring-pipeline/internal/types"
)

// handleCreatePipeline handles POST /pipelines
func (s *Server) handleCreatePipeline(w http.ResponseWriter, r *http.Request) {
	s.upsertPipeline(w, r, uuid.Nil, http.StatusCreated)
}

// handleUpdatePipeline handles PUT /pipelines/{id}
func (s *Server) handleUpdatePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "pipeline")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.upsertPipeline(w, r, id, http.StatusOK)
}

func (s *Server) upsertPipeline(w http.ResponseWriter, r *http.Request, id uuid.UUID, status int) {
	body, err := readBody(w, r)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := schemas.ValidatePipelineDefinition(body); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	var req types.UpsertPipelineRequest
	if err := unmarshalStrict(body, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	def, templates := req.ToDefinition(id)
	result, err := s.svc.UpsertPipeline(r.Context(), def, templates)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, status, result)
}

// handleGetPipeline handles GET /pipelines/{id}
func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "pipeline")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	p, err := s.svc.GetPipeline(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

// handleDeletePipeline handles DELETE /pipelines/{id}
func (s *Server) handleDeletePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "pipeline")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	report, err := s.svc.DeletePipeline(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.DeletionResponse{Deleted: report})
}
