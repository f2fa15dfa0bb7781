package server

import (
	"net/http"

	"github.com/jonathan/hiring-pipeline/internal/types"
)

// handleGetCandidate handles GET /candidates/{id}
func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "candidate")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	c, err := s.svc.GetCandidate(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, c)
}

// handleAdvanceStage handles POST /candidates/{id}/advance
func (s *Server) handleAdvanceStage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "candidate")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	var req types.AdvanceStageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	c, err := s.svc.AdvanceStage(r.Context(), id, req.TemplateID)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, c)
}

// handleUpdateStageInstance handles PATCH /candidates/{id}/stages/{instance_id}
func (s *Server) handleUpdateStageInstance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "candidate")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	instanceID, err := pathID(r, "instance_id", "stage instance")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	var req types.UpdateStageInstanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	si, err := s.svc.UpdateStageInstance(r.Context(), id, instanceID, req.ToUpdate())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, si)
}

// handleDeleteCandidate handles DELETE /candidates/{id}
func (s *Server) handleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "candidate")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	report, err := s.svc.DeleteCandidate(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.DeletionResponse{Deleted: report})
}
