package server

import (
	"net/http"

	"github.com/jonathan/hiring-pipeline/internal/types"
)

// handleCreateJob handles POST /jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req types.CreateJobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	job, err := s.svc.CreateJob(r.Context(), req.ToJob())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, job)
}

// handleDeleteJob handles DELETE /jobs/{id}
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "job")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	report, err := s.svc.DeleteJob(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.DeletionResponse{Deleted: report})
}

// handleCreateCandidate handles POST /jobs/{id}/candidates
func (s *Server) handleCreateCandidate(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r, "id", "job")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	var req types.CreateCandidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	c, err := s.svc.CreateCandidate(r.Context(), jobID, req.PersonaID, req.CVID)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, c)
}
