package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/livinlefevreloca/hookdeploy/internal/jobs"
	"github.com/livinlefevreloca/hookdeploy/internal/router"
)

type webhookResponse struct {
	Status    string `json:"status"`
	JobID     string `json:"job_id"`
	JobStatus string `json:"job_status"`
}

type statusResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
}

// handleWebhook records the event and returns before any pipeline runs
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(body, &object); err != nil || object == nil {
		s.writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	eventType := r.Header.Get(s.config.EventHeader)

	rec, err := s.events.Handle(r.Context(), eventType, json.RawMessage(body))
	if err != nil {
		if !errors.Is(err, router.ErrMalformedEvent) {
			s.logger.Error("failed to handle webhook", "event_type", eventType, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to record event")
			return
		}
		s.logger.Warn("malformed webhook", "job_id", rec.ID, "event_type", eventType, "error", err)
	}

	s.writeJSON(w, http.StatusOK, webhookResponse{
		Status:    "ok",
		JobID:     rec.ID,
		JobStatus: rec.Status.String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, mux.Vars(r)["jobId"])
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{JobID: rec.ID, Status: rec.Status.String()})
}

func (s *Server) handleGetProcess(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, mux.Vars(r)["jobId"])
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListProcesses(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List()
	if err != nil {
		s.logger.Error("failed to list jobs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

// lookup fetches a record, writing the error response itself on failure
func (s *Server) lookup(w http.ResponseWriter, id string) (jobs.Record, bool) {
	rec, err := s.store.Get(id)
	if jobs.IsNotFound(err) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return jobs.Record{}, false
	}
	if err != nil {
		s.logger.Error("failed to get job", "job_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return jobs.Record{}, false
	}
	return rec, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}
