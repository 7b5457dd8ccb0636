// Package server exposes the sync engine over HTTP: job submission, job
// status, and durable run history. The boundary never blocks on a sync;
// submissions return a job handle immediately and callers poll.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/tmslabs/factsync/internal/errors"
	"github.com/tmslabs/factsync/internal/facts"
	"github.com/tmslabs/factsync/internal/jobs"
	"github.com/tmslabs/factsync/internal/storage"
	"github.com/tmslabs/factsync/pkg/api"
	"github.com/tmslabs/factsync/pkg/models"
)

// Server handles the factsync HTTP API.
type Server struct {
	runner  *jobs.Runner
	audit   *storage.SyncLog
	version string
	mux     *http.ServeMux
}

// New creates the HTTP server.
func New(runner *jobs.Runner, audit *storage.SyncLog, version string) *Server {
	s := &Server{
		runner:  runner,
		audit:   audit,
		version: version,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc(api.EndpointSync, s.handleSubmit)
	s.mux.HandleFunc(api.EndpointSyncJobs, s.handleJob)
	s.mux.HandleFunc(api.EndpointHistory, s.handleHistory)
	s.mux.HandleFunc(api.EndpointHealth, s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	jobID, err := s.runner.Submit(req.SyncType, req.DateFrom, req.DateTo)
	if err != nil {
		writeSyncError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, models.SyncResponse{JobID: jobID})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, api.EndpointSyncJobs)
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "job id required")
		return
	}

	job, err := s.runner.Get(id)
	if err != nil {
		writeSyncError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.JobResponse{
		JobID:      job.ID,
		SyncType:   job.SyncType,
		DateFrom:   job.DateFrom,
		DateTo:     job.DateTo,
		Status:     string(job.State),
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
		Error:      job.Error,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	syncType := r.URL.Query().Get("sync_type")
	if syncType != "" {
		if _, err := facts.ParseType(syncType); err != nil {
			writeSyncError(w, err)
			return
		}
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.audit.History(r.Context(), syncType, limit)
	if err != nil {
		writeSyncError(w, err)
		return
	}
	summary, err := s.audit.Summarize(r.Context(), syncType)
	if err != nil {
		writeSyncError(w, err)
		return
	}

	resp := models.HistoryResponse{
		Records:      make([]models.HistoryRecord, 0, len(records)),
		Total:        summary.Total,
		Successful:   summary.Successful,
		Failed:       summary.Failed,
		LastSyncTime: summary.LastSyncTime,
	}
	for _, rec := range records {
		resp.Records = append(resp.Records, models.HistoryRecord{
			SyncType:         rec.SyncType,
			StartTime:        rec.StartTime,
			EndTime:          rec.EndTime,
			Status:           rec.Status,
			RecordsProcessed: rec.RecordsProcessed,
			ErrorMessage:     rec.ErrorMessage,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok", Version: s.version})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set(api.HeaderContentType, api.ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

// writeSyncError maps the error taxonomy onto HTTP status codes.
func writeSyncError(w http.ResponseWriter, err error) {
	switch err.(type) {
	case *errors.ErrInvalidRequest:
		writeError(w, http.StatusBadRequest, err.Error())
	case *errors.ErrJobNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
