// Package models provides shared data models for the factsync public API.
package models

import (
	"time"
)

// SyncRequest is the API request for submitting a sync.
type SyncRequest struct {
	SyncType string `json:"sync_type"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

// SyncResponse is the API response for a submitted sync.
type SyncResponse struct {
	JobID string `json:"job_id"`
}

// JobResponse is the API response for a job status query.
type JobResponse struct {
	JobID      string     `json:"job_id"`
	SyncType   string     `json:"sync_type"`
	DateFrom   string     `json:"date_from,omitempty"`
	DateTo     string     `json:"date_to,omitempty"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// HistoryRecord is one audit record in a history response.
type HistoryRecord struct {
	SyncType         string     `json:"sync_type"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	Status           string     `json:"status"`
	RecordsProcessed int        `json:"records_processed"`
	ErrorMessage     string     `json:"error_message,omitempty"`
}

// HistoryResponse is the API response for a sync history query.
type HistoryResponse struct {
	Records      []HistoryRecord `json:"records"`
	Total        int             `json:"total"`
	Successful   int             `json:"successful"`
	Failed       int             `json:"failed"`
	LastSyncTime *time.Time      `json:"last_sync_time,omitempty"`
}

// ErrorResponse is the API response for a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the API response for the liveness endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
