// Package api defines the public API endpoints for the factsync daemon.
package api

// API version
const Version = "0.1.0"

// API endpoints
const (
	EndpointSync     = "/api/v1/sync"
	EndpointSyncJobs = "/api/v1/sync/jobs/"
	EndpointHistory  = "/api/v1/sync/history"
	EndpointHealth   = "/health"
)

// HTTP headers
const (
	HeaderContentType = "Content-Type"
	HeaderRequestID   = "X-Request-ID"
)

// Content types
const (
	ContentTypeJSON = "application/json"
)
