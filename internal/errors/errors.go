// Package errors provides explicit, human-readable error types for factsync.
// Every error carries a Reason and, where useful, a Suggestion so operators
// can act on a failed sync without reading source code.
package errors

import (
	stderrors "errors"
	"fmt"
)

// SyncError is the base error type for all factsync errors.
type SyncError struct {
	Code       ErrorCode
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

// ErrorCode represents the category of error for exit code mapping.
type ErrorCode int

const (
	CodeValidation ErrorCode = 1
	CodeConfig     ErrorCode = 2
	CodeDatabase   ErrorCode = 3
	CodeInternal   ErrorCode = 4
)

func (e *SyncError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, e.Reason)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, e.Suggestion)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// ErrCode returns the error's category code. Promoted onto every typed
// error in this package.
func (e *SyncError) ErrCode() ErrorCode {
	return e.Code
}

// CodeOf maps any error onto an ErrorCode for exit code handling.
// Unrecognized errors are internal.
func CodeOf(err error) ErrorCode {
	var coded interface{ ErrCode() ErrorCode }
	if stderrors.As(err, &coded) {
		return coded.ErrCode()
	}
	return CodeInternal
}

// ErrConfiguration is returned when required connection parameters are
// missing or unusable. Fatal at startup, never during a run.
type ErrConfiguration struct {
	SyncError
	Field string
}

// NewConfiguration creates a new ErrConfiguration.
func NewConfiguration(field, reason string) *ErrConfiguration {
	return &ErrConfiguration{
		SyncError: SyncError{
			Code:       CodeConfig,
			Message:    "invalid configuration",
			Reason:     fmt.Sprintf("field '%s': %s", field, reason),
			Suggestion: "check the config file and FACTSYNC_* environment variables",
		},
		Field: field,
	}
}

// ErrConnection is returned when a database endpoint cannot be reached.
// Surfaced as a sync failure; never retried automatically.
type ErrConnection struct {
	SyncError
	Endpoint string
}

// NewConnection creates a new ErrConnection.
func NewConnection(endpoint string, cause error) *ErrConnection {
	return &ErrConnection{
		SyncError: SyncError{
			Code:       CodeDatabase,
			Message:    fmt.Sprintf("cannot connect to %s database", endpoint),
			Reason:     "the endpoint is unreachable or refused the connection",
			Suggestion: "verify host, port, and credentials; resubmit the sync once the endpoint is healthy",
			Cause:      cause,
		},
		Endpoint: endpoint,
	}
}

// ErrQuery is returned when an extraction or audit query fails, including
// schema drift on the source side.
type ErrQuery struct {
	SyncError
	Operation string
}

// NewQuery creates a new ErrQuery.
func NewQuery(operation string, cause error) *ErrQuery {
	return &ErrQuery{
		SyncError: SyncError{
			Code:    CodeDatabase,
			Message: fmt.Sprintf("%s query failed", operation),
			Reason:  "the statement was rejected by the database",
			Cause:   cause,
		},
		Operation: operation,
	}
}

// ErrMerge is returned when the staged-to-target merge fails, e.g. a column
// type mismatch introduced by an evolved source schema. The staging table is
// always dropped before this error propagates.
type ErrMerge struct {
	SyncError
	Table string
}

// NewMerge creates a new ErrMerge.
func NewMerge(table string, cause error) *ErrMerge {
	return &ErrMerge{
		SyncError: SyncError{
			Code:       CodeDatabase,
			Message:    fmt.Sprintf("merge into %s failed", table),
			Reason:     "staged rows could not be applied to the target table",
			Suggestion: "compare the fact schema against the deployed target table",
			Cause:      cause,
		},
		Table: table,
	}
}

// ErrInvalidRequest is returned when a sync submission is malformed.
// Rejected synchronously, before any job is created.
type ErrInvalidRequest struct {
	SyncError
	Field string
}

// NewInvalidRequest creates a new ErrInvalidRequest.
func NewInvalidRequest(field, reason string) *ErrInvalidRequest {
	return &ErrInvalidRequest{
		SyncError: SyncError{
			Code:       CodeValidation,
			Message:    "invalid sync request",
			Reason:     fmt.Sprintf("field '%s': %s", field, reason),
			Suggestion: "sync_type must be fact_order, fact_delivery, or both; dates use YYYY-MM-DD",
		},
		Field: field,
	}
}

// ErrJobNotFound is returned when a job id is unknown to this process.
type ErrJobNotFound struct {
	SyncError
	JobID string
}

// NewJobNotFound creates a new ErrJobNotFound.
func NewJobNotFound(jobID string) *ErrJobNotFound {
	return &ErrJobNotFound{
		SyncError: SyncError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("job not found: %s", jobID),
			Reason:     "job records live in process memory and do not survive a restart",
			Suggestion: "query sync history for the durable audit record",
		},
		JobID: jobID,
	}
}
