// Package jobs tracks asynchronous sync submissions.
//
// A job is an in-memory convenience handle, distinct from the durable
// audit record: it lives for the process lifetime and is lost on restart.
// Entries are never evicted; volume is low enough that unbounded growth is
// an accepted tradeoff, documented here.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/tmslabs/factsync/internal/errors"
	"github.com/tmslabs/factsync/internal/facts"
	"github.com/tmslabs/factsync/internal/orchestrator"
)

// State is a job lifecycle state.
type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// Job is one submitted sync request. Callers receive copies; the runner
// owns the stored record.
type Job struct {
	ID          string     `json:"job_id"`
	SyncType    string     `json:"sync_type"`
	DateFrom    string     `json:"date_from,omitempty"`
	DateTo      string     `json:"date_to,omitempty"`
	State       State      `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Syncer runs one sync request to completion. Satisfied by
// orchestrator.Orchestrator.
type Syncer interface {
	Run(ctx context.Context, req orchestrator.Request) error
}

// Runner executes sync jobs on a bounded number of workers and tracks
// their records. Safe for concurrent use.
type Runner struct {
	syncer Syncer
	sem    *semaphore.Weighted

	mu   sync.RWMutex
	jobs map[string]*Job

	// wg lets tests and shutdown wait for in-flight jobs.
	wg sync.WaitGroup
}

// NewRunner creates a runner with the given worker bound. The bound keeps
// overlapping heavy extraction queries off the source database; it does
// not dedupe overlapping submissions, which is safe because the merge is
// idempotent at the row level.
func NewRunner(syncer Syncer, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		syncer: syncer,
		sem:    semaphore.NewWeighted(int64(workers)),
		jobs:   make(map[string]*Job),
	}
}

// Submit validates the request, records a Pending job, and schedules it.
// Validation failures are synchronous: no job is created, nothing reaches
// the orchestrator. Returns the job id.
func (r *Runner) Submit(syncType, dateFrom, dateTo string) (string, error) {
	t, err := facts.ParseType(syncType)
	if err != nil {
		return "", err
	}

	var window facts.Window
	if window.From, err = parseDate("date_from", dateFrom); err != nil {
		return "", err
	}
	if window.To, err = parseDate("date_to", dateTo); err != nil {
		return "", err
	}

	job := &Job{
		ID:          uuid.NewString(),
		SyncType:    syncType,
		DateFrom:    dateFrom,
		DateTo:      dateTo,
		State:       StatePending,
		SubmittedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	r.wg.Add(1)
	go r.execute(job.ID, orchestrator.Request{Type: t, Window: window, JobID: job.ID})

	return job.ID, nil
}

// Get returns a copy of the job record, or ErrJobNotFound.
func (r *Runner) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, errors.NewJobNotFound(id)
	}
	return *job, nil
}

// Wait blocks until every submitted job has finished. Used by shutdown
// and tests; new submissions during Wait are not guaranteed to be covered.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(id string, req orchestrator.Request) {
	defer r.wg.Done()

	// Jobs run detached from the submitting request; cancellation is not
	// supported once submitted.
	ctx := context.Background()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.transition(id, StateFailed, err.Error())
		return
	}
	defer r.sem.Release(1)

	r.transition(id, StateRunning, "")
	if err := r.syncer.Run(ctx, req); err != nil {
		r.transition(id, StateFailed, err.Error())
		return
	}
	r.transition(id, StateSuccess, "")
}

func (r *Runner) transition(id string, state State, errMsg string) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return
	}
	job.State = state
	job.Error = errMsg
	switch state {
	case StateRunning:
		job.StartedAt = &now
	case StateSuccess, StateFailed:
		job.FinishedAt = &now
	}
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, errors.NewInvalidRequest(field, "must be YYYY-MM-DD")
	}
	return t, nil
}
