package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/tmslabs/factsync/internal/db"
	"github.com/tmslabs/factsync/internal/jobs"
	"github.com/tmslabs/factsync/internal/orchestrator"
	"github.com/tmslabs/factsync/internal/schema"
	"github.com/tmslabs/factsync/internal/storage"
	"github.com/tmslabs/factsync/pkg/api"
	"github.com/tmslabs/factsync/pkg/models"
)

type noopSyncer struct{}

func (noopSyncer) Run(ctx context.Context, req orchestrator.Request) error { return nil }

func newTestServer(t *testing.T) (*Server, *jobs.Runner, *storage.SyncLog) {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	dialect, err := db.DialectFor("sqlite")
	require.NoError(t, err)
	require.NoError(t, schema.NewGuard(conn, dialect).EnsureSyncLog(context.Background()))

	audit := storage.NewSyncLog(conn, dialect)
	runner := jobs.NewRunner(noopSyncer{}, 1)
	return New(runner, audit, "test"), runner, audit
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAcceptsValidRequest(t *testing.T) {
	s, runner, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, api.EndpointSync, models.SyncRequest{
		SyncType: "fact_order",
		DateFrom: "2025-01-01",
		DateTo:   "2025-01-31",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, api.ContentTypeJSON, rec.Header().Get(api.HeaderContentType))

	var resp models.SyncResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.JobID)

	runner.Wait()
	job, err := runner.Get(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateSuccess, job.State)
}

func TestSubmitRejectsUnknownType(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, api.EndpointSync, models.SyncRequest{
		SyncType: "fact_unknown",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Error, "sync_type")
}

func TestSubmitRejectsMalformedBody(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, api.EndpointSync, bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRejectsGet(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, api.EndpointSync, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestJobStatus(t *testing.T) {
	s, runner, _ := newTestServer(t)

	id, err := runner.Submit("fact_delivery", "", "")
	require.NoError(t, err)
	runner.Wait()

	rec := doJSON(t, s, http.MethodGet, api.EndpointSyncJobs+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, id, resp.JobID)
	assert.Equal(t, "fact_delivery", resp.SyncType)
	assert.Equal(t, string(jobs.StateSuccess), resp.Status)
	assert.NotNil(t, resp.FinishedAt)
}

func TestJobStatusUnknownID(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, api.EndpointSyncJobs+"deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobStatusMissingID(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, api.EndpointSyncJobs, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryEmpty(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, api.EndpointHistory, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Records)
	assert.Zero(t, resp.Total)
	assert.Nil(t, resp.LastSyncTime)
}

func TestHistoryReturnsRecordsAndSummary(t *testing.T) {
	s, _, audit := newTestServer(t)
	ctx := context.Background()

	for _, run := range []struct {
		syncType string
		status   string
		records  int
	}{
		{"fact_order", storage.StatusSuccess, 10},
		{"fact_order", storage.StatusFailed, 0},
		{"fact_delivery", storage.StatusSuccess, 25},
	} {
		id, err := audit.Start(ctx, run.syncType)
		require.NoError(t, err)
		require.NoError(t, audit.Finish(ctx, id, run.status, run.records, ""))
	}

	rec := doJSON(t, s, http.MethodGet, api.EndpointHistory, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Records, 3)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Successful)
	assert.Equal(t, 1, resp.Failed)
	assert.NotNil(t, resp.LastSyncTime)
}

func TestHistoryFiltersBySyncType(t *testing.T) {
	s, _, audit := newTestServer(t)
	ctx := context.Background()

	for _, syncType := range []string{"fact_order", "fact_order", "fact_delivery"} {
		id, err := audit.Start(ctx, syncType)
		require.NoError(t, err)
		require.NoError(t, audit.Finish(ctx, id, storage.StatusSuccess, 1, ""))
	}

	rec := doJSON(t, s, http.MethodGet, api.EndpointHistory+"?sync_type=fact_order", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Records, 2)
	assert.Equal(t, 2, resp.Total)
	for _, r := range resp.Records {
		assert.Equal(t, "fact_order", r.SyncType)
	}
}

func TestHistoryRejectsUnknownSyncType(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, api.EndpointHistory+"?sync_type=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	s, _, _ := newTestServer(t)

	for _, limit := range []string{"abc", "0", "-5"} {
		rec := doJSON(t, s, http.MethodGet, api.EndpointHistory+"?limit="+limit, nil)
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestHistoryAppliesLimit(t *testing.T) {
	s, _, audit := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, err := audit.Start(ctx, "fact_order")
		require.NoError(t, err)
		require.NoError(t, audit.Finish(ctx, id, storage.StatusSuccess, 1, ""))
	}

	rec := doJSON(t, s, http.MethodGet, api.EndpointHistory+"?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Records, 2)
	// Summary counters are not limited.
	assert.Equal(t, 5, resp.Total)
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, api.EndpointHealth, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
}
