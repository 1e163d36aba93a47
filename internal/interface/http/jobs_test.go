package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/scheduler"
)

type sweepJob struct {
	err  error
	runs int
}

func (j *sweepJob) Name() string        { return "expire_link_requests" }
func (j *sweepJob) Description() string { return "expires stale link requests" }

func (j *sweepJob) Run(_ context.Context) error {
	j.runs++
	return j.err
}

func newJobsServer(t *testing.T) (*Server, *sweepJob) {
	t.Helper()

	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := scheduler.NewScheduler(schedCfg)

	job := &sweepJob{}
	require.NoError(t, sched.Register(job, scheduler.NewIntervalSchedule(time.Hour)))

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	srv := NewServer(cfg, Dependencies{
		Jobs:   sched,
		Logger: schedCfg.Logger,
	})
	return srv, job
}

func doJSON(t *testing.T, srv *Server, method, path string) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var body JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestJobsAdmin_ListAndGet(t *testing.T) {
	srv, _ := newJobsServer(t)

	rec, body := doJSON(t, srv, http.MethodGet, "/api/v1/jobs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)

	var jobs []scheduler.JobInfo
	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "expire_link_requests", jobs[0].Name)
	assert.True(t, jobs[0].Enabled)
	assert.Equal(t, "@every 1h0m0s", jobs[0].Schedule)

	rec, _ = doJSON(t, srv, http.MethodGet, "/api/v1/jobs/expire_link_requests")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = doJSON(t, srv, http.MethodGet, "/api/v1/jobs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, body.Success)
}

func TestJobsAdmin_RunNow(t *testing.T) {
	srv, job := newJobsServer(t)

	rec, body := doJSON(t, srv, http.MethodPost, "/api/v1/jobs/expire_link_requests/run")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	assert.Equal(t, 1, job.runs)

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/v1/jobs/missing/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobsAdmin_RunNowReportsJobFailure(t *testing.T) {
	srv, job := newJobsServer(t)
	job.err = errors.New("sweep broke")

	rec, body := doJSON(t, srv, http.MethodPost, "/api/v1/jobs/expire_link_requests/run")
	assert.Equal(t, http.StatusOK, rec.Code)

	var result scheduler.JobResult
	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.False(t, result.Success)
	assert.Equal(t, "sweep broke", result.ErrorText)
}

func TestJobsAdmin_EnableDisable(t *testing.T) {
	srv, _ := newJobsServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/jobs/expire_link_requests/disable")
	assert.Equal(t, http.StatusOK, rec.Code)

	_, body := doJSON(t, srv, http.MethodGet, "/api/v1/jobs/expire_link_requests")
	var info scheduler.JobInfo
	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &info))
	assert.False(t, info.Enabled)

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/v1/jobs/expire_link_requests/enable")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/v1/jobs/missing/enable")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobsAdmin_HistoryAndMetrics(t *testing.T) {
	srv, _ := newJobsServer(t)

	doJSON(t, srv, http.MethodPost, "/api/v1/jobs/expire_link_requests/run")
	doJSON(t, srv, http.MethodPost, "/api/v1/jobs/expire_link_requests/run")

	_, body := doJSON(t, srv, http.MethodGet, "/api/v1/jobs/history?limit=1")
	var history []scheduler.JobResult
	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &history))
	require.Len(t, history, 1)
	assert.True(t, history[0].Manual)

	_, body = doJSON(t, srv, http.MethodGet, "/api/v1/jobs/metrics")
	var snap scheduler.MetricsSnapshot
	raw, err = json.Marshal(body.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, int64(2), snap.TotalExecutions)
	assert.Equal(t, int64(2), snap.TotalSuccesses)
}
