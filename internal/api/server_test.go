package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/pipeline"
	"github.com/ddoubleg123/carrot-discovery/internal/progress"
)

type fakeRunService struct {
	startErr  error
	statuses  map[string]RunStatus
	summaries map[string]discovery.RunSummary
	events    map[string][]progress.Event
	started   []discovery.Topic
}

func newFakeRunService() *fakeRunService {
	return &fakeRunService{
		statuses:  make(map[string]RunStatus),
		summaries: make(map[string]discovery.RunSummary),
		events:    make(map[string][]progress.Event),
	}
}

func (f *fakeRunService) StartRun(_ context.Context, topic discovery.Topic) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, topic)
	return "run-1", nil
}

func (f *fakeRunService) RunStatus(_ context.Context, runID string) (RunStatus, error) {
	st, ok := f.statuses[runID]
	if !ok {
		return RunStatus{}, discovery.ErrNotFound
	}
	return st, nil
}

func (f *fakeRunService) RunSummary(_ context.Context, runID string) (discovery.RunSummary, error) {
	sum, ok := f.summaries[runID]
	if !ok {
		return discovery.RunSummary{}, discovery.ErrNotFound
	}
	return sum, nil
}

func (f *fakeRunService) RunEvents(_ context.Context, runID string, limit int) ([]progress.Event, error) {
	evs := f.events[runID]
	if limit < len(evs) {
		evs = evs[:limit]
	}
	return evs, nil
}

func (f *fakeRunService) SweepRun(_ context.Context, runID string) (pipeline.SweepReport, error) {
	if _, ok := f.statuses[runID]; !ok {
		return pipeline.SweepReport{}, discovery.ErrNotFound
	}
	return pipeline.SweepReport{Anomalies: 2, Reset: 1}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeRunService) {
	t.Helper()
	svc := newFakeRunService()
	srv := httptest.NewServer(NewServer(svc, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestStartRun(t *testing.T) {
	srv, svc := newTestServer(t)

	body := bytes.NewBufferString(`{"topic": {"name": "Ada Lovelace", "aliases": ["Countess of Lovelace"]}}`)
	resp, err := http.Post(srv.URL+"/v1/runs/", "application/json", body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "run-1", got["run_id"])
	require.Len(t, svc.started, 1)
	assert.Equal(t, "Ada Lovelace", svc.started[0].Name)
}

func TestStartRunValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty topic", `{"topic": {"name": ""}}`},
		{"bad json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v1/runs/", "application/json", bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetRunStatus(t *testing.T) {
	srv, svc := newTestServer(t)
	svc.statuses["run-1"] = RunStatus{
		RunID: "run-1", Topic: "Ada Lovelace", State: "running",
		Report: pipeline.Report{Saved: 3, Denied: 2},
	}

	resp, err := http.Get(srv.URL + "/v1/runs/run-1/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got RunStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "running", got.State)
	assert.Equal(t, 3, got.Report.Saved)
}

func TestGetRunStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/runs/ghost/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetRunSummary(t *testing.T) {
	srv, svc := newTestServer(t)
	svc.summaries["run-1"] = discovery.RunSummary{RunID: "run-1", Saved: 5}

	resp, err := http.Get(srv.URL + "/v1/runs/run-1/summary")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Summary discovery.RunSummary `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 5, got.Summary.Saved)
}

func TestGetRunEventsLimitValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/runs/run-1/events?limit=9999")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSweepRun(t *testing.T) {
	srv, svc := newTestServer(t)
	svc.statuses["run-1"] = RunStatus{RunID: "run-1"}

	resp, err := http.Post(srv.URL+"/v1/runs/run-1/sweep", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Sweep pipeline.SweepReport `json:"sweep"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 1, got.Sweep.Reset)
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
