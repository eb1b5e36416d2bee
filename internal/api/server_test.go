package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jgourd/leadharvest/internal/progress"
)

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewServer(nil, nil).Handler())
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestProgressSnapshotReflectsHub(t *testing.T) {
	t.Parallel()

	hub := progress.NewHub(progress.Config{})
	defer hub.Close(context.Background())

	runID := uuid.New()
	hub.Emit(progress.Event{RunID: runID, TS: time.Now(), Stage: progress.StageDiscoveryDone, Count: 7})
	hub.Emit(progress.Event{RunID: runID, TS: time.Now(), Stage: progress.StageFetchOK, URL: "https://easyapply.co/job/1"})

	srv := httptest.NewServer(NewServer(hub, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/progress")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var counters progress.Counters
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&counters))
	require.Equal(t, int64(7), counters.Discovered)
	require.Equal(t, int64(1), counters.FetchedOK)
}

func TestProgressWithoutHub(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewServer(nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/progress")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewServer(nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
