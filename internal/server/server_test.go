package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kovalyov-valentin/feed-sync/internal/metrics"
	"github.com/kovalyov-valentin/feed-sync/internal/model"
)

type triggerMock struct {
	mock.Mock
}

func (m *triggerMock) RunNow(ctx context.Context) (model.PassReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.PassReport), args.Error(1)
}

type pinger struct {
	err error
}

func (p pinger) PingContext(context.Context) error {
	return p.err
}

func newTestServer(t *testing.T, trigger SyncTrigger, db Pinger) *httptest.Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	metrics.New(reg).ObserveSkipped()

	ts := httptest.NewServer(New(trigger, db, reg).Handler())
	t.Cleanup(ts.Close)

	return ts
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &triggerMock{}, pinger{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthDatabaseDown(t *testing.T) {
	ts := newTestServer(t, &triggerMock{}, pinger{err: errors.New("connection refused")})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, &triggerMock{}, pinger{})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "feedsync_skipped_passes_total 1")
}

func TestSync(t *testing.T) {
	trigger := &triggerMock{}
	trigger.On("RunNow", mock.Anything).Return(model.PassReport{
		StartedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Duration:  time.Second,
		Feeds: []model.FeedReport{
			{FeedID: 1, FeedName: "Go Blog", Status: model.FeedSynced, Ingested: 2, Existing: 1, ReadStates: 4},
			{FeedID: 2, FeedName: "Broken", Status: model.FeedFailed, Failure: model.FailureFetch, Err: errors.New("status 500")},
		},
	}, nil).Once()

	ts := newTestServer(t, trigger, pinger{})

	resp, err := http.Post(ts.URL+"/sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got syncResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

	assert.Equal(t, 2, got.Ingested)
	assert.Equal(t, 1, got.Failed)
	require.Len(t, got.Feeds, 2)
	assert.Equal(t, 1, got.Feeds[0].Skipped)
	assert.Equal(t, int64(4), got.Feeds[0].ReadStates)
	assert.Equal(t, "fetch", got.Feeds[1].Failure)
	assert.Equal(t, "status 500", got.Feeds[1].Error)

	trigger.AssertExpectations(t)
}

func TestSyncError(t *testing.T) {
	trigger := &triggerMock{}
	trigger.On("RunNow", mock.Anything).Return(model.PassReport{}, errors.New("no such table: feeds")).Once()

	ts := newTestServer(t, trigger, pinger{})

	resp, err := http.Post(ts.URL+"/sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSyncRequiresPost(t *testing.T) {
	ts := newTestServer(t, &triggerMock{}, pinger{})

	resp, err := http.Get(ts.URL + "/sync")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRunShutsDown(t *testing.T) {
	s := New(&triggerMock{}, pinger{}, prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
