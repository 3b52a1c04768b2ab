package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovalyov-valentin/feed-sync/internal/model"
	"github.com/kovalyov-valentin/feed-sync/internal/scheduler"
)

type runner struct {
	calls   atomic.Int32
	running atomic.Int32
	maxSeen atomic.Int32
	release chan struct{}
	err     error
}

func (r *runner) Fetch(ctx context.Context) (model.PassReport, error) {
	r.calls.Add(1)
	now := r.running.Add(1)
	defer r.running.Add(-1)

	for {
		seen := r.maxSeen.Load()
		if now <= seen || r.maxSeen.CompareAndSwap(seen, now) {
			break
		}
	}

	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return model.PassReport{}, ctx.Err()
		}
	}

	return model.PassReport{Feeds: []model.FeedReport{{FeedID: 1, Ingested: 1}}}, r.err
}

type observer struct {
	mu      sync.Mutex
	passes  int
	errs    int
	skipped int
}

func (o *observer) ObservePass(_ model.PassReport, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.passes++
	if err != nil {
		o.errs++
	}
}

func (o *observer) ObserveSkipped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped++
}

func (o *observer) counts() (passes, errs, skipped int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.passes, o.errs, o.skipped
}

func TestRunNow(t *testing.T) {
	r := &runner{}
	obs := &observer{}
	s := scheduler.New(r, time.Hour, obs)

	report, err := s.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Ingested())
	assert.Equal(t, int32(1), r.calls.Load())
	passes, _, _ := obs.counts()
	assert.Equal(t, 1, passes)
}

func TestStartRunsPeriodically(t *testing.T) {
	r := &runner{}
	s := scheduler.New(r, 10*time.Millisecond, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), scheduler.ErrAlreadyStarted)

	assert.Eventually(t, func() bool {
		return r.calls.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	calls := r.calls.Load()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, r.calls.Load())
}

func TestStartRunsImmediately(t *testing.T) {
	r := &runner{}
	s := scheduler.New(r, time.Hour, nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return r.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestOverlappingFiringsAreSkipped(t *testing.T) {
	r := &runner{release: make(chan struct{})}
	obs := &observer{}
	s := scheduler.New(r, 5*time.Millisecond, obs)

	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		_, _, skipped := obs.counts()
		return skipped >= 3
	}, 2*time.Second, 5*time.Millisecond)

	close(r.release)
	s.Stop()

	assert.Equal(t, int32(1), r.maxSeen.Load())
}

func TestRunNowWaitsForRunningPass(t *testing.T) {
	r := &runner{release: make(chan struct{})}
	s := scheduler.New(r, time.Hour, nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return r.running.Load() == 1
	}, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.RunNow(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("RunNow must wait for the running pass")
	case <-time.After(30 * time.Millisecond):
	}

	close(r.release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunNow did not finish")
	}

	assert.Equal(t, int32(2), r.calls.Load())
	assert.Equal(t, int32(1), r.maxSeen.Load())
}

func TestPassErrorsAreNotFatal(t *testing.T) {
	r := &runner{err: errors.New("feeds table is gone")}
	obs := &observer{}
	s := scheduler.New(r, 5*time.Millisecond, obs)

	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		_, errs, _ := obs.counts()
		return errs >= 2
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
}

func TestStopWaitsForPass(t *testing.T) {
	r := &runner{release: make(chan struct{})}
	s := scheduler.New(r, time.Hour, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return r.running.Load() == 1
	}, time.Second, time.Millisecond)

	// Stop отменяет контекст, проход завершается по ctx.Done
	s.Stop()
	assert.Zero(t, r.running.Load())
}

func TestInvalidInterval(t *testing.T) {
	s := scheduler.New(&runner{}, 0, nil)
	assert.Error(t, s.Start(context.Background()))
}
