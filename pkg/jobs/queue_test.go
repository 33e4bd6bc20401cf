package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		done <- job
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1"}))

	select {
	case job := <-done:
		require.Equal(t, 2, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
}

func TestQueueGivesUpOnNonRetryableError(t *testing.T) {
	permanent := errors.New("permanent")
	var (
		mu      sync.Mutex
		gaveUp  []error
		handled int32
	)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&handled, 1)
		return permanent
	}, QueueConfig{
		MaxRetries:  5,
		RetryDelay:  time.Millisecond,
		ShouldRetry: func(err error) bool { return !errors.Is(err, permanent) },
		OnGiveUp: func(job Job, err error) {
			mu.Lock()
			defer mu.Unlock()
			gaveUp = append(gaveUp, err)
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1"}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gaveUp) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&handled))
}

func TestQueueEnqueueRequiresStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "j1"}))
}

func TestQueueEnqueueFullBuffer(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(block)

	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))
	require.Error(t, q.Enqueue(Job{ID: "overflow"}))
}

func TestQueueFreeTracksBuffer(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 3})
	q.Start(context.Background())
	defer q.Stop()
	defer close(block)

	require.Equal(t, 3, q.Free())
	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "b"}))
	require.Equal(t, 1, q.Free())
}

func TestQueueStopHandsPendingJobsToGiveUp(t *testing.T) {
	started := make(chan struct{}, 1)
	var (
		mu     sync.Mutex
		gaveUp = make(map[string]error)
	)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if job.ID == "retrying" {
			return errors.New("transient")
		}
		started <- struct{}{}
		<-ctx.Done()
		return nil
	}, QueueConfig{
		Workers:    1,
		BufferSize: 4,
		MaxRetries: 3,
		RetryDelay: time.Hour,
		OnGiveUp: func(job Job, err error) {
			mu.Lock()
			defer mu.Unlock()
			gaveUp[job.ID] = err
		},
	})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "retrying"}))
	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "buffered-1"}))
	require.NoError(t, q.Enqueue(Job{ID: "buffered-2"}))

	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, gaveUp, 3)
	for _, id := range []string{"retrying", "buffered-1", "buffered-2"} {
		require.ErrorIs(t, gaveUp[id], context.Canceled, id)
	}
	require.NotContains(t, gaveUp, "running")
	require.Error(t, q.Enqueue(Job{ID: "late"}))
}
