package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueBeforeStartIsRejected(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job{ID: "1"}), ErrQueueClosed)
}

func TestQueueProcessesAndDrainsOnStop(t *testing.T) {
	var handled atomic.Int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 10})

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	for i := 0; i < 6; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job"}))
	}
	// a cancelled start context must not drop buffered work
	cancel()
	q.Stop()

	assert.Equal(t, int32(6), handled.Load())
	assert.Equal(t, int64(6), q.Stats().Processed)
	assert.ErrorIs(t, q.Enqueue(Job{ID: "late"}), ErrQueueClosed)
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var attempts atomic.Int32
	var mu sync.Mutex
	var abandoned []Job
	done := make(chan struct{})

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		attempts.Add(1)
		return errors.New("boom")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnGiveUp: func(job Job, err error) {
			mu.Lock()
			abandoned = append(abandoned, job)
			mu.Unlock()
			close(done)
		},
	})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "retry-me", Payload: "https://cdn/x.pdf"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was never abandoned")
	}
	q.Stop()

	assert.Equal(t, int32(3), attempts.Load())
	stats := q.Stats()
	assert.Equal(t, int64(2), stats.Retried)
	assert.Equal(t, int64(1), stats.Abandoned)
	require.Len(t, abandoned, 1)
	assert.Equal(t, "retry-me", abandoned[0].ID)
	assert.Equal(t, 3, abandoned[0].Attempt)
}

func TestEnqueueReportsFullBuffer(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	// wait for the worker to pick up the first job so the buffer is empty
	require.Eventually(t, func() bool { return q.Stats().Pending == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "2"}))
	assert.ErrorIs(t, q.Enqueue(Job{ID: "3"}), ErrQueueFull)

	close(release)
	q.Stop()
	assert.Equal(t, int64(2), q.Stats().Processed)
}

func TestHandlerPanicCountsAsFailure(t *testing.T) {
	gaveUp := make(chan error, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		panic("bad payload")
	}, QueueConfig{OnGiveUp: func(job Job, err error) { gaveUp <- err }})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "p"}))

	select {
	case err := <-gaveUp:
		assert.EqualError(t, err, "job panicked")
	case <-time.After(time.Second):
		t.Fatal("panic was not converted into a failure")
	}
	q.Stop()
}
