package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	q := NewQueue(Config{
		Workers:      1,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	})
	q.Start()

	var calls int32
	done := make(chan struct{})
	q.Enqueue("flaky", func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never succeeded")
	}
	q.Stop()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	q := NewQueue(Config{
		Workers:      1,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})
	q.Start()

	var calls int32
	q.Enqueue("doomed", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("permanent")
	})

	q.Stop() // drains the queue before returning
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "1 attempt + 2 retries")
}

func TestQueueRunsTasksConcurrently(t *testing.T) {
	q := NewQueue(Config{Workers: 4})
	q.Start()

	var running, peak int32
	for i := 0; i < 4; i++ {
		q.Enqueue("parallel", func(ctx context.Context) error {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		})
	}

	q.Stop()
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
}

func TestEnqueueAfterStopIsDropped(t *testing.T) {
	q := NewQueue(Config{Workers: 1})
	q.Start()
	q.Stop()

	// Must not panic on a closed queue.
	q.Enqueue("late", func(ctx context.Context) error { return nil })
}
