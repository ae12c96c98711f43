package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueProcessesAllEnqueuedTasks(t *testing.T) {
	q := New[int](Options{MaxConcurrent: 2})
	for i := 0; i < 5; i++ {
		if !q.TryEnqueue(i, 0) {
			t.Fatalf("TryEnqueue(%d) refused", i)
		}
	}

	var processed int32
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q.Run(ctx, func(ctx context.Context, task int) (bool, error) {
		atomic.AddInt32(&processed, 1)
		return false, nil
	})

	if got := atomic.LoadInt32(&processed); got != 5 {
		t.Fatalf("processed = %d, want 5", got)
	}
}

func TestQueueRefusesAdmissionAtHardBound(t *testing.T) {
	q := New[int](Options{MaxConcurrent: 1})

	for i := 0; i < 3; i++ {
		q.TryEnqueue(i, 2)
	}
	if q.AdmittedCount() != 2 {
		t.Fatalf("AdmittedCount() = %d, want 2", q.AdmittedCount())
	}
}

func TestQueueRetriesUpToMaxAttempts(t *testing.T) {
	q := New[int](Options{MaxConcurrent: 1, MaxAttempts: 3, BackoffBase: time.Millisecond})
	q.TryEnqueue(1, 0)

	var attempts int32
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q.Run(ctx, func(ctx context.Context, task int) (bool, error) {
		atomic.AddInt32(&attempts, 1)
		return true, errAlways{}
	})

	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

type errAlways struct{}

func (errAlways) Error() string { return "always fails" }

func TestQueueIdleClosesWhenDrained(t *testing.T) {
	q := New[int](Options{MaxConcurrent: 2})
	q.TryEnqueue(1, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q.Run(ctx, func(ctx context.Context, task int) (bool, error) {
		return false, nil
	})

	select {
	case <-q.Idle():
	default:
		t.Fatalf("expected Idle() channel to be closed after drain")
	}
}
