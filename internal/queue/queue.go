// Package queue implements the per-job bounded-concurrency, rate-limited,
// FIFO work queue of spec.md §4.5.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Handler processes one task. It returns (retry, err): retry with a non-nil
// err requests the queue re-enqueue the task with backoff (subject to
// MaxAttempts). The queue does not record err; the handler records its own
// terminal failures.
type Handler[T any] func(ctx context.Context, task T) (retry bool, err error)

// Options configures a Queue.
type Options struct {
	MaxConcurrent int
	RateLimit     time.Duration // minimum interval between task starts
	TaskTimeout   time.Duration
	MaxAttempts   int
	BackoffBase   time.Duration
}

// entry is an internal queue item wrapping the caller's task with retry
// bookkeeping.
type entry[T any] struct {
	task     T
	attempts int
}

// Queue is a bounded-concurrency, rate-limited, per-job FIFO task runner.
// It is safe for concurrent Enqueue calls from multiple goroutines (e.g.
// the orchestrator discovering links from several in-flight fetches at
// once).
type Queue[T any] struct {
	opts Options
	sem  *semaphore.Weighted
	lim  *rate.Limiter

	mu       sync.Mutex
	pendingQ []entry[T]
	inFlight int
	retrying int // tasks sleeping in backoff, not yet back on pendingQ
	admitted int64 // total tasks ever admitted, for the hard max_pages bound

	idleOnce sync.Once
	idleCh   chan struct{}

	wg sync.WaitGroup
}

// New constructs a Queue with the given options. The admission cap is not
// set here but passed to each TryEnqueue call.
func New[T any](opts Options) *Queue[T] {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}

	var lim *rate.Limiter
	if opts.RateLimit > 0 {
		lim = rate.NewLimiter(rate.Every(opts.RateLimit), 1)
	}

	return &Queue[T]{
		opts:   opts,
		sem:    semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		lim:    lim,
		idleCh: make(chan struct{}),
	}
}

// TryEnqueue admits a task if the hard bound (maxAdmitted) has not been
// reached (maxAdmitted <= 0 means unbounded; the orchestrator passes
// max_pages). It returns false if admission was refused.
func (q *Queue[T]) TryEnqueue(task T, maxAdmitted int64) bool {
	q.mu.Lock()
	if maxAdmitted > 0 && q.admitted >= maxAdmitted {
		q.mu.Unlock()
		return false
	}
	q.admitted++
	q.pendingQ = append(q.pendingQ, entry[T]{task: task})
	q.mu.Unlock()
	return true
}

// Size returns the number of tasks queued but not yet dispatched.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pendingQ)
}

// Pending returns the number of tasks currently in flight.
func (q *Queue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Idle returns a channel closed exactly once, the first time both Size()
// and Pending() reach zero after Run has started draining the queue.
func (q *Queue[T]) Idle() <-chan struct{} {
	return q.idleCh
}

// Run drains the queue, dispatching tasks to handler under the configured
// concurrency and rate-limit bounds, until ctx is cancelled or the queue
// goes idle with nothing left admitted. Run blocks until drain completes.
func (q *Queue[T]) Run(ctx context.Context, handler Handler[T]) {
	for {
		if ctx.Err() != nil {
			break
		}

		q.mu.Lock()
		if len(q.pendingQ) == 0 {
			noWork := q.inFlight == 0 && q.retrying == 0
			q.mu.Unlock()
			if noWork {
				break
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		next := q.pendingQ[0]
		q.pendingQ = q.pendingQ[1:]
		q.inFlight++
		q.mu.Unlock()

		if q.lim != nil {
			if err := q.lim.Wait(ctx); err != nil {
				q.finishInFlight()
				break
			}
		}

		if err := q.sem.Acquire(ctx, 1); err != nil {
			q.finishInFlight()
			break
		}

		q.wg.Add(1)
		go q.dispatch(ctx, next, handler)
	}

	q.wg.Wait()
	q.signalIdleIfDrained()
}

func (q *Queue[T]) dispatch(ctx context.Context, e entry[T], handler Handler[T]) {
	defer q.wg.Done()
	defer q.sem.Release(1)
	defer q.finishInFlight()

	taskCtx := ctx
	var cancel context.CancelFunc
	if q.opts.TaskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, q.opts.TaskTimeout)
		defer cancel()
	}

	e.attempts++
	retry, err := handler(taskCtx, e.task)
	if err != nil && retry && e.attempts < q.opts.MaxAttempts {
		backoff := q.opts.BackoffBase * time.Duration(1<<uint(e.attempts-1))
		q.mu.Lock()
		q.retrying++
		q.mu.Unlock()
		go func() {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			q.mu.Lock()
			q.retrying--
			q.pendingQ = append(q.pendingQ, e)
			q.mu.Unlock()
		}()
	}
}

func (q *Queue[T]) finishInFlight() {
	q.mu.Lock()
	q.inFlight--
	q.mu.Unlock()
}

func (q *Queue[T]) signalIdleIfDrained() {
	q.mu.Lock()
	drained := len(q.pendingQ) == 0 && q.inFlight == 0 && q.retrying == 0
	q.mu.Unlock()
	if drained {
		q.idleOnce.Do(func() { close(q.idleCh) })
	}
}

// AdmittedCount returns the total number of tasks ever admitted via
// TryEnqueue, used by the orchestrator to compare against discovered/
// max_pages counters.
func (q *Queue[T]) AdmittedCount() int64 {
	return atomic.LoadInt64(&q.admitted)
}
