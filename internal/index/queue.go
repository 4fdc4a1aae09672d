package index

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/Aman-CERP/wordindex/internal/errors"
)

// Queue is the admission-controlled priority task queue.
//
// Structural and content tasks each need a permit from their group's pool
// before they are enqueued, so producers block while that group already
// holds size tasks. Completion tasks are admitted unconditionally: they are
// submitted by workers that must never block, and applying them is what
// lets the rest of the pipeline make progress.
//
// Tasks are taken in strict group order, FIFO within a group.
type Queue struct {
	logger *slog.Logger

	permits [GroupCompletion]*semaphore.Weighted

	mu        sync.Mutex
	lanes     [numGroups][]Task
	seq       uint64
	active    int
	completed uint64
	closed    bool

	notify   chan struct{}
	stopped  context.Context
	stop     context.CancelFunc
	blockLog rate.Sometimes
}

// NewQueue creates a queue admitting at most size structural and size
// content tasks at a time.
func NewQueue(size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	stopped, stop := context.WithCancel(context.Background())
	q := &Queue{
		logger:   logger,
		notify:   make(chan struct{}, 1),
		stopped:  stopped,
		stop:     stop,
		blockLog: rate.Sometimes{Interval: 5 * time.Second},
	}
	for g := range q.permits {
		q.permits[g] = semaphore.NewWeighted(int64(size))
	}
	return q
}

// Submit admits t, blocking until its group has a free permit. It fails
// with ErrServiceStopped once the queue is closed, or with a not-admitted
// error if ctx ends first.
func (q *Queue) Submit(ctx context.Context, t Task) error {
	g := t.Kind.Group()
	if g < GroupCompletion {
		if err := q.acquire(ctx, g, t); err != nil {
			return err
		}
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.release(g)
		return errors.Stopped(t.Kind.String())
	}
	q.seq++
	t.Seq = q.seq
	q.lanes[g] = append(q.lanes[g], t)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *Queue) acquire(ctx context.Context, g Group, t Task) error {
	sem := q.permits[g]
	if sem.TryAcquire(1) {
		return nil
	}
	if q.stopped.Err() != nil {
		return errors.Stopped(t.Kind.String())
	}

	q.blockLog.Do(func() {
		q.logger.Debug("queue full, producer waiting",
			slog.String("group", g.String()),
			slog.String("task", t.Kind.String()))
	})

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	unhook := context.AfterFunc(q.stopped, cancel)
	defer unhook()

	if err := sem.Acquire(waitCtx, 1); err != nil {
		if q.stopped.Err() != nil {
			return errors.Stopped(t.Kind.String())
		}
		return errors.NotAdmitted(t.Kind.String(), err)
	}
	return nil
}

func (q *Queue) release(g Group) {
	if g < GroupCompletion {
		q.permits[g].Release(1)
	}
}

// Take removes the highest-priority task, waiting until one is available.
// Every task returned must be passed to Done once applied.
func (q *Queue) Take(ctx context.Context) (Task, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Task{}, errors.Stopped("take")
		}
		for g := range q.lanes {
			if len(q.lanes[g]) == 0 {
				continue
			}
			t := q.lanes[g][0]
			q.lanes[g][0] = Task{}
			q.lanes[g] = q.lanes[g][1:]
			q.active++
			q.mu.Unlock()
			return t, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return Task{}, ctx.Err()
		case <-q.stopped.Done():
		}
	}
}

// Done releases the permit held by t.
func (q *Queue) Done(t Task) {
	q.mu.Lock()
	if q.active > 0 {
		q.active--
	}
	q.completed++
	closed := q.closed
	q.mu.Unlock()

	if !closed {
		q.release(t.Kind.Group())
	}
}

// Close discards all queued tasks and wakes every blocked producer and
// consumer. Subsequent Submit and Take calls fail with ErrServiceStopped.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := 0
	for g := range q.lanes {
		dropped += len(q.lanes[g])
		q.lanes[g] = nil
	}
	q.mu.Unlock()

	q.stop()
	if dropped > 0 {
		q.logger.Debug("queue closed with pending tasks", slog.Int("dropped", dropped))
	}
}

// Len returns the number of queued tasks per group.
func (q *Queue) Len() [numGroups]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n [numGroups]int
	for g := range q.lanes {
		n[g] = len(q.lanes[g])
	}
	return n
}

// Idle reports whether no task is queued or being applied.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active > 0 {
		return false
	}
	for g := range q.lanes {
		if len(q.lanes[g]) > 0 {
			return false
		}
	}
	return true
}

// Completed returns the number of tasks passed to Done so far.
func (q *Queue) Completed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}
