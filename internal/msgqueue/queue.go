// Package msgqueue provides a single-consumer serialised task queue. Every
// task runs on the queue's worker goroutine in posting order; CallInLoop
// lets a foreign goroutine wait for its task to finish, and runs inline
// when the caller is already on the worker.
package msgqueue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Task is a unit of work executed on the worker goroutine. The context
// passed to Execute is cancelled when the queue stops and marks the worker
// for re-entrant CallInLoop detection.
type Task interface {
	Execute(ctx context.Context)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context)

// Execute calls f(ctx).
func (f TaskFunc) Execute(ctx context.Context) { f(ctx) }

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

type loopKey struct{ q *Queue }

// Queue is a FIFO of tasks drained by one worker goroutine. A stopped queue
// cannot be restarted.
type Queue struct {
	name string
	log  *slog.Logger

	mu    sync.Mutex
	cond  *sync.Cond
	tasks []Task
	state state

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	done    chan struct{}

	executed atomic.Int64
}

// New creates an idle queue. If log is nil, slog.Default() is used.
func New(name string, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	q := &Queue{
		name:    name,
		log:     log.With("component", "msgqueue", "queue", name),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	q.ctx, q.cancel = context.WithCancel(context.WithValue(context.Background(), loopKey{q}, true))
	return q
}

// Name returns the name given to New.
func (q *Queue) Name() string { return q.name }

// Start launches the worker. It is a no-op on a running or stopped queue.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != stateIdle {
		return
	}
	q.state = stateRunning
	go q.run()
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && q.state == stateRunning {
			q.cond.Wait()
		}
		if q.state != stateRunning {
			q.mu.Unlock()
			return
		}
		t := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		t.Execute(q.ctx)
		q.executed.Add(1)
	}
}

// Stop marks the queue inactive, drops pending tasks and releases every
// CallInLoop waiter. Unless called from the worker itself, it then waits
// for the task in progress to return or for ctx to be done.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	prev := q.state
	if prev != stateStopped {
		q.state = stateStopped
		if n := len(q.tasks); n > 0 {
			q.log.Debug("dropping pending tasks", "count", n)
		}
		q.tasks = nil
		close(q.stopped)
		q.cancel()
		q.cond.Broadcast()
	}
	q.mu.Unlock()

	if prev == stateIdle || InLoop(ctx, q) {
		return
	}
	select {
	case <-q.done:
	case <-ctx.Done():
		q.log.Warn("stop returned before worker exited", "error", ctx.Err())
	}
}

// Stopped returns a channel closed once Stop has been called.
func (q *Queue) Stopped() <-chan struct{} { return q.stopped }

// Running reports whether the queue accepts tasks.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state == stateRunning
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Executed returns the number of tasks run so far.
func (q *Queue) Executed() int64 { return q.executed.Load() }

// Post appends t and reports whether it was accepted. Posting fails unless
// the queue is running.
func (q *Queue) Post(t Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != stateRunning {
		return false
	}
	q.tasks = append(q.tasks, t)
	q.cond.Signal()
	return true
}

// ScheduleInLoop posts fn without waiting for it.
func (q *Queue) ScheduleInLoop(fn func(ctx context.Context)) bool {
	return q.Post(TaskFunc(fn))
}

const (
	callPending int32 = iota
	callRunning
	callAbandoned
)

type call struct {
	fn    func(ctx context.Context)
	state atomic.Int32
	done  chan struct{}
}

func (c *call) Execute(ctx context.Context) {
	if !c.state.CompareAndSwap(callPending, callRunning) {
		return
	}
	defer close(c.done)
	c.fn(ctx)
}

// abandon reports whether the call was withdrawn before it started. When it
// already started, abandon waits for it to finish.
func (c *call) abandon() bool {
	if c.state.CompareAndSwap(callPending, callAbandoned) {
		return true
	}
	<-c.done
	return false
}

// CallInLoop runs fn on the worker and blocks until it returns. When ctx
// belongs to this queue's worker, fn runs inline. It reports false, without
// running fn, when the queue is not running, stops before fn starts, or ctx
// is done before fn starts.
func (q *Queue) CallInLoop(ctx context.Context, fn func(ctx context.Context)) bool {
	if InLoop(ctx, q) {
		fn(ctx)
		return true
	}

	c := &call{fn: fn, done: make(chan struct{})}
	if !q.Post(c) {
		return false
	}
	select {
	case <-c.done:
		return true
	case <-q.stopped:
		return !c.abandon()
	case <-ctx.Done():
		return !c.abandon()
	}
}

// Call runs fn through CallInLoop and returns its result. ok is false when
// fn did not run.
func Call[T any](ctx context.Context, q *Queue, fn func(ctx context.Context) T) (v T, ok bool) {
	ok = q.CallInLoop(ctx, func(ctx context.Context) {
		v = fn(ctx)
	})
	return v, ok
}

// InLoop reports whether ctx was handed out by q's worker.
func InLoop(ctx context.Context, q *Queue) bool {
	if ctx == nil {
		return false
	}
	return ctx.Value(loopKey{q}) != nil
}
