package component

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sufield/junction/internal/core/errors"
)

// Executor is a component's single-goroutine task queue. Tasks run one at a
// time in submission order, so a component never needs to lock its own state
// against itself.
type Executor struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
	logger *slog.Logger
}

// NewExecutor starts an executor. A nil logger uses slog.Default().
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	go e.run()
	return e
}

// Submit queues task. It never blocks; it fails once the executor is closed.
func (e *Executor) Submit(task func()) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.Violationf("executor is closed")
	}
	e.queue = append(e.queue, task)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops accepting tasks, runs the ones already queued, and waits for
// the queue to drain. It must not be called from a task.
func (e *Executor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	<-e.done
}

func (e *Executor) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			closed := e.closed
			e.mu.Unlock()
			if closed {
				return
			}
			<-e.wake
			continue
		}
		task := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.runTask(task)
	}
}

func (e *Executor) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("component task panicked", "panic", fmt.Sprint(r))
		}
	}()
	task()
}

// Future is the completion handle of an asynchronous operation. Callbacks
// registered with Then run on the owning component's executor, never on the
// goroutine that completed the operation.
type Future[T any] struct {
	owner *Executor
	done  chan struct{}

	mu        sync.Mutex
	completed bool
	value     T
	err       error
	callbacks []func(T, error)
}

func newFuture[T any](owner *Executor) *Future[T] {
	return &Future[T]{owner: owner, done: make(chan struct{})}
}

// Go runs fn on a new goroutine and returns a Future completed with its result.
func Go[T any](ctx context.Context, owner *Executor, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T](owner)
	go func() {
		v, err := fn(ctx)
		f.complete(v, err)
	}()
	return f
}

func (f *Future[T]) complete(v T, err error) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return
	}
	f.completed = true
	f.value, f.err = v, err
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	close(f.done)
	for _, cb := range callbacks {
		f.post(cb, v, err)
	}
}

// Then registers fn to run on the owner's executor once the future completes.
func (f *Future[T]) Then(fn func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	f.post(fn, v, err)
}

func (f *Future[T]) post(fn func(T, error), v T, err error) {
	if submitErr := f.owner.Submit(func() { fn(v, err) }); submitErr != nil {
		f.owner.logger.Warn("dropping continuation for closed component", "error", submitErr)
	}
}

// Done is closed when the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future completes or ctx ends. Components must not
// call it from their own executor; use Then instead.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
