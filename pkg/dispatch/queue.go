// Package dispatch provides serial command queues whose work items report
// completion through futures.
package dispatch

import (
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned when work is submitted to a closed queue.
var ErrClosed = errors.New("dispatch: queue closed")

// Queue runs submitted functions one at a time, in submission order, on a
// dedicated goroutine. Submission never blocks.
type Queue struct {
	name    string
	onPanic func(name string, v any)

	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	closed  bool
	done    chan struct{}
}

// NewQueue starts a serial queue. A work item that panics is reported to
// onPanic (when not nil) and the queue keeps running.
func NewQueue(name string, onPanic func(name string, v any)) *Queue {
	q := &Queue{
		name:    name,
		onPanic: onPanic,
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

// Name returns the queue label.
func (q *Queue) Name() string { return q.name }

// Async enqueues fn. It returns ErrClosed once Close has been called.
func (q *Queue) Async(fn func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.pending = append(q.pending, fn)
	q.cond.Signal()
	return nil
}

// Close stops accepting work and waits until everything already queued ran.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.cond.Signal()
	}
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.run(fn)
	}
}

func (q *Queue) run(fn func()) {
	defer func() {
		if r := recover(); r != nil && q.onPanic != nil {
			q.onPanic(q.name, r)
		}
	}()
	fn()
}

// Submit runs fn on q and returns a future for its result.
// If q is closed the future resolves immediately with ErrClosed.
func Submit[T any](q *Queue, fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	err := q.Async(func() {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				f.Complete(v, fmt.Errorf("dispatch: %s: panic: %v", q.name, r))
			}
		}()
		v, err = fn()
		f.Complete(v, err)
	})
	if err != nil {
		var zero T
		f.Complete(zero, err)
	}
	return f
}
