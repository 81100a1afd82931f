package tasks

import (
	"context"
	"errors"
	"sync"

	"github.com/s1natex/lightly-tasks/internal/storage"
)

// ErrStoreClosed is reported for mutations made after Close; they stay in
// memory but are never written.
var ErrStoreClosed = errors.New("task store closed")

// writeQueue serialises provider writes for one store. Each key holds at most
// one pending render func; values are rendered when the write is issued, so a
// burst of mutations collapses into one write of the latest state.
type writeQueue struct {
	provider storage.Provider
	report   func(key string, err error)

	mu      sync.Mutex
	pending map[string]func() (string, error)
	order   []string
	closed  bool // guarded by mu

	wake    chan struct{}
	flushes chan chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

func newWriteQueue(p storage.Provider, report func(key string, err error)) *writeQueue {
	q := &writeQueue{
		provider: p,
		report:   report,
		pending:  make(map[string]func() (string, error)),
		wake:     make(chan struct{}, 1),
		flushes:  make(chan chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *writeQueue) enqueue(key string, render func() (string, error)) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.report(key, ErrStoreClosed)
		return
	}
	if _, ok := q.pending[key]; !ok {
		q.order = append(q.order, key)
	}
	q.pending[key] = render
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *writeQueue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.wake:
			q.drain()
		case ack := <-q.flushes:
			q.drain()
			close(ack)
		case <-q.stop:
			q.drain()
			return
		}
	}
}

func (q *writeQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.order) == 0 {
			q.mu.Unlock()
			return
		}
		key := q.order[0]
		q.order = q.order[1:]
		render := q.pending[key]
		delete(q.pending, key)
		q.mu.Unlock()

		value, err := render()
		if err == nil {
			err = q.provider.Set(context.Background(), key, value)
		}
		q.report(key, err)
	}
}

// flush returns once every key enqueued before the call has been written.
func (q *writeQueue) flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case q.flushes <- ack:
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting writes. Everything enqueued before it is still
// drained.
func (q *writeQueue) close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.stop)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
