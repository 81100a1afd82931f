package tasks

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// gatedProvider blocks every Set until release is closed and records the
// values it was asked to write.
type gatedProvider struct {
	release  chan struct{}
	started  chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu     sync.Mutex
	values []string
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{release: make(chan struct{}), started: make(chan struct{}, 16)}
}

func (p *gatedProvider) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (p *gatedProvider) Set(_ context.Context, _ string, value string) error {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		m := p.maxSeen.Load()
		if n <= m || p.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	p.started <- struct{}{}
	<-p.release

	p.mu.Lock()
	p.values = append(p.values, value)
	p.mu.Unlock()
	return nil
}

func constant(v string) func() (string, error) {
	return func() (string, error) { return v, nil }
}

func TestWriteQueue_CoalescesPendingValues(t *testing.T) {
	p := newGatedProvider()
	q := newWriteQueue(p, func(string, error) {})
	defer q.close(context.Background())

	q.enqueue("k", constant("v1"))
	select {
	case <-p.started:
	case <-time.After(5 * time.Second):
		t.Fatalf("first write never started")
	}

	// queued while v1 is in flight; only the last one survives
	q.enqueue("k", constant("v2"))
	q.enqueue("k", constant("v3"))
	close(p.release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !reflect.DeepEqual(p.values, []string{"v1", "v3"}) {
		t.Fatalf("expected [v1 v3], got %v", p.values)
	}
}

func TestWriteQueue_NeverOverlapsWrites(t *testing.T) {
	p := newGatedProvider()
	close(p.release)
	q := newWriteQueue(p, func(string, error) {})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.enqueue(string(rune('a'+i)), constant("x"))
			}
		}(i)
	}
	go func() {
		for range p.started {
		}
	}()
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if m := p.maxSeen.Load(); m != 1 {
		t.Fatalf("expected at most one write in flight, saw %d", m)
	}
}

func TestWriteQueue_CloseDrainsAndFlushAfterCloseReturns(t *testing.T) {
	p := newGatedProvider()
	close(p.release)
	go func() {
		for range p.started {
		}
	}()

	var reported atomic.Int32
	q := newWriteQueue(p, func(string, error) { reported.Add(1) })
	q.enqueue("tasks", constant("[]"))
	q.enqueue("categories", constant(`["General"]`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := q.flush(ctx); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
	if reported.Load() != 2 {
		t.Fatalf("expected 2 writes reported, got %d", reported.Load())
	}
}

func TestWriteQueue_FlushHonoursContext(t *testing.T) {
	p := newGatedProvider()
	q := newWriteQueue(p, func(string, error) {})
	t.Cleanup(func() {
		close(p.release)
		_ = q.close(context.Background())
	})

	q.enqueue("k", constant("v"))
	<-p.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.flush(ctx); err == nil {
		t.Fatalf("expected flush to time out while a write is blocked")
	}
}

func TestWriteQueue_EnqueueAfterCloseIsReported(t *testing.T) {
	p := newGatedProvider()
	close(p.release)

	var mu sync.Mutex
	var errs []error
	q := newWriteQueue(p, func(_ string, err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})
	if err := q.close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	q.enqueue("tasks", constant("[]"))

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 || !errors.Is(errs[0], ErrStoreClosed) {
		t.Fatalf("expected one ErrStoreClosed report, got %v", errs)
	}
	if len(q.pending) != 0 {
		t.Fatalf("write after close must not stay pending")
	}
	if got := p.values; len(got) != 0 {
		t.Fatalf("provider should not see writes after close, got %v", got)
	}
}
