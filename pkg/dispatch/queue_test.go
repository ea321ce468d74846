package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueue_RunsInOrder(t *testing.T) {
	q := NewQueue("test", nil)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 100; i++ {
		i := i
		if err := q.Async(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Async failed: %v", err)
		}
	}
	q.Close()

	if len(order) != 100 {
		t.Fatalf("expected 100 items, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("item %d ran at position %d", v, i)
		}
	}
}

func TestQueue_AsyncAfterClose(t *testing.T) {
	q := NewQueue("test", nil)
	q.Close()

	if err := q.Async(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	f := Submit(q, func() (int, error) { return 1, nil })
	if _, err := f.Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from future, got %v", err)
	}
}

func TestSubmit_ResolvesWithResult(t *testing.T) {
	q := NewQueue("test", nil)
	defer q.Close()

	f := Submit(q, func() (string, error) { return "ok", nil })
	v, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if v != "ok" {
		t.Errorf("expected ok, got %q", v)
	}

	boom := errors.New("boom")
	f2 := Submit(q, func() (string, error) { return "", boom })
	if _, err := f2.Wait(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestSubmit_PanicBecomesError(t *testing.T) {
	var reported any
	q := NewQueue("test", func(name string, v any) { reported = v })

	f := Submit(q, func() (int, error) { panic("kaboom") })
	if _, err := f.Wait(context.Background()); err == nil {
		t.Error("expected error from panicking work item")
	}

	// The queue keeps serving after a panic.
	f2 := Submit(q, func() (int, error) { return 7, nil })
	if v, err := f2.Wait(context.Background()); err != nil || v != 7 {
		t.Errorf("expected 7, got %d, %v", v, err)
	}

	q.Async(func() { panic("raw") })
	q.Close()
	if reported != "raw" {
		t.Errorf("expected raw panic to be reported, got %v", reported)
	}
}

func TestFuture_WaitHonorsContext(t *testing.T) {
	f := NewFuture[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if f.IsResolved() {
		t.Error("expected unresolved future")
	}

	f.Complete(3, nil)
	f.Complete(4, errors.New("ignored"))
	v, err := f.Wait(context.Background())
	if v != 3 || err != nil {
		t.Errorf("expected first completion to win, got %d, %v", v, err)
	}
}
