package worker

import (
	"context"
	"sync/atomic"
	"testing"
)

func TestPoolClampsToConfiguredCountWhenBelowCores(t *testing.T) {
	p := New[int](1)
	if p.Count() != 1 {
		t.Errorf("Count() = %d, want 1", p.Count())
	}
}

func TestPoolProcessesAllItems(t *testing.T) {
	p := New[int](2)
	in := make(chan int, 5)
	for i := 0; i < 5; i++ {
		in <- i
	}
	close(in)

	var processed atomic.Int64
	out := p.Run(context.Background(), in, func(ctx context.Context, item int) error {
		processed.Add(1)
		return nil
	})

	count := 0
	for range out {
		count++
	}
	if count != 5 {
		t.Errorf("received %d results, want 5", count)
	}
	if processed.Load() != 5 {
		t.Errorf("processed %d items, want 5", processed.Load())
	}
}

func TestPoolPropagatesHandlerErrors(t *testing.T) {
	p := New[int](2)
	in := make(chan int, 1)
	in <- 1
	close(in)

	out := p.Run(context.Background(), in, func(ctx context.Context, item int) error {
		return errTest
	})

	res := <-out
	if res.Err != errTest {
		t.Errorf("Err = %v, want errTest", res.Err)
	}
}

func TestPoolStopsPickingUpNewItemsAfterCancel(t *testing.T) {
	p := New[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := make(chan int, 1)
	in <- 1
	close(in)

	out := p.Run(ctx, in, func(ctx context.Context, item int) error {
		t.Fatal("handler should not run after context is already cancelled")
		return nil
	})
	for range out {
	}
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
