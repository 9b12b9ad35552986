package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWriter_PerKeyOrder(t *testing.T) {
	w := NewWriter(Config{Workers: 4, QueueSize: 256})
	defer w.Close(context.Background())

	var mu sync.Mutex
	got := map[string][]int{}
	for i := 0; i < 50; i++ {
		for _, key := range []string{"a", "b", "c"} {
			i, key := i, key
			w.Go("append", key, func(context.Context) error {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
				return nil
			})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	for key, seq := range got {
		if len(seq) != 50 {
			t.Fatalf("%s ran %d tasks, want 50", key, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("%s out of order at %d: %v", key, i, seq)
			}
		}
	}
}

func TestWriter_FailuresDoNotStopQueue(t *testing.T) {
	w := NewWriter(Config{Workers: 1, QueueSize: 8})
	defer w.Close(context.Background())

	var ran atomic.Int32
	w.Go("fail", "k", func(context.Context) error { return errors.New("boom") })
	w.Go("panic", "k", func(context.Context) error { panic("bad") })
	w.Go("ok", "k", func(context.Context) error { ran.Add(1); return nil })

	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if ran.Load() != 1 {
		t.Error("task after failures did not run")
	}
}

func TestWriter_QueueFull(t *testing.T) {
	w := NewWriter(Config{Workers: 1, QueueSize: 1})

	block := make(chan struct{})
	started := make(chan struct{})
	if err := w.Submit(Task{Op: "block", Key: "k", Fn: func(context.Context) error {
		close(started)
		<-block
		return nil
	}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	if err := w.Submit(Task{Op: "fill", Key: "k", Fn: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("Submit fill: %v", err)
	}
	if err := w.Submit(Task{Op: "over", Key: "k", Fn: func(context.Context) error { return nil }}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}

	close(block)
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWriter_CloseDrainsAndRejects(t *testing.T) {
	w := NewWriter(Config{Workers: 2, QueueSize: 64})

	var ran atomic.Int32
	for i := 0; i < 20; i++ {
		w.Go("count", fmt.Sprint(i), func(context.Context) error { ran.Add(1); return nil })
	}
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if ran.Load() != 20 {
		t.Errorf("ran %d tasks before close returned, want 20", ran.Load())
	}
	if err := w.Submit(Task{Op: "late", Fn: func(context.Context) error { return nil }}); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("err = %v, want ErrWriterClosed", err)
	}
	if err := w.Close(context.Background()); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestWriter_Timeout(t *testing.T) {
	w := NewWriter(Config{Workers: 1, QueueSize: 4, Timeout: 10 * time.Millisecond})
	defer w.Close(context.Background())

	errCh := make(chan error, 1)
	w.Go("slow", "k", func(ctx context.Context) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	})

	select {
	case err := <-errCh:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want deadline exceeded", err)
		}
	case <-time.After(time.Second):
		t.Fatal("task context never expired")
	}
}

func TestWriter_FlushWaitsForTasksSubmittedWhileWaiting(t *testing.T) {
	w := NewWriter(Config{Workers: 2, QueueSize: 64})
	defer w.Close(context.Background())

	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("Flush on idle writer: %v", err)
	}

	// Each task queues the next one on another key, so new work arrives
	// while Flush is already waiting.
	var ran atomic.Int32
	var chain func(n int) func(context.Context) error
	chain = func(n int) func(context.Context) error {
		return func(context.Context) error {
			ran.Add(1)
			if n > 1 {
				w.Go("chain", fmt.Sprintf("k%d", n), chain(n-1))
			}
			return nil
		}
	}
	w.Go("chain", "k0", chain(20))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n := ran.Load(); n != 20 {
		t.Errorf("ran %d tasks before Flush returned, want 20", n)
	}
}

func TestWriter_FlushHonoursContext(t *testing.T) {
	w := NewWriter(Config{Workers: 1, QueueSize: 4})
	block := make(chan struct{})
	defer func() {
		close(block)
		w.Close(context.Background())
	}()
	w.Go("block", "k", func(context.Context) error { <-block; return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}
