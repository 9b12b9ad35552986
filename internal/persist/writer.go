package persist

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-messenger/internal/metrics"
	"github.com/weiawesome/wes-io-messenger/pkg/log"
)

var (
	ErrQueueFull    = errors.New("persist: queue full")
	ErrWriterClosed = errors.New("persist: writer closed")
)

// Task is one asynchronous write.
type Task struct {
	Op  string // operation name for logs and metrics
	Key string // entity key; tasks with the same key run in submit order
	Fn  func(ctx context.Context) error
}

// Config holds writer sizing.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per task; zero means no deadline
}

// Writer runs persistence tasks off the routing path. Tasks are sharded by
// key over a fixed set of workers, each draining its own bounded FIFO.
// Failures are logged here and never returned to the submitter.
type Writer struct {
	queues  []chan Task
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup

	// pending counts submitted tasks not yet finished; idle is closed
	// whenever it is zero.
	pendingMu sync.Mutex
	pending   int
	idle      chan struct{}
}

func NewWriter(cfg Config) *Writer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		queues:  make([]chan Task, cfg.Workers),
		timeout: cfg.Timeout,
		ctx:     ctx,
		cancel:  cancel,
		idle:    make(chan struct{}),
	}
	close(w.idle)
	for i := range w.queues {
		w.queues[i] = make(chan Task, cfg.QueueSize)
		w.workers.Add(1)
		go w.run(w.queues[i])
	}
	return w
}

// Submit queues t without blocking.
func (w *Writer) Submit(t Task) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrWriterClosed
	}

	w.addPending()
	select {
	case w.queues[w.shard(t.Key)] <- t:
		return nil
	default:
		w.donePending()
		metrics.PersistQueued.WithLabelValues(t.Op, "dropped").Inc()
		l := log.L()
		l.Error().Str(log.FieldOperation, t.Op).Str("key", t.Key).Msg("persist queue full, write dropped")
		return ErrQueueFull
	}
}

// Go is shorthand for Submit with a closure. The error is already logged.
func (w *Writer) Go(op, key string, fn func(ctx context.Context) error) {
	_ = w.Submit(Task{Op: op, Key: key, Fn: fn})
}

// Flush waits until no task is pending or ctx is done. Tasks submitted while
// it waits are waited for too.
func (w *Writer) Flush(ctx context.Context) error {
	w.pendingMu.Lock()
	idle := w.idle
	w.pendingMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) addPending() {
	w.pendingMu.Lock()
	if w.pending == 0 {
		w.idle = make(chan struct{})
	}
	w.pending++
	w.pendingMu.Unlock()
}

func (w *Writer) donePending() {
	w.pendingMu.Lock()
	w.pending--
	if w.pending == 0 {
		close(w.idle)
	}
	w.pendingMu.Unlock()
}

// Close stops accepting tasks and drains the queues. Tasks still queued
// when ctx is done are abandoned with a cancelled context.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, q := range w.queues {
		close(q)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		return ctx.Err()
	}
}

func (w *Writer) shard(key string) int {
	if len(w.queues) == 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(w.queues)))
}

func (w *Writer) run(q <-chan Task) {
	defer w.workers.Done()
	for t := range q {
		w.exec(t)
		w.donePending()
	}
}

func (w *Writer) exec(t Task) {
	ctx := w.ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.PersistQueued.WithLabelValues(t.Op, "error").Inc()
			l := log.L()
			l.Error().Str(log.FieldOperation, t.Op).Str("key", t.Key).Interface("panic", r).Msg("persist task panicked")
		}
	}()

	err := t.Fn(ctx)
	metrics.PersistLatency.WithLabelValues(t.Op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PersistQueued.WithLabelValues(t.Op, "error").Inc()
		l := log.L()
		l.Error().Err(err).Str(log.FieldOperation, t.Op).Str("key", t.Key).Msg("persist task failed")
		return
	}
	metrics.PersistQueued.WithLabelValues(t.Op, "ok").Inc()
}
