// Package runner implements a generic bounded parallel task runner: one
// reader goroutine producing fixed-size batches, a bounded queue giving the
// reader backpressure, a pool of workers applying a per-worker task, and one
// writer goroutine. With Ordered set, batches are reassembled into input
// order before writing.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Reader produces input batches. Read returns up to batchSize items and
// io.EOF once the source is exhausted; it is called from a single goroutine.
type Reader[I any] interface {
	Read(batchSize int) ([]I, error)
}

// Writer consumes output batches from a single goroutine.
type Writer[O any] interface {
	Write(items []O) error
}

// Task transforms one batch. Implementations must return exactly one output
// per input item; per-item failures are handled inside the task so items are
// never dropped. A returned error is fatal and halts the run.
type Task[I, O any] interface {
	Apply(ctx context.Context, batch []I) ([]O, error)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc[I, O any] func(ctx context.Context, batch []I) ([]O, error)

// Apply implements Task.
func (f TaskFunc[I, O]) Apply(ctx context.Context, batch []I) ([]O, error) {
	return f(ctx, batch)
}

// Config sizes a run. Zero values fall back to single-worker, batch-of-one,
// queue-of-QueueCapacity defaults; validation with clamp warnings happens in
// the config package before a runner is built.
type Config struct {
	Workers       int
	BatchSize     int
	QueueCapacity int
	Ordered       bool
}

const defaultQueueCapacity = 10

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.QueueCapacity < 1 {
		c.QueueCapacity = defaultQueueCapacity
	}
	return c
}

// batch pairs items with their input sequence number for ordered reassembly.
type batch[T any] struct {
	seq   int
	items []T
}

// Runner drives one reader, a worker pool and one writer to completion.
type Runner[I, O any] struct {
	reader Reader[I]
	writer Writer[O]
	tasks  []Task[I, O]
	cfg    Config
	logger *slog.Logger
}

// New builds a runner. factory is invoked once per worker so tasks may hold
// per-worker state without synchronization.
func New[I, O any](reader Reader[I], factory func() (Task[I, O], error), writer Writer[O], cfg Config, logger *slog.Logger) (*Runner[I, O], error) {
	if reader == nil || writer == nil || factory == nil {
		return nil, fmt.Errorf("runner needs a reader, a task factory and a writer")
	}
	cfg = cfg.withDefaults()
	tasks := make([]Task[I, O], cfg.Workers)
	for i := range tasks {
		t, err := factory()
		if err != nil {
			return nil, fmt.Errorf("creating task for worker %d: %w", i, err)
		}
		tasks[i] = t
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner[I, O]{reader: reader, writer: writer, tasks: tasks, cfg: cfg, logger: logger}, nil
}

// Run executes the pipeline until the reader reports end-of-input and all
// in-flight batches have drained, or until the first fatal error. Any worker
// or writer failure cancels the whole run.
func (r *Runner[I, O]) Run(ctx context.Context) error {
	jobs := make(chan batch[I], r.cfg.QueueCapacity)
	results := make(chan batch[O], r.cfg.QueueCapacity)

	g, ctx := errgroup.WithContext(ctx)

	// Reader: the send blocks once QueueCapacity batches are in flight,
	// which is exactly the backpressure bound.
	g.Go(func() error {
		defer close(jobs)
		seq := 0
		for {
			items, err := r.reader.Read(r.cfg.BatchSize)
			if len(items) > 0 {
				select {
				case jobs <- batch[I]{seq: seq, items: items}:
					seq++
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
		}
	})

	// Workers. A separate WaitGroup closes results once they all return so
	// the writer can drain and exit.
	var workers sync.WaitGroup
	workers.Add(len(r.tasks))
	for i, task := range r.tasks {
		g.Go(func() error {
			defer workers.Done()
			for b := range jobs {
				out, err := task.Apply(ctx, b.items)
				if err != nil {
					return fmt.Errorf("worker %d: %w", i, err)
				}
				if len(out) != len(b.items) {
					return fmt.Errorf("worker %d: task got %d items, returned %d", i, len(b.items), len(out))
				}
				select {
				case results <- batch[O]{seq: b.seq, items: out}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	// Writer.
	g.Go(func() error {
		if r.cfg.Ordered {
			return r.writeOrdered(results)
		}
		for b := range results {
			if err := r.writer.Write(b.items); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		}
		return nil
	})

	return g.Wait()
}

// writeOrdered holds completed batches until every earlier batch has been
// written, restoring input order across workers.
func (r *Runner[I, O]) writeOrdered(results <-chan batch[O]) error {
	pending := make(map[int][]O)
	next := 0
	for b := range results {
		pending[b.seq] = b.items
		for {
			items, ok := pending[next]
			if !ok {
				break
			}
			if err := r.writer.Write(items); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			delete(pending, next)
			next++
		}
	}
	if len(pending) > 0 {
		// Only reachable when an upstream stage failed mid-run; the
		// errgroup error wins, this is just bookkeeping.
		r.logger.Debug("discarding out-of-order batches after aborted run", "count", len(pending))
	}
	return nil
}
