package runner

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceReader feeds ints from a slice, batchSize at a time.
type sliceReader struct {
	items []int
	pos   int
	reads atomic.Int64
}

func (r *sliceReader) Read(batchSize int) ([]int, error) {
	r.reads.Add(1)
	if r.pos >= len(r.items) {
		return nil, io.EOF
	}
	end := r.pos + batchSize
	if end > len(r.items) {
		end = len(r.items)
	}
	out := r.items[r.pos:end]
	r.pos = end
	return out, nil
}

// sliceWriter records everything written, with an optional per-call gate.
type sliceWriter struct {
	mu    sync.Mutex
	got   []int
	gate  chan struct{}
	calls int
}

func (w *sliceWriter) Write(items []int) error {
	if w.gate != nil {
		<-w.gate
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	w.got = append(w.got, items...)
	return nil
}

func (w *sliceWriter) written() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]int(nil), w.got...)
}

func inputs(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func doubler() (Task[int, int], error) {
	return TaskFunc[int, int](func(_ context.Context, batch []int) ([]int, error) {
		out := make([]int, len(batch))
		for i, v := range batch {
			out[i] = v * 2
		}
		return out, nil
	}), nil
}

func TestRun_UnorderedCompleteness(t *testing.T) {
	in := inputs(500)
	reader := &sliceReader{items: in}
	writer := &sliceWriter{}

	r, err := New(reader, doubler, writer, Config{Workers: 4, BatchSize: 7}, nil)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	got := writer.written()
	require.Len(t, got, len(in))
	sort.Ints(got)
	for i, v := range got {
		assert.Equal(t, i*2, v)
	}
}

func TestRun_OrderedPreservesInputOrder(t *testing.T) {
	in := inputs(500)
	reader := &sliceReader{items: in}
	writer := &sliceWriter{}

	// A jittery task makes out-of-order completion likely without Ordered.
	jittery := func() (Task[int, int], error) {
		return TaskFunc[int, int](func(_ context.Context, batch []int) ([]int, error) {
			time.Sleep(time.Duration(batch[0]%3) * time.Millisecond)
			return batch, nil
		}), nil
	}
	r, err := New(reader, jittery, writer, Config{Workers: 8, BatchSize: 5, Ordered: true}, nil)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, in, writer.written())
}

func TestRun_SingleWorkerSingleBatch(t *testing.T) {
	reader := &sliceReader{items: inputs(3)}
	writer := &sliceWriter{}

	r, err := New(reader, doubler, writer, Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, []int{0, 2, 4}, writer.written())
	// Batch size defaults to one, so each item is its own write.
	assert.Equal(t, 3, writer.calls)
}

func TestRun_TaskErrorHaltsRun(t *testing.T) {
	reader := &sliceReader{items: inputs(1000)}
	writer := &sliceWriter{}

	failing := func() (Task[int, int], error) {
		return TaskFunc[int, int](func(_ context.Context, batch []int) ([]int, error) {
			if batch[0] >= 50 {
				return nil, fmt.Errorf("store unavailable")
			}
			return batch, nil
		}), nil
	}
	r, err := New(reader, failing, writer, Config{Workers: 4, BatchSize: 10}, nil)
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Less(t, len(writer.written()), 1000)
}

func TestRun_OutputCountMismatchIsError(t *testing.T) {
	reader := &sliceReader{items: inputs(10)}
	writer := &sliceWriter{}

	dropper := func() (Task[int, int], error) {
		return TaskFunc[int, int](func(_ context.Context, batch []int) ([]int, error) {
			return batch[:len(batch)-1], nil
		}), nil
	}
	r, err := New(reader, dropper, writer, Config{Workers: 1, BatchSize: 5}, nil)
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned")
}

func TestRun_BackpressureBoundsReader(t *testing.T) {
	const queueCap = 3
	reader := &sliceReader{items: inputs(100)}
	writer := &sliceWriter{gate: make(chan struct{})}

	r, err := New(reader, doubler, writer, Config{Workers: 1, BatchSize: 1, QueueCapacity: queueCap}, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	// With the writer stalled the reader can run at most both queue
	// capacities ahead, plus the batches parked in the worker, the writer
	// and the reader's own blocked send.
	time.Sleep(50 * time.Millisecond)
	stalled := reader.reads.Load()
	assert.LessOrEqual(t, stalled, int64(2*queueCap+3))

	close(writer.gate)
	require.NoError(t, <-done)
	assert.Len(t, writer.written(), 100)
}

func TestRun_ReaderErrorHaltsRun(t *testing.T) {
	reader := readerFunc(func(int) ([]int, error) {
		return nil, fmt.Errorf("truncated input")
	})
	writer := &sliceWriter{}

	r, err := New(reader, doubler, writer, Config{Workers: 2}, nil)
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated input")
}

type readerFunc func(batchSize int) ([]int, error)

func (f readerFunc) Read(batchSize int) ([]int, error) { return f(batchSize) }

func TestRun_CancelledContext(t *testing.T) {
	reader := &sliceReader{items: inputs(100)}
	writer := &sliceWriter{}

	blocking := func() (Task[int, int], error) {
		return TaskFunc[int, int](func(ctx context.Context, _ []int) ([]int, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), nil
	}
	r, err := New(reader, blocking, writer, Config{Workers: 2, QueueCapacity: 1}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	err = <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, writer.written())
}

func TestNew_FactoryPerWorker(t *testing.T) {
	var created atomic.Int64
	factory := func() (Task[int, int], error) {
		created.Add(1)
		return TaskFunc[int, int](func(_ context.Context, b []int) ([]int, error) { return b, nil }), nil
	}
	_, err := New(&sliceReader{}, factory, &sliceWriter{}, Config{Workers: 6}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(6), created.Load())
}

func TestNew_Errors(t *testing.T) {
	t.Run("nil reader", func(t *testing.T) {
		_, err := New[int, int](nil, doubler, &sliceWriter{}, Config{}, nil)
		assert.Error(t, err)
	})
	t.Run("factory failure", func(t *testing.T) {
		factory := func() (Task[int, int], error) { return nil, fmt.Errorf("no store") }
		_, err := New(&sliceReader{}, factory, &sliceWriter{}, Config{}, nil)
		assert.Error(t, err)
	})
}
