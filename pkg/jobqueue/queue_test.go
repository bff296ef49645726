package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := New(4)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, k))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Dequeue(ctx)
		require.True(t, ok)
		assert.Equal(t, want, got)
		q.MarkDone()
	}

	require.NoError(t, q.WaitAllDone(ctx))
	assert.Equal(t, Stats{Enqueued: 3, Completed: 3, Outstanding: 0}, q.Stats())
}

func TestWaitAllDoneEmptyQueue(t *testing.T) {
	q := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, q.WaitAllDone(ctx))
}

func TestWaitAllDoneBlocksUntilAcknowledged(t *testing.T) {
	q := New(2)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, "k"))

	_, ok := q.Dequeue(ctx)
	require.True(t, ok)

	// Dequeued but not acknowledged: still outstanding.
	short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.WaitAllDone(short), context.DeadlineExceeded)
	assert.Equal(t, int64(1), q.Stats().Outstanding)

	q.MarkDone()
	require.NoError(t, q.WaitAllDone(ctx))
}

func TestCloseStopsEveryConsumer(t *testing.T) {
	const consumers = 5
	q := New(0)

	var stopped atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, ok := q.Dequeue(context.Background()); !ok {
					stopped.Add(1)
					return
				}
				q.MarkDone()
			}
		}()
	}

	q.Close()
	q.Close()
	wg.Wait()

	assert.Equal(t, int32(consumers), stopped.Load())
}

func TestCloseDeliversBufferedKeys(t *testing.T) {
	q := New(3)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, "x"))
	require.NoError(t, q.Enqueue(ctx, "y"))
	q.Close()

	var got []string
	for {
		k, ok := q.Dequeue(ctx)
		if !ok {
			break
		}
		got = append(got, k)
		q.MarkDone()
	}
	assert.Equal(t, []string{"x", "y"}, got)
}

func TestEnqueueAfterClose(t *testing.T) {
	q := New(1)
	q.Close()
	assert.ErrorIs(t, q.Enqueue(context.Background(), "late"), ErrClosed)
	assert.Equal(t, int64(0), q.Stats().Outstanding)
}

func TestEnqueueCancelledWhileFull(t *testing.T) {
	q := New(1)
	require.NoError(t, q.Enqueue(context.Background(), "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, "second"), context.DeadlineExceeded)

	// The cancelled enqueue must not leave a phantom outstanding job.
	assert.Equal(t, Stats{Enqueued: 1, Completed: 0, Outstanding: 1}, q.Stats())
}

func TestDequeueContextCancel(t *testing.T) {
	q := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := q.Dequeue(ctx)
	assert.False(t, ok)
}

func TestMarkDoneWithoutEnqueuePanics(t *testing.T) {
	q := New(1)
	assert.Panics(t, q.MarkDone)
}

func TestQueueEveryKeyDequeuedOnce(t *testing.T) {
	tests := []struct {
		keys      int
		consumers int
		capacity  int
	}{
		{0, 3, 2},
		{1, 5, 10},
		{100, 1, 0},
		{1000, 8, 16},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("keys=%d/consumers=%d", tt.keys, tt.consumers), func(t *testing.T) {
			q := New(tt.capacity)
			ctx := context.Background()

			var mu sync.Mutex
			seen := make(map[string]int)

			var wg sync.WaitGroup
			for i := 0; i < tt.consumers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						k, ok := q.Dequeue(ctx)
						if !ok {
							return
						}
						mu.Lock()
						seen[k]++
						mu.Unlock()
						q.MarkDone()
					}
				}()
			}

			for i := 0; i < tt.keys; i++ {
				require.NoError(t, q.Enqueue(ctx, fmt.Sprintf("key-%d", i)))
			}
			require.NoError(t, q.WaitAllDone(ctx))
			q.Close()
			wg.Wait()

			assert.Len(t, seen, tt.keys)
			for k, n := range seen {
				assert.Equal(t, 1, n, "key %s dequeued %d times", k, n)
			}
			assert.Equal(t, int64(tt.keys), q.Stats().Completed)
		})
	}
}
