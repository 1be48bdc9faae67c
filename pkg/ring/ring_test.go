package ring_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/i5heu/GoRingBench/pkg/ring"
	"github.com/i5heu/GoRingBench/pkg/ringbuffer"
	"github.com/i5heu/GoRingBench/pkg/ringlistfixed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, ring.Wrap(nil, "RingBuffer", "New", "x"))

	err := ring.Wrap(ring.ErrEmpty, "RingList", "Dequeue", "load value")
	assert.EqualError(t, err, "RingList.Dequeue: load value failed: dequeue from an empty ring")
	assert.ErrorIs(t, err, ring.ErrEmpty)

	cause := errors.New("boom")
	err = ring.WrapAllocation(cause, "RingListFixed", "New", "allocate nodes")
	assert.ErrorIs(t, err, ring.ErrAllocation)
	assert.ErrorIs(t, err, cause)
}

func TestCheckCapacity(t *testing.T) {
	assert.NoError(t, ring.CheckCapacity(1, "X"))
	err := ring.CheckCapacity(0, "X")
	assert.ErrorIs(t, err, ring.ErrInvalidCapacity)
	assert.Contains(t, err.Error(), "got 0")
}

func TestLengthFacade(t *testing.T) {
	a, err := ringbuffer.New[int](4)
	require.NoError(t, err)
	b, err := ringlistfixed.New[int](4)
	require.NoError(t, err)

	for _, r := range []ring.Ring[int]{a, b} {
		require.NoError(t, r.Enqueue(1))
		require.NoError(t, r.Enqueue(2))
		assert.Equal(t, 2, ring.Len(r))
		assert.Equal(t, 4, ring.MaxLen(r))
		assert.Equal(t, 2, ring.Free(r))
	}
}

func TestReleaseFunc(t *testing.T) {
	var dropped []int
	b, err := ringbuffer.New(2, ring.WithReleaseFunc(func(v int) { dropped = append(dropped, v) }))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Enqueue(i))
	}
	assert.Equal(t, []int{0, 1}, dropped)

	require.NoError(t, b.Close())
	assert.Equal(t, []int{0, 1, 2, 3}, dropped)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	b, err := ringbuffer.New(2, ring.WithMetrics[int](reg, "events"))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Enqueue(i))
	}
	_, err = b.Dequeue()
	require.NoError(t, err)

	expected := `
# HELP ringbench_ring_dequeued_total Total number of values returned by Dequeue
# TYPE ringbench_ring_dequeued_total counter
ringbench_ring_dequeued_total{ring="events"} 1
# HELP ringbench_ring_enqueued_total Total number of values accepted by Enqueue
# TYPE ringbench_ring_enqueued_total counter
ringbench_ring_enqueued_total{ring="events"} 4
# HELP ringbench_ring_evicted_total Total number of oldest values dropped to make room
# TYPE ringbench_ring_evicted_total counter
ringbench_ring_evicted_total{ring="events"} 2
# HELP ringbench_ring_size Current number of values held
# TYPE ringbench_ring_size gauge
ringbench_ring_size{ring="events"} 1
# HELP ringbench_ring_utilization Size as a fraction of capacity (0.0 to 1.0)
# TYPE ringbench_ring_utilization gauge
ringbench_ring_utilization{ring="events"} 0.5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected)))

	// A second ring with the same name collides until the first is closed.
	_, err = ringbuffer.New(2, ring.WithMetrics[int](reg, "events"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics registration")

	require.NoError(t, b.Close())
	c, err := ringbuffer.New(2, ring.WithMetrics[int](reg, "events"))
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestLockedConcurrentUse(t *testing.T) {
	b, err := ringbuffer.New[int](64)
	require.NoError(t, err)
	l := ring.NewLocked[int](b)

	const producers, perProducer = 8, 1000
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = l.Enqueue(i)
				if i%3 == 0 {
					_, _ = l.Dequeue()
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, l.Len(), l.MaxLen())
	assert.Equal(t, 64, l.MaxLen())
	require.NoError(t, l.Close())
}
