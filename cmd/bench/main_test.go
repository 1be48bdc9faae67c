package main

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/i5heu/GoRingBench/pkg/handle"
	"github.com/i5heu/GoRingBench/pkg/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRing = ring.Ring[*handle.Ref[int]]

// harness bundles a ring under test with the tracker that owns its values.
type harness struct {
	t       *testing.T
	ring    testRing
	tracker *handle.Tracker[int]
}

// enqueue hands a fresh tracked value to the ring and drops the caller's reference.
func (h *harness) enqueue(v int) {
	h.t.Helper()
	r := h.tracker.New(v)
	require.NoError(h.t, h.ring.Enqueue(r))
	r.Release()
}

// dequeue takes the oldest value and drops the reference the ring handed over.
func (h *harness) dequeue() int {
	h.t.Helper()
	r, err := h.ring.Dequeue()
	require.NoError(h.t, err)
	require.NotNil(h.t, r)
	v := r.Value()
	require.EqualValues(h.t, 1, r.Count(), "dequeued value %d must carry exactly the ring's reference", v)
	r.Release()
	return v
}

func (h *harness) requireEmpty() {
	h.t.Helper()
	_, err := h.ring.Dequeue()
	require.ErrorIs(h.t, err, ring.ErrEmpty)
	require.Zero(h.t, ring.Len(h.ring))
}

// withAllRings is a test helper that loops over all implementations
// and calls your test function for each one with a tracked, empty ring.
// The ring is closed afterwards and every tracked value must have been
// released exactly once.
func withAllRings(t *testing.T, capacity int, testedFeatures []string, fn func(t *testing.T, h *harness, impl Implementation[*handle.Ref[int]])) {
	t.Helper()
	for _, impl := range getImplementations[*handle.Ref[int]]() {
		t.Run(impl.name, func(t *testing.T) {
			for _, feature := range testedFeatures {
				if !impl.hasFeature(feature) {
					t.Skipf("Skipping: missing feature %q", feature)
				}
			}

			tr := handle.NewTracker[int]()
			r, err := impl.newRing(capacity, ring.WithOwnership[*handle.Ref[int]](handle.Policy[int]{}))
			require.NoError(t, err)

			h := &harness{t: t, ring: r, tracker: tr}
			fn(t, h, impl)

			require.NoError(t, r.Close())
			assert.Zero(t, tr.Live(), "values leaked after Close")
		})
	}
}

func TestFIFOWithinCapacity(t *testing.T) {
	const c = 8
	for n := 0; n <= c; n++ {
		withAllRings(t, c, []string{"FIFO"}, func(t *testing.T, h *harness, _ Implementation[*handle.Ref[int]]) {
			for i := 1; i <= n; i++ {
				h.enqueue(i)
			}
			require.Equal(t, n, ring.Len(h.ring))
			for i := 1; i <= n; i++ {
				require.Equal(t, i, h.dequeue())
			}
			h.requireEmpty()
		})
	}
}

func TestOldestEviction(t *testing.T) {
	const c = 5
	for _, m := range []int{c + 1, 2 * c, 3*c + 2} {
		withAllRings(t, c, []string{"Evicting"}, func(t *testing.T, h *harness, _ Implementation[*handle.Ref[int]]) {
			for i := 1; i <= m; i++ {
				h.enqueue(i)
			}
			require.Equal(t, c, ring.Len(h.ring))

			evicted := h.tracker.Freed()
			require.Len(t, evicted, m-c)
			for i, v := range evicted {
				assert.Equal(t, i+1, v, "evicted values are released oldest first")
			}

			for i := m - c + 1; i <= m; i++ {
				require.Equal(t, i, h.dequeue())
			}
			h.requireEmpty()
		})
	}
}

func TestInvalidCapacity(t *testing.T) {
	for _, impl := range getImplementations[*int]() {
		t.Run(impl.name, func(t *testing.T) {
			for _, c := range []int{0, -1, -1 << 20} {
				r, err := impl.newRing(c)
				assert.ErrorIs(t, err, ring.ErrInvalidCapacity, "capacity %d", c)
				assert.Nil(t, r)
			}
		})
	}
}

func TestEmptyDequeue(t *testing.T) {
	withAllRings(t, 3, nil, func(t *testing.T, h *harness, _ Implementation[*handle.Ref[int]]) {
		h.requireEmpty()
		h.requireEmpty()
		assert.Equal(t, 3, ring.MaxLen(h.ring))
	})
}

func TestInterleaving(t *testing.T) {
	withAllRings(t, 3, nil, func(t *testing.T, h *harness, _ Implementation[*handle.Ref[int]]) {
		h.enqueue(1)
		h.enqueue(2)
		h.enqueue(3)
		require.Equal(t, 1, h.dequeue())
		h.enqueue(4)
		h.enqueue(5) // evicts 2
		require.Equal(t, 3, ring.Len(h.ring))
		assert.Equal(t, []int{1, 2}, h.tracker.Freed())

		for _, want := range []int{3, 4, 5} {
			require.Equal(t, want, h.dequeue())
		}
		h.requireEmpty()
	})
}

// TestScriptedSequence walks capacity 5 through partial drain and
// eviction, then capacity 1 where every enqueue replaces the value.
func TestScriptedSequence(t *testing.T) {
	withAllRings(t, 5, nil, func(t *testing.T, h *harness, _ Implementation[*handle.Ref[int]]) {
		assert.Zero(t, ring.Len(h.ring))
		h.enqueue(1)
		h.enqueue(2)
		assert.Equal(t, 2, ring.Len(h.ring))
		assert.Equal(t, 1, h.dequeue())
		assert.Equal(t, 1, ring.Len(h.ring))
		for i := 3; i <= 6; i++ {
			h.enqueue(i)
		}
		assert.Equal(t, 5, ring.Len(h.ring))
		h.enqueue(7)
		assert.Equal(t, 5, ring.Len(h.ring))
		assert.Equal(t, 3, h.dequeue())
		assert.Equal(t, 4, ring.Len(h.ring))
		assert.Equal(t, 4, h.dequeue())
		assert.Equal(t, 3, ring.Len(h.ring))
	})
	withAllRings(t, 1, nil, func(t *testing.T, h *harness, _ Implementation[*handle.Ref[int]]) {
		h.enqueue(1)
		assert.Equal(t, 1, ring.Len(h.ring))
		h.enqueue(2)
		assert.Equal(t, 1, ring.Len(h.ring))
		assert.Equal(t, 2, h.dequeue())
		h.requireEmpty()
	})
}

func TestClosedRingRejectsOperations(t *testing.T) {
	for _, impl := range getImplementations[*int]() {
		t.Run(impl.name, func(t *testing.T) {
			r, err := impl.newRing(2)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			require.NoError(t, r.Close())

			x := 1
			assert.ErrorIs(t, r.Enqueue(&x), ring.ErrClosed)
			_, err = r.Dequeue()
			assert.True(t, errors.Is(err, ring.ErrClosed))
		})
	}
}

func TestMarkdownTable(t *testing.T) {
	session := FullReport{
		SessionTime: time.Now().Format(time.RFC3339),
		Benchmarks: []BenchmarkResult{
			{Implementation: "RingList", Mode: modeFillDrain, Capacity: 8, NsPerOp: 20},
			{Implementation: "RingBuffer", Mode: modeFillDrain, Capacity: 8, NsPerOp: 5},
			{Implementation: "RingBuffer", Mode: modeTimed, Capacity: 8, NsPerOp: 1},
		},
	}
	out := markdownTable(session)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// title, blank line, header, separator, then fill-drain rows fastest first
	require.Len(t, lines, 6)
	assert.Contains(t, lines[4], "RingBuffer")
	assert.Contains(t, lines[4], "ringbuffer")
	assert.Contains(t, lines[4], "Mia Heidenstedt")
	assert.Contains(t, lines[5], "RingList")
}

func TestSelectImplementations(t *testing.T) {
	all := getImplementations[*int]()
	assert.Len(t, selectImplementations(all, nil), len(all))

	got := selectImplementations(all, []string{"RingListFixed", "chanring"})
	require.Len(t, got, 2)
	assert.Equal(t, "RingListFixed", got[0].name)
	assert.Equal(t, "ChanRing", got[1].name)
}

type failingCloseRing struct {
	ring.Ring[*int]
}

func (failingCloseRing) Close() error { return errors.New("storage still referenced") }

func TestCloseRingReportsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	inner, err := getImplementations[*int]()[0].newRing(4)
	require.NoError(t, err)
	defer inner.Close()

	err = closeRing[*int](failingCloseRing{inner}, "RingBuffer", logger)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "closing ring failed")
	assert.Contains(t, buf.String(), "storage still referenced")

	assert.NoError(t, closeRing(inner, "RingBuffer", logger))
}

func BenchmarkEnqueueDequeue(b *testing.B) {
	for _, impl := range getImplementations[*int]() {
		b.Run(impl.name, func(b *testing.B) {
			q, err := impl.newRing(1024)
			if err != nil {
				b.Fatal(err)
			}
			defer q.Close()
			x := 0
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = q.Enqueue(&x)
				if _, err := q.Dequeue(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkEvictingEnqueue(b *testing.B) {
	for _, impl := range getImplementations[*int]() {
		b.Run(impl.name, func(b *testing.B) {
			q, err := impl.newRing(1024)
			if err != nil {
				b.Fatal(err)
			}
			defer q.Close()
			x := 0
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = q.Enqueue(&x)
			}
		})
	}
}
