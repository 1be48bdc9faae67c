package main

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i5heu/GoRingBench/pkg/handle"
	"github.com/i5heu/GoRingBench/pkg/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Race Condition Test Suite
// =============================================================================
//
// The rings are single-threaded; ring.Locked is the supported way to share
// one. These tests hammer every implementation through Locked and check:
//
// 1. Per-producer order - a consumer never sees a producer's values out of
//    order, even when eviction drops some of them.
//
// 2. Exactly-once release - every produced value is released once, either
//    by a consumer or by eviction, and none survive Close.
//
// Run with -race to also catch unsynchronised access inside an implementation.
//
// =============================================================================

const producerShift = 32

func encode(producer, seq int) int { return producer<<producerShift | seq }

func decode(v int) (producer, seq int) {
	return v >> producerShift, v & (1<<producerShift - 1)
}

func TestConcurrentThroughLocked(t *testing.T) {
	const (
		numProducers = 4
		numConsumers = 3
		perProducer  = 5000
		capacity     = 32
	)

	for _, impl := range getImplementations[*handle.Ref[int]]() {
		t.Run(impl.name, func(t *testing.T) {
			tr := handle.NewTracker[int]()
			inner, err := impl.newRing(capacity, ring.WithOwnership[*handle.Ref[int]](handle.Policy[int]{}))
			require.NoError(t, err)
			r := ring.NewLocked(inner)

			var (
				producersDone atomic.Bool
				consumed      atomic.Int64
				orderErrors   atomic.Int64
				seenMu        sync.Mutex
				seen          = make(map[int]struct{})
			)

			consume := func(last []int, v *handle.Ref[int]) {
				p, seq := decode(v.Value())
				if seq <= last[p] {
					orderErrors.Add(1)
				}
				last[p] = seq
				seenMu.Lock()
				seen[v.Value()] = struct{}{}
				seenMu.Unlock()
				v.Release()
				consumed.Add(1)
			}

			var consumers sync.WaitGroup
			for c := 0; c < numConsumers; c++ {
				consumers.Add(1)
				go func() {
					defer consumers.Done()
					last := make([]int, numProducers)
					for i := range last {
						last[i] = -1
					}
					for {
						v, err := r.Dequeue()
						if err == nil {
							consume(last, v)
							continue
						}
						if producersDone.Load() {
							return
						}
						time.Sleep(time.Microsecond)
					}
				}()
			}

			var producers sync.WaitGroup
			for p := 0; p < numProducers; p++ {
				producers.Add(1)
				go func(p int) {
					defer producers.Done()
					for seq := 0; seq < perProducer; seq++ {
						v := tr.New(encode(p, seq))
						if err := r.Enqueue(v); err != nil {
							t.Errorf("enqueue: %v", err)
						}
						v.Release()
					}
				}(p)
			}

			producers.Wait()
			producersDone.Store(true)
			consumers.Wait()

			// A consumer may have given up between its last failed dequeue and
			// the flag flip, so drain whatever is left.
			last := make([]int, numProducers)
			for i := range last {
				last[i] = -1
			}
			for r.Len() > 0 {
				v, err := r.Dequeue()
				require.NoError(t, err)
				consume(last, v)
			}
			require.NoError(t, r.Close())

			total := numProducers * perProducer
			assert.Zero(t, orderErrors.Load(), "values of one producer were consumed out of order")
			assert.Zero(t, tr.Live(), "values leaked")
			assert.Len(t, tr.Freed(), total, "each value is released exactly once")
			assert.Len(t, seen, int(consumed.Load()), "a value was consumed twice")
			assert.LessOrEqual(t, consumed.Load(), int64(total))
		})
	}
}
