package testbench

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i5heu/GoRingBench/pkg/ring"
)

// Config is only about concurrency: how many producers, how many consumers.
type Config struct {
	NumProducers int `yaml:"producers" json:"num_producers"`
	NumConsumers int `yaml:"consumers" json:"num_consumers"`
}

// FillDrainResult is the outcome of RunFillDrain.
type FillDrainResult struct {
	Operations int64
	Elapsed    time.Duration
}

// RunFillDrain fills r to MaxLen, drains it again and repeats that
// iterations times. Every enqueue and every dequeue counts as one operation.
func RunFillDrain[T any](r ring.Ring[T], iterations int, valueGenerator func(int) T) (FillDrainResult, error) {
	maxlen := r.MaxLen()
	var ops int64
	start := time.Now()
	for it := 0; it < iterations; it++ {
		for i := 0; i < maxlen; i++ {
			if err := r.Enqueue(valueGenerator(i)); err != nil {
				return FillDrainResult{}, err
			}
		}
		for i := 0; i < maxlen; i++ {
			if _, err := r.Dequeue(); err != nil {
				return FillDrainResult{}, err
			}
		}
		ops += 2 * int64(maxlen)
	}
	return FillDrainResult{Operations: ops, Elapsed: time.Since(start)}, nil
}

// TimedResult is the outcome of RunTimedTest.
type TimedResult struct {
	Produced int64
	Consumed int64
	// Evicted is what the ring dropped to make room: Produced - Consumed
	// once the ring has been drained.
	Evicted int64
	Elapsed time.Duration
}

// RunTimedTest shares r between producers and consumers through a Locked
// wrapper for the given duration. Once the context expires, producers stop
// and consumers drain whatever the ring still holds.
func RunTimedTest[T any](
	r ring.Ring[T],
	cfg Config,
	testDuration time.Duration,
	valueGenerator func(int) T,
) (TimedResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), testDuration)
	defer cancel()

	q := ring.NewLocked(r)

	var totalProduced int64
	var totalConsumed int64
	var msgIndex int64
	var firstErr atomic.Pointer[error]

	start := time.Now()

	var productionDone int32
	go func() {
		<-ctx.Done()
		atomic.StoreInt32(&productionDone, 1)
	}()

	var prodWg sync.WaitGroup
	prodWg.Add(cfg.NumProducers)
	for i := 0; i < cfg.NumProducers; i++ {
		go func() {
			defer prodWg.Done()
			for atomic.LoadInt32(&productionDone) == 0 {
				idx := atomic.AddInt64(&msgIndex, 1) - 1
				if err := q.Enqueue(valueGenerator(int(idx))); err != nil {
					firstErr.CompareAndSwap(nil, &err)
					return
				}
				atomic.AddInt64(&totalProduced, 1)
			}
		}()
	}

	var consWg sync.WaitGroup
	consWg.Add(cfg.NumConsumers)
	for i := 0; i < cfg.NumConsumers; i++ {
		go func() {
			defer consWg.Done()
			for {
				if atomic.LoadInt32(&productionDone) == 1 {
					for {
						if _, err := q.Dequeue(); err != nil {
							break
						}
						atomic.AddInt64(&totalConsumed, 1)
					}
					return
				}
				if _, err := q.Dequeue(); err == nil {
					atomic.AddInt64(&totalConsumed, 1)
				} else if errors.Is(err, ring.ErrEmpty) {
					runtime.Gosched()
				} else {
					firstErr.CompareAndSwap(nil, &err)
					return
				}
			}
		}()
	}

	<-ctx.Done()
	prodWg.Wait()
	consWg.Wait()

	// Without consumers nothing drained the ring.
	for {
		if _, err := q.Dequeue(); err != nil {
			break
		}
		atomic.AddInt64(&totalConsumed, 1)
	}

	res := TimedResult{
		Produced: atomic.LoadInt64(&totalProduced),
		Consumed: atomic.LoadInt64(&totalConsumed),
		Elapsed:  time.Since(start),
	}
	res.Evicted = res.Produced - res.Consumed
	if p := firstErr.Load(); p != nil {
		return res, *p
	}
	return res, nil
}
