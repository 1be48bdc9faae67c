package config

import (
	"fmt"
	"os"
	"time"

	"github.com/i5heu/GoRingBench/internal/testbench"
	"gopkg.in/yaml.v3"
)

// Config is an alias for testbench.Config. This allows other programs to import
// the concurrency configuration without pulling in the entire testbench package.
type Config = testbench.Config

// Bench describes one benchmark session of cmd/bench.
type Bench struct {
	// Iterations of fill-then-drain per capacity and implementation.
	Iterations int `yaml:"iterations"`
	// Capacities every implementation is constructed with.
	Capacities []int `yaml:"capacities"`
	// Concurrency settings for the timed run through ring.Locked.
	Concurrency []Config `yaml:"concurrency"`
	// Duration of each timed run.
	Duration time.Duration `yaml:"duration"`
	// Implementations restricts the run to these names; empty means all.
	Implementations []string `yaml:"implementations"`
	// MemoryFraction caps the slots one session may hold at this share
	// of total system memory. Zero disables the cap.
	MemoryFraction float64 `yaml:"memory_fraction"`
}

// Default runs 1000 fill/drain iterations at capacity 2^16.
func Default() Bench {
	return Bench{
		Iterations: 1000,
		Capacities: []int{1 << 16},
		Concurrency: []Config{
			{NumProducers: 1, NumConsumers: 1},
			{NumProducers: 4, NumConsumers: 4},
		},
		Duration:       2 * time.Second,
		MemoryFraction: 0.25,
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (Bench, error) {
	b := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return b, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("parse config %q: %w", path, err)
	}
	return b, b.Validate()
}

// Validate rejects settings no run can use.
func (b Bench) Validate() error {
	if b.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", b.Iterations)
	}
	if len(b.Capacities) == 0 {
		return fmt.Errorf("at least one capacity is required")
	}
	for _, c := range b.Capacities {
		if c <= 0 {
			return fmt.Errorf("capacity must be positive, got %d", c)
		}
	}
	for _, c := range b.Concurrency {
		if c.NumProducers < 0 || c.NumConsumers < 0 {
			return fmt.Errorf("negative concurrency %+v", c)
		}
	}
	if len(b.Concurrency) > 0 && b.Duration <= 0 {
		return fmt.Errorf("duration must be positive for timed runs, got %v", b.Duration)
	}
	if b.MemoryFraction < 0 || b.MemoryFraction > 1 {
		return fmt.Errorf("memory_fraction must be within [0, 1], got %v", b.MemoryFraction)
	}
	return nil
}
