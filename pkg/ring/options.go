package ring

import (
	"log/slog"

	"github.com/i5heu/GoRingBench/pkg/alloc"
	"github.com/prometheus/client_golang/prometheus"
)

// Ownership decides what holding a value means. A ring calls Retain once
// for every accepted value and Release once for every value it evicts or
// still holds when closed. Values handed out by Dequeue are not released:
// the ring's reference moves to the caller.
type Ownership[T any] interface {
	Retain(v T)
	Release(v T)
}

// ReleaseFunc adapts a plain eviction callback to Ownership.
type ReleaseFunc[T any] func(v T)

func (f ReleaseFunc[T]) Retain(T) {}

func (f ReleaseFunc[T]) Release(v T) {
	if f != nil {
		f(v)
	}
}

type noOwnership[T any] struct{}

func (noOwnership[T]) Retain(T)  {}
func (noOwnership[T]) Release(T) {}

// Option configures a ring at construction time.
type Option[T any] func(*options[T])

type options[T any] struct {
	ownership     Ownership[T]
	allocator     alloc.Allocator
	logger        *slog.Logger
	registerer    prometheus.Registerer
	metricsPrefix string
}

// WithOwnership sets the retain/release policy for stored values.
func WithOwnership[T any](o Ownership[T]) Option[T] {
	return func(opts *options[T]) {
		if o != nil {
			opts.ownership = o
		}
	}
}

// WithReleaseFunc is shorthand for WithOwnership(ReleaseFunc(f)).
func WithReleaseFunc[T any](f func(T)) Option[T] {
	return WithOwnership[T](ReleaseFunc[T](f))
}

// WithAllocator accounts the ring's storage against a.
func WithAllocator[T any](a alloc.Allocator) Option[T] {
	return func(opts *options[T]) {
		if a != nil {
			opts.allocator = a
		}
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(opts *options[T]) {
		if l != nil {
			opts.logger = l
		}
	}
}

// WithMetrics exports ring counters to reg, labelled with name.
// Ignored if reg is nil or name is empty.
func WithMetrics[T any](reg prometheus.Registerer, name string) Option[T] {
	return func(opts *options[T]) {
		if reg != nil && name != "" {
			opts.registerer = reg
			opts.metricsPrefix = name
		}
	}
}

// Env is the resolved configuration a ring implementation runs with.
// Implementations obtain it from NewEnv and route every ownership, storage
// and metrics event through it.
type Env[T any] struct {
	Ownership Ownership[T]
	Allocator alloc.Allocator
	Logger    *slog.Logger
	Metrics   *Metrics
}

// NewEnv applies opts for the ring named component with the given capacity.
func NewEnv[T any](component string, capacity int, opts ...Option[T]) (*Env[T], error) {
	o := &options[T]{
		ownership: noOwnership[T]{},
		allocator: alloc.Unlimited,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	env := &Env[T]{
		Ownership: o.ownership,
		Allocator: o.allocator,
		Logger:    o.logger.With("component", component),
	}
	if o.registerer != nil {
		m, err := NewMetrics(o.registerer, o.metricsPrefix, capacity)
		if err != nil {
			return nil, Wrap(err, component, "New", "metrics registration")
		}
		env.Metrics = m
	}
	return env, nil
}
