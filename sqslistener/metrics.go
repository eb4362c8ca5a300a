package sqslistener

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates per-container processing metrics. All record methods
// are safe to call concurrently from any number of workers; everything is
// atomic, there is no lock on the write path.
type Collector struct {
	name string

	processed          atomic.Int64
	failed             atomic.Int64
	deadLettered       atomic.Int64
	deadLetterFailures atomic.Int64

	// handler duration in nanoseconds
	durSum   atomic.Int64
	durCount atomic.Int64
	durMin   atomic.Int64
	durMax   atomic.Int64

	state atomic.Int32
}

// NewCollector returns a collector namespaced by container name.
func NewCollector(name string) *Collector {
	c := &Collector{name: name}
	c.durMin.Store(math.MaxInt64)
	return c
}

// RecordSuccess counts one successfully handled message.
func (c *Collector) RecordSuccess(d time.Duration) {
	c.processed.Add(1)
	c.observeDuration(d)
}

// RecordFailure counts one failed handler invocation.
func (c *Collector) RecordFailure(d time.Duration) {
	c.failed.Add(1)
	c.observeDuration(d)
}

// RecordDeadLetter counts one message routed to the dead-letter destination.
func (c *Collector) RecordDeadLetter() {
	c.deadLettered.Add(1)
}

// RecordDeadLetterFailure counts one failed dead-letter routing attempt. The
// original message stayed on the queue.
func (c *Collector) RecordDeadLetterFailure() {
	c.deadLetterFailures.Add(1)
}

// RecordStateTransition records the container's new lifecycle state.
func (c *Collector) RecordStateTransition(_, to State) {
	c.state.Store(int32(to))
}

func (c *Collector) observeDuration(d time.Duration) {
	n := int64(d)
	c.durSum.Add(n)
	c.durCount.Add(1)
	for {
		cur := c.durMin.Load()
		if n >= cur || c.durMin.CompareAndSwap(cur, n) {
			break
		}
	}
	for {
		cur := c.durMax.Load()
		if n <= cur || c.durMax.CompareAndSwap(cur, n) {
			break
		}
	}
}

// Snapshot is an immutable point-in-time copy of a collector's counters.
type Snapshot struct {
	Name               string
	Processed          int64
	Failed             int64
	DeadLettered       int64
	DeadLetterFailures int64
	MinDuration        time.Duration
	AvgDuration        time.Duration
	MaxDuration        time.Duration
	State              State
}

// Snapshot computes an aggregate from the live counters. It never blocks
// writers; values observed concurrently with writes may be up to one update
// apart but each counter is monotonically non-decreasing.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		Name:               c.name,
		Processed:          c.processed.Load(),
		Failed:             c.failed.Load(),
		DeadLettered:       c.deadLettered.Load(),
		DeadLetterFailures: c.deadLetterFailures.Load(),
		MaxDuration:        time.Duration(c.durMax.Load()),
		State:              State(c.state.Load()),
	}
	if min := c.durMin.Load(); min != math.MaxInt64 {
		s.MinDuration = time.Duration(min)
	}
	if count := c.durCount.Load(); count > 0 {
		s.AvgDuration = time.Duration(c.durSum.Load() / count)
	}
	return s
}

// Registry hands out collectors keyed by container name so multiple
// containers in one process do not interfere.
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]*Collector
}

func NewRegistry() *Registry {
	return &Registry{collectors: make(map[string]*Collector)}
}

// Collector returns the collector for name, creating it on first use.
func (r *Registry) Collector(name string) *Collector {
	r.mu.RLock()
	c, ok := r.collectors[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.collectors[name]; ok {
		return c
	}
	c = NewCollector(name)
	r.collectors[name] = c
	return c
}

// Snapshots returns a snapshot of every registered collector.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.collectors))
	for _, c := range r.collectors {
		out = append(out, c.Snapshot())
	}
	return out
}
