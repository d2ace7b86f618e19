// Package collector aggregates call outcomes for a single batch.
package collector

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"salvo/internal/core"
)

// ErrAlreadyStopped is returned when Stop is called more than once.
var ErrAlreadyStopped = errors.New("collector already stopped")

// Collector counts outcomes from concurrent calls and times the batch.
// Add and Observe are safe for unbounded concurrent use. Each distinct
// outcome gets exactly one counter, created on first use.
type Collector struct {
	counts    sync.Map // core.Outcome -> *atomic.Int64
	total     atomic.Int64
	clock     core.Clock
	startedAt time.Time

	mu        sync.Mutex
	latencies []time.Duration
	duration  time.Duration
	stopped   bool
}

// NewCollector creates a Collector and starts its timer.
// A nil clock uses the real clock.
func NewCollector(clock core.Clock) *Collector {
	if clock == nil {
		clock = core.RealClock{}
	}
	return &Collector{
		clock:     clock,
		startedAt: clock.Now(),
	}
}

// Add increments the count for outcome and returns the new count.
func (c *Collector) Add(outcome core.Outcome) int64 {
	v, ok := c.counts.Load(outcome)
	if !ok {
		v, _ = c.counts.LoadOrStore(outcome, new(atomic.Int64))
	}
	n := v.(*atomic.Int64).Add(1)
	c.total.Add(1)
	return n
}

// Observe counts outcome and records the latency of the call that produced it.
func (c *Collector) Observe(outcome core.Outcome, latency time.Duration) int64 {
	c.mu.Lock()
	c.latencies = append(c.latencies, latency)
	c.mu.Unlock()
	return c.Add(outcome)
}

// Stop records the elapsed batch time. It must be called once, after every
// Add for the batch has returned.
func (c *Collector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrAlreadyStopped
	}
	d := c.clock.Since(c.startedAt)
	if d < 0 {
		d = 0
	}
	c.duration = d
	c.stopped = true
	return nil
}

// Stopped reports whether Stop has been called.
func (c *Collector) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Total returns the number of outcomes added so far.
func (c *Collector) Total() int64 {
	return c.total.Load()
}

// Count returns the current count for outcome.
func (c *Collector) Count(outcome core.Outcome) int64 {
	v, ok := c.counts.Load(outcome)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// StartedAt returns when the batch timer started.
func (c *Collector) StartedAt() time.Time {
	return c.startedAt
}

// Duration returns the batch duration.
// If the collector is stopped, returns the recorded duration.
// If still running, returns the time elapsed so far.
func (c *Collector) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return c.duration
	}
	return c.clock.Since(c.startedAt)
}

// Counts returns a copy of the current outcome counts.
func (c *Collector) Counts() map[core.Outcome]int64 {
	counts := make(map[core.Outcome]int64)
	c.counts.Range(func(k, v any) bool {
		counts[k.(core.Outcome)] = v.(*atomic.Int64).Load()
		return true
	})
	return counts
}

// Snapshot returns the current state as a Result. Counts still in flight may
// be missing; once Stop has returned the snapshot is complete.
func (c *Collector) Snapshot() *Result {
	counts := c.Counts()

	c.mu.Lock()
	latencies := make([]time.Duration, len(c.latencies))
	copy(latencies, c.latencies)
	duration := c.duration
	if !c.stopped {
		duration = c.clock.Since(c.startedAt)
	}
	c.mu.Unlock()

	var total int64
	for _, n := range counts {
		total += n
	}

	return &Result{
		Calls:     int(total),
		Counts:    counts,
		StartedAt: c.startedAt,
		Duration:  duration,
		Latency:   ComputeDurationMetrics(latencies),
	}
}
