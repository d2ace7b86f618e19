package collector

import (
	"sort"
	"time"

	"salvo/internal/core"
)

// Metrics contains figures derived from a batch Result.
type Metrics struct {
	TotalCalls   int
	SuccessCount int
	FailureCount int
	SuccessRate  float64
	CallsPerSec  float64
	Duration     time.Duration
	Latency      DurationMetrics
	Outcomes     []OutcomeCount
}

// OutcomeCount pairs an outcome with its count.
type OutcomeCount struct {
	Outcome core.Outcome
	Count   int64
}

// DurationMetrics contains latency statistics.
type DurationMetrics struct {
	Min time.Duration
	Max time.Duration
	Avg time.Duration
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
}

// ComputeMetrics derives metrics from a result. Pure function, no side effects.
func ComputeMetrics(r *Result) *Metrics {
	m := &Metrics{
		Duration: r.Duration,
		Latency:  r.Latency,
		Outcomes: make([]OutcomeCount, 0, len(r.Counts)),
	}

	for _, o := range r.Outcomes() {
		n := r.Counts[o]
		m.TotalCalls += int(n)
		if o.IsSuccess() {
			m.SuccessCount += int(n)
		} else {
			m.FailureCount += int(n)
		}
		m.Outcomes = append(m.Outcomes, OutcomeCount{Outcome: o, Count: n})
	}

	if m.TotalCalls > 0 {
		m.SuccessRate = float64(m.SuccessCount) / float64(m.TotalCalls) * 100
	}

	if m.Duration > 0 {
		m.CallsPerSec = float64(m.TotalCalls) / m.Duration.Seconds()
	}

	return m
}

// ComputePercentile calculates the percentile value from a sorted slice of durations.
// The percentile p should be between 0 and 1 (e.g., 0.95 for p95).
// The slice must be sorted in ascending order.
func ComputePercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}

	// nearest rank
	index := int(float64(len(sorted)-1) * p)
	return sorted[index]
}

// ComputeDurationMetrics calculates all duration statistics from a slice of durations.
// The input slice is not modified.
func ComputeDurationMetrics(durations []time.Duration) DurationMetrics {
	if len(durations) == 0 {
		return DurationMetrics{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	return DurationMetrics{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: total / time.Duration(len(sorted)),
		P50: ComputePercentile(sorted, 0.50),
		P90: ComputePercentile(sorted, 0.90),
		P95: ComputePercentile(sorted, 0.95),
		P99: ComputePercentile(sorted, 0.99),
	}
}
