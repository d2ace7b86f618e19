package collector

import (
	"encoding/json"
	"sort"
	"time"

	"salvo/internal/core"
)

// Result is the aggregate of one batch. It is read-only once returned by
// the dispatcher.
type Result struct {
	ID           string
	Strategy     core.Strategy
	Calls        int
	Concurrency  int // 0 when the strategy has no worker ceiling
	Counts       map[core.Outcome]int64
	StartedAt    time.Time
	Duration     time.Duration
	Latency      DurationMetrics
	PeakInFlight int
}

// Total returns the sum of all outcome counts.
func (r *Result) Total() int64 {
	var total int64
	for _, n := range r.Counts {
		total += n
	}
	return total
}

// Count returns the count for outcome, 0 if absent.
func (r *Result) Count(outcome core.Outcome) int64 {
	return r.Counts[outcome]
}

// Outcomes returns the outcomes present in r, sorted by name.
func (r *Result) Outcomes() []core.Outcome {
	outcomes := make([]core.Outcome, 0, len(r.Counts))
	for o := range r.Counts {
		outcomes = append(outcomes, o)
	}
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i] < outcomes[j]
	})
	return outcomes
}

type jsonResult struct {
	ID           string              `json:"id,omitempty"`
	Strategy     core.Strategy       `json:"strategy,omitempty"`
	Calls        int                 `json:"calls"`
	Concurrency  int                 `json:"concurrency,omitempty"`
	Counts       map[string]int64    `json:"counts"`
	Duration     int64               `json:"duration"`
	DurationMs   int64               `json:"durationMs"`
	PeakInFlight int                 `json:"peakInFlight"`
	Latency      jsonDurationMetrics `json:"latency"`
}

func (r *Result) toJSON() jsonResult {
	counts := make(map[string]int64, len(r.Counts))
	for o, n := range r.Counts {
		counts[string(o)] = n
	}
	return jsonResult{
		ID:           r.ID,
		Strategy:     r.Strategy,
		Calls:        r.Calls,
		Concurrency:  r.Concurrency,
		Counts:       counts,
		Duration:     int64(r.Duration / time.Second),
		DurationMs:   r.Duration.Milliseconds(),
		PeakInFlight: r.PeakInFlight,
		Latency:      toJSONDurationMetrics(r.Latency),
	}
}

// MarshalJSON renders counts keyed by outcome and the duration in whole seconds.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.toJSON())
}
