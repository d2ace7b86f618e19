package collector

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Thresholds defines pass/fail criteria for a batch.
type Thresholds struct {
	CallDuration  *DurationThresholds `yaml:"call_duration"`
	CallFailed    *FailureThresholds  `yaml:"call_failed"`
	BatchDuration time.Duration       `yaml:"batch_duration"`
}

// DurationThresholds defines per-call latency limits.
type DurationThresholds struct {
	Avg time.Duration `yaml:"avg"`
	P50 time.Duration `yaml:"p50"`
	P90 time.Duration `yaml:"p90"`
	P95 time.Duration `yaml:"p95"`
	P99 time.Duration `yaml:"p99"`
}

// FailureThresholds defines failure rate limits.
type FailureThresholds struct {
	Rate string `yaml:"rate"`
}

// ThresholdResult represents the outcome of a single threshold check.
type ThresholdResult struct {
	Name      string `json:"name"`
	Passed    bool   `json:"passed"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
}

// ThresholdResults contains all threshold check results.
type ThresholdResults struct {
	Passed  bool              `json:"passed"`
	Results []ThresholdResult `json:"results"`
}

// Validate reports malformed threshold values.
func (t *Thresholds) Validate() error {
	if t == nil || t.CallFailed == nil || t.CallFailed.Rate == "" {
		return nil
	}
	if _, err := parsePercentage(t.CallFailed.Rate); err != nil {
		return fmt.Errorf("call_failed.rate: %w", err)
	}
	return nil
}

// Check evaluates all thresholds against the metrics of a batch.
func (t *Thresholds) Check(m *Metrics) *ThresholdResults {
	if t == nil {
		return &ThresholdResults{Passed: true, Results: nil}
	}

	results := &ThresholdResults{
		Passed:  true,
		Results: make([]ThresholdResult, 0),
	}

	if t.CallDuration != nil {
		results.checkDurationThresholds(t.CallDuration, &m.Latency)
	}

	if t.CallFailed != nil && t.CallFailed.Rate != "" {
		results.checkFailureRate(t.CallFailed, m)
	}

	if t.BatchDuration > 0 {
		results.add(ThresholdResult{
			Name:      "batch_duration",
			Passed:    m.Duration < t.BatchDuration,
			Threshold: FormatDuration(t.BatchDuration),
			Actual:    FormatDuration(m.Duration),
		})
	}

	return results
}

func (r *ThresholdResults) add(result ThresholdResult) {
	if !result.Passed {
		r.Passed = false
	}
	r.Results = append(r.Results, result)
}

func (r *ThresholdResults) checkDurationThresholds(thresholds *DurationThresholds, actual *DurationMetrics) {
	checks := []struct {
		name      string
		threshold time.Duration
		actual    time.Duration
	}{
		{"call_duration.avg", thresholds.Avg, actual.Avg},
		{"call_duration.p50", thresholds.P50, actual.P50},
		{"call_duration.p90", thresholds.P90, actual.P90},
		{"call_duration.p95", thresholds.P95, actual.P95},
		{"call_duration.p99", thresholds.P99, actual.P99},
	}

	for _, check := range checks {
		if check.threshold == 0 {
			continue
		}
		r.add(ThresholdResult{
			Name:      check.name,
			Passed:    check.actual < check.threshold,
			Threshold: FormatDuration(check.threshold),
			Actual:    FormatDuration(check.actual),
		})
	}
}

func (r *ThresholdResults) checkFailureRate(thresholds *FailureThresholds, m *Metrics) {
	thresholdRate, err := parsePercentage(thresholds.Rate)
	if err != nil {
		return
	}

	actualRate := 0.0
	if m.TotalCalls > 0 {
		actualRate = float64(m.FailureCount) / float64(m.TotalCalls) * 100
	}

	r.add(ThresholdResult{
		Name:      "call_failed.rate",
		Passed:    actualRate < thresholdRate,
		Threshold: thresholds.Rate,
		Actual:    fmt.Sprintf("%.2f%%", actualRate),
	})
}

func parsePercentage(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("invalid percentage format: %s", s)
	}
	s = strings.TrimSuffix(s, "%")
	return strconv.ParseFloat(s, 64)
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

// Violations returns only the failed threshold results.
func (r *ThresholdResults) Violations() []ThresholdResult {
	violations := make([]ThresholdResult, 0)
	for _, result := range r.Results {
		if !result.Passed {
			violations = append(violations, result)
		}
	}
	return violations
}
