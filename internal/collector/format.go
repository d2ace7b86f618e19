package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// FormatText writes a batch result in human-readable format.
func FormatText(w io.Writer, r *Result, thresholds *ThresholdResults) {
	m := ComputeMetrics(r)
	if m.TotalCalls == 0 {
		fmt.Fprintln(w, "No calls completed")
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Salvo - Batch Results")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintln(w, "")
	if r.ID != "" {
		fmt.Fprintf(w, "Batch:          %s\n", r.ID)
	}
	if r.Concurrency > 0 {
		fmt.Fprintf(w, "Strategy:       %s (concurrency %d)\n", r.Strategy, r.Concurrency)
	} else if r.Strategy != "" {
		fmt.Fprintf(w, "Strategy:       %s\n", r.Strategy)
	}
	fmt.Fprintf(w, "Duration:       %v\n", m.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Total Calls:    %s\n", formatNumber(m.TotalCalls))
	fmt.Fprintf(w, "Success Rate:   %.1f%% (%s / %s)\n",
		m.SuccessRate, formatNumber(m.SuccessCount), formatNumber(m.TotalCalls))
	fmt.Fprintf(w, "Calls/sec:      %.1f\n", m.CallsPerSec)
	fmt.Fprintf(w, "Peak In-Flight: %d\n", r.PeakInFlight)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Outcomes:")
	for _, oc := range m.Outcomes {
		fmt.Fprintf(w, "  %-10s %s\n", oc.Outcome, formatNumber(int(oc.Count)))
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Call Latency:")
	fmt.Fprintf(w, "  Min:    %s\n", FormatDuration(m.Latency.Min))
	fmt.Fprintf(w, "  Avg:    %s\n", FormatDuration(m.Latency.Avg))
	fmt.Fprintf(w, "  P50:    %s\n", FormatDuration(m.Latency.P50))
	fmt.Fprintf(w, "  P90:    %s\n", FormatDuration(m.Latency.P90))
	fmt.Fprintf(w, "  P95:    %s\n", FormatDuration(m.Latency.P95))
	fmt.Fprintf(w, "  P99:    %s\n", FormatDuration(m.Latency.P99))
	fmt.Fprintf(w, "  Max:    %s\n", FormatDuration(m.Latency.Max))

	if thresholds != nil && len(thresholds.Results) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Thresholds:")
		for _, result := range thresholds.Results {
			symbol := "✓"
			if !result.Passed {
				symbol = "✗"
			}
			fmt.Fprintf(w, "  %s %s < %s (actual: %s)\n",
				symbol, result.Name, result.Threshold, result.Actual)
		}
	}
}

// FormatJSON writes a batch result in JSON format.
func FormatJSON(w io.Writer, r *Result, thresholds *ThresholdResults) {
	m := ComputeMetrics(r)
	output := struct {
		jsonResult
		SuccessRate float64           `json:"successRate"`
		CallsPerSec float64           `json:"callsPerSec"`
		Thresholds  *ThresholdResults `json:"thresholds,omitempty"`
	}{
		jsonResult:  r.toJSON(),
		SuccessRate: m.SuccessRate,
		CallsPerSec: m.CallsPerSec,
		Thresholds:  thresholds,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output) // stdout errors are unrecoverable
}

type jsonDurationMetrics struct {
	Min string `json:"min"`
	Max string `json:"max"`
	Avg string `json:"avg"`
	P50 string `json:"p50"`
	P90 string `json:"p90"`
	P95 string `json:"p95"`
	P99 string `json:"p99"`
}

func toJSONDurationMetrics(d DurationMetrics) jsonDurationMetrics {
	return jsonDurationMetrics{
		Min: FormatDuration(d.Min),
		Max: FormatDuration(d.Max),
		Avg: FormatDuration(d.Avg),
		P50: FormatDuration(d.P50),
		P90: FormatDuration(d.P90),
		P95: FormatDuration(d.P95),
		P99: FormatDuration(d.P99),
	}
}

// formatNumber groups digits in thousands: 1234567 -> "1,234,567".
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	head := len(s) % 3
	if head == 0 {
		head = 3
	}
	out := s[:head]
	for i := head; i < len(s); i += 3 {
		out += "," + s[i:i+3]
	}
	return out
}
