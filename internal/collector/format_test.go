package collector

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"salvo/internal/core"
)

func sampleResult() *Result {
	return &Result{
		ID:          "b7c1e6a2-0000-4000-8000-000000000001",
		Strategy:    core.StrategyParallel,
		Calls:       100,
		Concurrency: 10,
		Counts: map[core.Outcome]int64{
			"200": 95,
			"500": 5,
		},
		Duration: 2500 * time.Millisecond,
		Latency: DurationMetrics{
			Min: 10 * time.Millisecond,
			Max: 100 * time.Millisecond,
			Avg: 50 * time.Millisecond,
			P50: 45 * time.Millisecond,
			P90: 80 * time.Millisecond,
			P95: 90 * time.Millisecond,
			P99: 98 * time.Millisecond,
		},
		PeakInFlight: 10,
	}
}

func TestFormatText_BasicOutput(t *testing.T) {
	var buf bytes.Buffer
	FormatText(&buf, sampleResult(), nil)

	output := buf.String()

	for _, want := range []string{
		"Salvo - Batch Results",
		"Strategy:       parallel (concurrency 10)",
		"Total Calls:    100",
		"Success Rate:   95.0% (95 / 100)",
		"Calls/sec:      40.0",
		"Peak In-Flight: 10",
		"Outcomes:",
		"Call Latency:",
		"P95:    90ms",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}

	// outcomes are listed in sorted order
	if strings.Index(output, "  200 ") > strings.Index(output, "  500 ") {
		t.Errorf("expected 200 before 500, got: %s", output)
	}
}

func TestFormatText_NoCalls(t *testing.T) {
	var buf bytes.Buffer
	FormatText(&buf, &Result{}, nil)

	if !strings.Contains(buf.String(), "No calls completed") {
		t.Errorf("expected 'No calls completed' message, got: %s", buf.String())
	}
}

func TestFormatText_WithThresholds(t *testing.T) {
	thresholds := &ThresholdResults{
		Passed: false,
		Results: []ThresholdResult{
			{Name: "call_duration.p95", Passed: true, Threshold: "100ms", Actual: "90ms"},
			{Name: "call_failed.rate", Passed: false, Threshold: "1%", Actual: "5.00%"},
		},
	}

	var buf bytes.Buffer
	FormatText(&buf, sampleResult(), thresholds)

	output := buf.String()

	if !strings.Contains(output, "Thresholds:") {
		t.Errorf("expected Thresholds section in output, got: %s", output)
	}
	if !strings.Contains(output, "✓") {
		t.Errorf("expected checkmark for passing threshold, got: %s", output)
	}
	if !strings.Contains(output, "✗") {
		t.Errorf("expected X for failing threshold, got: %s", output)
	}
}

func TestFormatJSON_Fields(t *testing.T) {
	var buf bytes.Buffer
	FormatJSON(&buf, sampleResult(), nil)

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}

	if decoded["duration"] != float64(2) {
		t.Errorf("expected duration in whole seconds (2), got %v", decoded["duration"])
	}
	if decoded["durationMs"] != float64(2500) {
		t.Errorf("expected durationMs 2500, got %v", decoded["durationMs"])
	}
	if decoded["successRate"] != float64(95) {
		t.Errorf("expected successRate 95, got %v", decoded["successRate"])
	}
	counts, ok := decoded["counts"].(map[string]any)
	if !ok {
		t.Fatalf("expected counts object, got %T", decoded["counts"])
	}
	if counts["200"] != float64(95) || counts["500"] != float64(5) {
		t.Errorf("unexpected counts: %v", counts)
	}
	if _, ok := decoded["thresholds"]; ok {
		t.Error("expected thresholds to be omitted when nil")
	}
}

func TestFormatJSON_WithThresholds(t *testing.T) {
	thresholds := &ThresholdResults{
		Passed: true,
		Results: []ThresholdResult{
			{Name: "test_threshold", Passed: true, Threshold: "100ms", Actual: "10ms"},
		},
	}

	var buf bytes.Buffer
	FormatJSON(&buf, sampleResult(), thresholds)

	output := buf.String()
	if !strings.Contains(output, `"thresholds"`) {
		t.Errorf("expected thresholds in JSON, got: %s", output)
	}
	if !strings.Contains(output, `"test_threshold"`) {
		t.Errorf("expected threshold name in JSON, got: %s", output)
	}
}

func TestResult_MarshalJSON(t *testing.T) {
	r := &Result{
		Counts:   map[core.Outcome]int64{"200": 3, "500": 2},
		Duration: 1999 * time.Millisecond,
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Counts   map[string]int64 `json:"counts"`
		Duration int64            `json:"duration"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Duration != 1 {
		t.Errorf("expected duration truncated to 1s, got %d", decoded.Duration)
	}
	if decoded.Counts["200"] != 3 || decoded.Counts["500"] != 2 {
		t.Errorf("unexpected counts: %v", decoded.Counts)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n        int
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
		{-1500, "-1,500"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.n); got != tt.expected {
			t.Errorf("formatNumber(%d) = %q, expected %q", tt.n, got, tt.expected)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{500 * time.Microsecond, "500µs"},
		{150 * time.Millisecond, "150ms"},
		{2500 * time.Millisecond, "2.5s"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.expected {
			t.Errorf("FormatDuration(%v) = %q, expected %q", tt.d, got, tt.expected)
		}
	}
}
