package collector

import (
	"testing"
	"time"

	"salvo/internal/core"
)

func TestThresholds_NilPasses(t *testing.T) {
	var th *Thresholds
	results := th.Check(&Metrics{})
	if !results.Passed {
		t.Error("expected nil thresholds to pass")
	}
}

func TestThresholds_CallDuration(t *testing.T) {
	th := &Thresholds{
		CallDuration: &DurationThresholds{
			P95: 100 * time.Millisecond,
			P99: 50 * time.Millisecond,
		},
	}
	m := &Metrics{Latency: DurationMetrics{P95: 80 * time.Millisecond, P99: 90 * time.Millisecond}}

	results := th.Check(m)

	if results.Passed {
		t.Error("expected overall failure (p99 exceeded)")
	}
	if len(results.Results) != 2 {
		t.Fatalf("expected 2 results (unset limits skipped), got %d", len(results.Results))
	}
	if !results.Results[0].Passed || results.Results[0].Name != "call_duration.p95" {
		t.Errorf("expected p95 to pass, got %+v", results.Results[0])
	}
	if results.Results[1].Passed {
		t.Errorf("expected p99 to fail, got %+v", results.Results[1])
	}
	if v := results.Violations(); len(v) != 1 || v[0].Name != "call_duration.p99" {
		t.Errorf("expected one p99 violation, got %+v", v)
	}
}

func TestThresholds_FailureRate(t *testing.T) {
	r := &Result{Counts: map[core.Outcome]int64{"200": 95, "500": 3, core.OutcomeError: 2}}
	m := ComputeMetrics(r)

	passing := &Thresholds{CallFailed: &FailureThresholds{Rate: "10%"}}
	if res := passing.Check(m); !res.Passed {
		t.Errorf("expected 5%% < 10%% to pass, got %+v", res.Results)
	}

	failing := &Thresholds{CallFailed: &FailureThresholds{Rate: "1%"}}
	res := failing.Check(m)
	if res.Passed {
		t.Error("expected 5% < 1% to fail")
	}
	if res.Results[0].Actual != "5.00%" {
		t.Errorf("expected actual 5.00%%, got %s", res.Results[0].Actual)
	}
}

func TestThresholds_BatchDuration(t *testing.T) {
	th := &Thresholds{BatchDuration: time.Second}

	if res := th.Check(&Metrics{Duration: 500 * time.Millisecond}); !res.Passed {
		t.Error("expected 500ms batch to pass a 1s limit")
	}
	if res := th.Check(&Metrics{Duration: 2 * time.Second}); res.Passed {
		t.Error("expected 2s batch to fail a 1s limit")
	}
}

func TestThresholds_Validate(t *testing.T) {
	good := &Thresholds{CallFailed: &FailureThresholds{Rate: "2.5%"}}
	if err := good.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := &Thresholds{CallFailed: &FailureThresholds{Rate: "2.5"}}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for rate without %")
	}

	var none *Thresholds
	if err := none.Validate(); err != nil {
		t.Errorf("unexpected error for nil thresholds: %v", err)
	}
}
