package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestStatusOutcome(t *testing.T) {
	o := StatusOutcome(200)
	if o != "200" {
		t.Errorf("expected \"200\", got %q", o)
	}
	code, ok := o.StatusCode()
	if !ok || code != 200 {
		t.Errorf("expected status code 200, got %d (ok=%v)", code, ok)
	}
}

func TestOutcome_StatusCode_FailureClasses(t *testing.T) {
	for _, o := range []Outcome{OutcomeError, OutcomeTimeout, OutcomeCanceled, OutcomePanic, "42", ""} {
		if _, ok := o.StatusCode(); ok {
			t.Errorf("%q: expected no status code", o)
		}
	}
}

func TestOutcome_IsSuccess(t *testing.T) {
	tests := []struct {
		outcome Outcome
		success bool
	}{
		{StatusOutcome(200), true},
		{StatusOutcome(204), true},
		{StatusOutcome(302), true},
		{StatusOutcome(400), false},
		{StatusOutcome(404), false},
		{StatusOutcome(500), false},
		{OutcomeError, false},
		{OutcomeTimeout, false},
	}

	for _, tt := range tests {
		if got := tt.outcome.IsSuccess(); got != tt.success {
			t.Errorf("%q.IsSuccess() = %v, expected %v", tt.outcome, got, tt.success)
		}
		if got := tt.outcome.IsFailure(); got == tt.success {
			t.Errorf("%q.IsFailure() = %v, expected %v", tt.outcome, got, !tt.success)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		outcome  Outcome
		err      error
		expected Outcome
	}{
		{"status passes through", StatusOutcome(503), nil, "503"},
		{"empty outcome without error", "", nil, OutcomeError},
		{"transport error", "", errors.New("connection refused"), OutcomeError},
		{"deadline", "", context.DeadlineExceeded, OutcomeTimeout},
		{"wrapped deadline", "", fmt.Errorf("request failed: %w", context.DeadlineExceeded), OutcomeTimeout},
		{"net timeout", "", &net.OpError{Op: "dial", Err: timeoutError{}}, OutcomeTimeout},
		{"canceled", "", context.Canceled, OutcomeCanceled},
		{"panic kept", OutcomePanic, errors.New("panic: boom"), OutcomePanic},
		{"status with error is a failure", StatusOutcome(200), errors.New("read body"), OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.outcome, tt.err); got != tt.expected {
				t.Errorf("Classify(%q, %v) = %q, expected %q", tt.outcome, tt.err, got, tt.expected)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input    string
		expected Strategy
	}{
		{"serial", StrategySerial},
		{"parallel", StrategyParallel},
		{"parallelism", StrategyParallel},
		{"NonBlocking", StrategyNonBlocking},
		{"non-blocking", StrategyNonBlocking},
		{" serial ", StrategySerial},
	}

	for _, tt := range tests {
		got, err := ParseStrategy(tt.input)
		if err != nil {
			t.Errorf("ParseStrategy(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseStrategy(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestParseStrategy_Unknown(t *testing.T) {
	_, err := ParseStrategy("reactive")
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
	if Strategy("reactive").Valid() {
		t.Error("expected reactive to be invalid")
	}
}
