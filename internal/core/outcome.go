package core

import (
	"context"
	"errors"
	"net"
	"strconv"
)

// Outcome classifies the result of a single call. It is either an HTTP
// status code in decimal form ("200", "503") or one of the failure
// classifications below. Outcomes are compared by value and used as map keys.
type Outcome string

const (
	OutcomeError    Outcome = "error"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeCanceled Outcome = "canceled"
	OutcomePanic    Outcome = "panic"
)

// StatusOutcome returns the outcome for an HTTP status code.
func StatusOutcome(code int) Outcome {
	return Outcome(strconv.Itoa(code))
}

// StatusCode returns the HTTP status code carried by o, if any.
func (o Outcome) StatusCode() (int, bool) {
	code, err := strconv.Atoi(string(o))
	if err != nil || code < 100 || code > 599 {
		return 0, false
	}
	return code, true
}

// IsSuccess reports whether o is a status code below 400.
func (o Outcome) IsSuccess() bool {
	code, ok := o.StatusCode()
	return ok && code < 400
}

func (o Outcome) IsFailure() bool {
	return !o.IsSuccess()
}

func (o Outcome) String() string {
	return string(o)
}

// Classify turns what a Caller returned into the outcome that gets counted.
// A call is never dropped: errors become failure outcomes, and an empty
// outcome without an error is treated as a transport error.
func Classify(outcome Outcome, err error) Outcome {
	if err == nil {
		if outcome == "" {
			return OutcomeError
		}
		return outcome
	}
	if outcome == OutcomePanic {
		return OutcomePanic
	}
	if errors.Is(err, context.Canceled) {
		return OutcomeCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeError
}
