// Package core defines the fundamental interfaces and types for salvo.
package core

import (
	"context"
	"fmt"
)

// Caller issues one request against the target and reports its outcome.
// Index is 1-based and identifies the call within its batch.
type Caller interface {
	Call(ctx context.Context, index int) (Outcome, error)
}

// CallerFunc adapts a plain function to the Caller interface.
type CallerFunc func(ctx context.Context, index int) (Outcome, error)

func (f CallerFunc) Call(ctx context.Context, index int) (Outcome, error) {
	return f(ctx, index)
}

// AsyncCaller issues a request without holding the calling goroutine.
// CallAsync returns immediately; done is invoked exactly once when the
// response (or failure) arrives.
type AsyncCaller interface {
	CallAsync(ctx context.Context, index int, done func(Outcome, error))
}

// Async adapts a blocking Caller to AsyncCaller. If c already implements
// AsyncCaller it is returned as is.
func Async(c Caller) AsyncCaller {
	if ac, ok := c.(AsyncCaller); ok {
		return ac
	}
	return asyncAdapter{c}
}

type asyncAdapter struct {
	caller Caller
}

func (a asyncAdapter) CallAsync(ctx context.Context, index int, done func(Outcome, error)) {
	go func() {
		var (
			outcome Outcome
			err     error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					outcome, err = OutcomePanic, fmt.Errorf("panic: %v", r)
				}
			}()
			outcome, err = a.caller.Call(ctx, index)
		}()
		done(outcome, err)
	}()
}
