// Package http implements the call capability over HTTP.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"salvo/internal/config"
	"salvo/internal/core"
	"salvo/internal/data"
	"salvo/internal/template"
)

// maxDrainSize bounds how much of a response body is read and discarded so
// the connection can be reused. Bodies are never inspected.
const maxDrainSize = 1 << 20 // 1MB

// Caller sends one request per call to the configured target and reports
// the response status code as the outcome. It implements core.Caller and
// core.AsyncCaller and is safe for concurrent use.
type Caller struct {
	config   config.TargetConfig
	client   *http.Client
	debug    *DebugLogger
	rows     *data.Source
	static   bool
	inFlight atomic.Int64
}

// CallerOption configures a Caller.
type CallerOption func(*Caller)

// WithData makes the fields of the row for each call available to URL and
// header placeholders as ${data.<field>}.
func WithData(src *data.Source) CallerOption {
	return func(c *Caller) { c.rows = src }
}

func NewCaller(cfg config.TargetConfig, client *http.Client, debug *DebugLogger, opts ...CallerOption) *Caller {
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	static := !template.HasPlaceholders(cfg.URL)
	for _, v := range cfg.Headers {
		if template.HasPlaceholders(v) {
			static = false
		}
	}
	c := &Caller{
		config: cfg,
		client: client,
		debug:  debug,
		static: static,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call performs request number index and returns its status code outcome.
// Transport failures are returned as errors for the dispatcher to classify.
func (c *Caller) Call(ctx context.Context, index int) (core.Outcome, error) {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}
	ctx = core.ContextWithCallIndex(ctx, index)

	start := time.Now()
	req, err := c.newRequest(ctx, index)
	if err != nil {
		c.debug.LogError(index, err.Error(), time.Since(start))
		return "", err
	}

	c.debug.LogRequest(index, req)

	resp, err := c.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.debug.LogError(index, err.Error(), duration)
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize)) // drain errors are ignorable

	c.debug.LogResponse(index, resp, duration)
	return core.StatusOutcome(resp.StatusCode), nil
}

// CallAsync issues the call on its own goroutine and returns immediately.
// The goroutine parks in the network poller while the request is in flight.
func (c *Caller) CallAsync(ctx context.Context, index int, done func(core.Outcome, error)) {
	go func() {
		var (
			outcome core.Outcome
			err     error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					outcome, err = core.OutcomePanic, fmt.Errorf("panic: %v", r)
				}
			}()
			outcome, err = c.Call(ctx, index)
		}()
		done(outcome, err)
	}()
}

// InFlight returns the number of requests currently outstanding.
func (c *Caller) InFlight() int {
	return int(c.inFlight.Load())
}

func (c *Caller) newRequest(ctx context.Context, index int) (*http.Request, error) {
	url := c.config.URL
	headers := c.config.Headers

	if !c.static {
		vars := template.ForCall(index)
		c.rows.Inject(vars, index)
		var err error
		if url, err = template.Substitute(url, vars); err != nil {
			return nil, fmt.Errorf("url: %w", err)
		}
		if headers, err = template.SubstituteMap(headers, vars); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(c.config.Method), url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
