package http

import (
	"net/http"
	"time"
)

const (
	defaultMaxIdleConns    = 100
	defaultIdleConnTimeout = 60 * time.Second
)

// NewClient returns a client for the blocking strategies. Up to
// concurrency idle connections are kept per host so every worker can reuse
// its connection. Timeouts are applied per call through the context.
func NewClient(concurrency int) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = defaultMaxIdleConns
	transport.MaxIdleConnsPerHost = max(concurrency, 1)
	transport.IdleConnTimeout = defaultIdleConnTimeout
	return &http.Client{Transport: transport}
}

// NewMultiplexClient returns a client for the non-blocking strategy. It
// prefers HTTP/2 so many requests share one connection, and caps open
// connections per host at maxInFlight (0 = no cap). Requests beyond the cap
// queue inside the transport rather than in the dispatcher.
func NewMultiplexClient(maxInFlight int) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ForceAttemptHTTP2 = true
	transport.MaxConnsPerHost = maxInFlight
	transport.MaxIdleConns = defaultMaxIdleConns
	transport.MaxIdleConnsPerHost = defaultMaxIdleConns
	transport.IdleConnTimeout = defaultIdleConnTimeout
	return &http.Client{Transport: transport}
}

// CloseIdle releases idle connections held by client's transport.
func CloseIdle(client *http.Client) {
	if client == nil {
		return
	}
	client.CloseIdleConnections()
}
