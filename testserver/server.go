// Package testserver provides a configurable HTTP target for salvo batches.
package testserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Server is a configurable HTTP test target. It counts requests and
// tracks how many were in flight at once.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger

	requests atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64
	sequence atomic.Int64
}

// Stats is the body of GET /stats.
type Stats struct {
	Requests     int64 `json:"requests"`
	InFlight     int64 `json:"inFlight"`
	PeakInFlight int64 `json:"peakInFlight"`
}

// NewServer creates a new test server with all endpoints configured.
// A nil logger disables request logging.
func NewServer(logger *slog.Logger) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
	}
	s.registerHandlers()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveHTTP)
}

// Stats returns the counters for requests served so far. Requests to
// /stats, /health and /reset are not counted.
func (s *Server) Stats() Stats {
	return Stats{
		Requests:     s.requests.Load(),
		InFlight:     s.inFlight.Load(),
		PeakInFlight: s.peak.Load(),
	}
}

// Reset zeroes the counters and restarts /sequence.
func (s *Server) Reset() {
	s.requests.Store(0)
	s.peak.Store(0)
	s.sequence.Store(0)
}

func (s *Server) registerHandlers() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("POST /reset", s.handleReset)
	s.mux.HandleFunc("GET /status/{code}", s.counted(s.handleStatus))
	s.mux.HandleFunc("GET /delay/{ms}", s.counted(s.handleDelay))
	s.mux.HandleFunc("GET /random-delay", s.counted(s.handleRandomDelay))
	s.mux.HandleFunc("GET /fail-rate", s.counted(s.handleFailRate))
	s.mux.HandleFunc("GET /sequence", s.counted(s.handleSequence))
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if s.logger == nil {
		s.mux.ServeHTTP(w, r)
		return
	}
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Debug("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start),
	)
}

// counted wraps h with request and in-flight accounting.
func (s *Server) counted(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		n := s.inFlight.Add(1)
		defer s.inFlight.Add(-1)
		for {
			peak := s.peak.Load()
			if n <= peak || s.peak.CompareAndSwap(peak, n) {
				break
			}
		}
		h(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Stats())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus returns the specified HTTP status code.
// Example: GET /status/404 returns 404 Not Found
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.PathValue("code"))
	if err != nil || code < 100 || code > 599 {
		http.Error(w, "invalid status code", http.StatusBadRequest)
		return
	}
	w.WriteHeader(code)
	fmt.Fprintf(w, "%d %s", code, http.StatusText(code))
}

// handleDelay waits for the specified duration before responding.
// Example: GET /delay/100 waits 100ms
func (s *Server) handleDelay(w http.ResponseWriter, r *http.Request) {
	ms, err := strconv.Atoi(r.PathValue("ms"))
	if err != nil || ms < 0 {
		http.Error(w, "invalid delay", http.StatusBadRequest)
		return
	}

	if !sleep(r, time.Duration(ms)*time.Millisecond) {
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "delayed %dms", ms)
}

// handleRandomDelay waits for a random duration within the specified range.
// Example: GET /random-delay?min=50&max=200 waits 50-200ms
func (s *Server) handleRandomDelay(w http.ResponseWriter, r *http.Request) {
	minMs, err := strconv.Atoi(r.URL.Query().Get("min"))
	if err != nil || minMs < 0 {
		minMs = 0
	}

	maxMs, err := strconv.Atoi(r.URL.Query().Get("max"))
	if err != nil || maxMs < minMs {
		maxMs = minMs + 100
	}

	delay := minMs
	if maxMs > minMs {
		delay = minMs + rand.Intn(maxMs-minMs)
	}

	if !sleep(r, time.Duration(delay)*time.Millisecond) {
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "delayed %dms (range: %d-%d)", delay, minMs, maxMs)
}

// handleFailRate fails a percentage of requests with 500 status.
// Example: GET /fail-rate?rate=10 fails 10% of requests
func (s *Server) handleFailRate(w http.ResponseWriter, r *http.Request) {
	rate, err := strconv.Atoi(r.URL.Query().Get("rate"))
	if err != nil || rate < 0 || rate > 100 {
		rate = 0
	}

	if rand.Intn(100) < rate {
		http.Error(w, "simulated failure", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "success")
}

// handleSequence answers with the next code from a repeating list.
// Example: GET /sequence?codes=200,500 returns 200, 500, 200, ...
func (s *Server) handleSequence(w http.ResponseWriter, r *http.Request) {
	var codes []int
	for _, part := range strings.Split(r.URL.Query().Get("codes"), ",") {
		code, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || code < 100 || code > 599 {
			http.Error(w, "invalid codes", http.StatusBadRequest)
			return
		}
		codes = append(codes, code)
	}

	n := s.sequence.Add(1) - 1
	code := codes[int(n%int64(len(codes)))]
	w.WriteHeader(code)
	fmt.Fprintf(w, "%d %s", code, http.StatusText(code))
}

// sleep waits for d or until the client goes away. It reports whether the
// full delay elapsed.
func sleep(r *http.Request, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.Context().Done():
		return false
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
