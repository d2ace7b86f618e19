// Package server exposes batch dispatch over HTTP.
//
// Routes:
//   - GET /serial/{max}: run max calls one after another
//   - GET /parallelism/{max}: run max calls, at most ?concurrency=K at once
//   - GET /nonblocking/{max}: issue max calls without waiting between them
//   - GET /health: liveness check
//
// Each batch route answers with the batch result as JSON and sets the
// X-Batch-ID header. Invalid parameters get a 400 with {"error": "..."}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"salvo/internal/config"
	"salvo/internal/core"
	"salvo/internal/dispatcher"
)

const (
	// BatchIDHeader carries the id of the batch a response describes.
	BatchIDHeader = "X-Batch-ID"

	shutdownTimeout = 5 * time.Second
)

// Server maps routes onto dispatcher runs.
type Server struct {
	dispatcher *dispatcher.Dispatcher
	maxCalls   int
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a Server. A batch may ask for at most cfg.MaxCalls calls;
// zero or less means no limit.
func New(d *dispatcher.Dispatcher, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dispatcher: d,
		maxCalls:   cfg.MaxCalls,
		logger:     logger,
	}
}

// Handler returns the routing handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /serial/{max}", s.handleBatch(core.StrategySerial))
	mux.HandleFunc("GET /parallelism/{max}", s.handleBatch(core.StrategyParallel))
	mux.HandleFunc("GET /nonblocking/{max}", s.handleBatch(core.StrategyNonBlocking))
	return mux
}

// Start begins serving on addr in a background goroutine. It returns once
// the listener is bound. The server shuts down when ctx is cancelled;
// the returned channel receives the serve error, or nil, when it stops.
func (s *Server) Start(ctx context.Context, addr string) (<-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind to %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("server listening", "addr", ln.Addr().String(), "max_calls", s.maxCalls)
	return errCh, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBatch(strategy core.Strategy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := s.parseBatch(r, strategy)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		result, err := s.dispatcher.Run(r.Context(), b)
		if err != nil {
			s.logger.Error("batch failed", "strategy", strategy, "calls", b.Max, "error", err)
			writeError(w, statusFor(err), err)
			return
		}

		w.Header().Set(BatchIDHeader, result.ID)
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) parseBatch(r *http.Request, strategy core.Strategy) (dispatcher.Batch, error) {
	b := dispatcher.Batch{Strategy: strategy}

	max, err := strconv.Atoi(r.PathValue("max"))
	if err != nil {
		return b, fmt.Errorf("%w: %q", dispatcher.ErrInvalidMax, r.PathValue("max"))
	}
	if max <= 0 {
		return b, fmt.Errorf("%w: %d", dispatcher.ErrInvalidMax, max)
	}
	if s.maxCalls > 0 && max > s.maxCalls {
		return b, fmt.Errorf("max %d exceeds the limit of %d calls per batch", max, s.maxCalls)
	}
	b.Max = max

	if v := r.URL.Query().Get("concurrency"); v != "" && strategy == core.StrategyParallel {
		k, err := strconv.Atoi(v)
		if err != nil || k <= 0 {
			return b, fmt.Errorf("%w: %q", dispatcher.ErrInvalidConcurrency, v)
		}
		b.Concurrency = k
	}
	return b, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatcher.ErrInvalidMax),
		errors.Is(err, dispatcher.ErrInvalidConcurrency),
		errors.Is(err, core.ErrUnknownStrategy):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
