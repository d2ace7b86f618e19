package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"salvo/internal/config"
	"salvo/internal/data"
	"salvo/internal/dispatcher"
	httpcaller "salvo/internal/http"
	"salvo/internal/ratelimit"
	"salvo/internal/server"
)

const shutdownTimeout = 10 * time.Second

// newLogger creates a JSON logger for the server.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve batch dispatch over HTTP",
		Long: `Start an HTTP server that runs a batch per request against the
configured target.

Routes:
  GET /serial/{max}
  GET /parallelism/{max}?concurrency=K
  GET /nonblocking/{max}
  GET /health

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  salvo serve -c salvo.yaml --addr :9090`,
		RunE: runServe,
	}
	cmd.Flags().StringP("config", "c", "", "path to config file")
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("url", "", "target URL (overrides target.url)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
	}
	if cmd.Flags().Changed("url") {
		cfg.Target.URL, _ = cmd.Flags().GetString("url")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	d, err := newDispatcher(cfg, nil, logger)
	if err != nil {
		return err
	}
	srv := server.New(d, cfg.Server, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server",
		"addr", cfg.Server.Addr,
		"target", cfg.Target.URL,
		"max_calls", cfg.Server.MaxCalls,
	)
	errCh, err := srv.Start(ctx, cfg.Server.Addr)
	if err != nil {
		return err
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// newDispatcher wires the HTTP callers described by cfg into a Dispatcher.
// The blocking caller serves serial and parallel batches; non-blocking
// batches go through a caller on a multiplexed transport.
func newDispatcher(cfg *config.Config, debug *httpcaller.DebugLogger, logger *slog.Logger, opts ...dispatcher.Option) (*dispatcher.Dispatcher, error) {
	var callerOpts []httpcaller.CallerOption
	if dc := cfg.Target.Data; dc != nil {
		mode, err := data.ParseMode(string(dc.Mode))
		if err != nil {
			return nil, err
		}
		src, err := data.LoadFile(dc.File, mode, cfg.Dir)
		if err != nil {
			return nil, err
		}
		callerOpts = append(callerOpts, httpcaller.WithData(src))
	}

	blocking := httpcaller.NewCaller(cfg.Target, httpcaller.NewClient(cfg.Dispatch.Concurrency), debug, callerOpts...)
	multiplexed := httpcaller.NewCaller(cfg.Target, httpcaller.NewMultiplexClient(cfg.Dispatch.MaxInFlight), debug, callerOpts...)

	base := []dispatcher.Option{
		dispatcher.WithAsyncCaller(multiplexed),
		dispatcher.WithConcurrency(cfg.Dispatch.Concurrency),
		dispatcher.WithLogger(logger),
	}
	if cfg.Dispatch.RPS > 0 {
		base = append(base, dispatcher.WithRateLimiter(ratelimit.NewRateLimiter(cfg.Dispatch.RPS)))
	}
	return dispatcher.New(blocking, append(base, opts...)...), nil
}
