// Command testserver runs a configurable HTTP target for salvo batches.
//
// Usage:
//
//	testserver [flags]
//
// Flags:
//
//	-port     Port to listen on (default: 8080)
//	-host     Host to bind to (default: localhost)
//	-verbose  Log every request
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salvo/testserver"
)

func main() {
	port := flag.Int("port", 8080, "port to listen on")
	host := flag.String("host", "localhost", "host to bind to")
	verbose := flag.Bool("verbose", false, "log every request")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	addr := fmt.Sprintf("%s:%d", *host, *port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           testserver.NewServer(logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	fmt.Println("Salvo Test Server")
	fmt.Println("=================")
	fmt.Printf("Listening on http://%s\n\n", addr)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health              - Health check")
	fmt.Println("  GET  /status/{code}       - Return specific status code")
	fmt.Println("  GET  /delay/{ms}          - Delay response by milliseconds")
	fmt.Println("  GET  /random-delay        - Random delay (?min=50&max=200)")
	fmt.Println("  GET  /fail-rate           - Fail percentage of requests (?rate=10)")
	fmt.Println("  GET  /sequence            - Cycle through status codes (?codes=200,500)")
	fmt.Println("  GET  /stats               - Request and in-flight counters")
	fmt.Println("  POST /reset               - Zero the counters")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
