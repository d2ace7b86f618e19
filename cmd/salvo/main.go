// Package main is the entry point for the salvo CLI.
//
// Usage:
//
//	salvo run --strategy parallel --max 100 --url http://localhost:8080/status/200
//	salvo serve -c salvo.yaml           # expose /serial, /parallelism, /nonblocking
//	salvo version                       # show version info
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	ExitSuccess         = 0
	ExitThresholdFailed = 1
	ExitError           = 2
)

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "salvo",
		Short: "Fire a batch of HTTP calls and count what comes back",
		Long: `salvo sends N calls to one target and aggregates the responses:
a count per status outcome, the elapsed time and per-call latency.

Calls are dispatched with one of three strategies:
  serial       one call after another
  parallel     at most --concurrency calls in flight (default 10)
  nonblocking  every call issued at once over a multiplexed transport

Example:
  salvo run --strategy parallel --max 100 --url http://localhost:8080/status/200`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newServeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "salvo %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// exitCode maps a command error onto a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitError
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		var ee *exitError
		if !errors.As(err, &ee) || ee.err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	os.Exit(exitCode(err))
}
