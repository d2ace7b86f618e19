package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"salvo/internal/collector"
	"salvo/internal/config"
	"salvo/internal/core"
	"salvo/internal/dispatcher"
	httpcaller "salvo/internal/http"
	"salvo/internal/progress"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	configPath  string
	strategy    string
	max         int
	concurrency int
	url         string
	rps         int
	output      string
	quiet       bool
	verbose     bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch one batch and report the results",
		Long: `Dispatch one batch of calls against the target and print the
aggregated outcome counts, duration and latency.

Flags override values from the config file.

Exit codes:
  0  batch completed and every threshold passed
  1  a threshold failed
  2  invalid input or the batch could not run

Example:
  salvo run --strategy serial --max 20 --url http://localhost:8080/delay/10
  salvo run -c salvo.yaml --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return &exitError{code: ExitError, err: err}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			code, err := runBatch(ctx, cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if code != ExitSuccess || err != nil {
				return &exitError{code: code, err: err}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to YAML config file")
	f.StringVarP(&opts.strategy, "strategy", "s", "", "dispatch strategy: "+strategyNames())
	f.IntVarP(&opts.max, "max", "n", 0, "number of calls in the batch")
	f.IntVar(&opts.concurrency, "concurrency", 0, "calls in flight for the parallel strategy")
	f.StringVarP(&opts.url, "url", "u", "", "target URL, may contain ${index}")
	f.IntVar(&opts.rps, "rps", 0, "cap on calls started per second (0 = unlimited)")
	f.StringVarP(&opts.output, "output", "o", "text", "output format: text, json")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress progress output")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log every request and response")
	return cmd
}

// resolve loads the config file, if any, and applies the flags that were
// set on top of it.
func (o *runOptions) resolve(cmd *cobra.Command) (*config.Config, error) {
	if o.output != "text" && o.output != "json" {
		return nil, fmt.Errorf("--output must be 'text' or 'json', got %q", o.output)
	}

	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("strategy") {
		s, err := core.ParseStrategy(o.strategy)
		if err != nil {
			return nil, err
		}
		cfg.Dispatch.Strategy = s
	}
	if flags.Changed("max") {
		cfg.Dispatch.MaxCalls = o.max
	}
	if flags.Changed("concurrency") {
		cfg.Dispatch.Concurrency = o.concurrency
	}
	if flags.Changed("url") {
		cfg.Target.URL = o.url
	}
	if flags.Changed("rps") {
		cfg.Dispatch.RPS = o.rps
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runBatch dispatches the configured batch, writes the report to stdout
// and returns the process exit code.
func runBatch(ctx context.Context, cfg *config.Config, opts *runOptions, stdout, stderr io.Writer) (int, error) {
	level := slog.LevelWarn
	var debug *httpcaller.DebugLogger
	if opts.verbose {
		level = slog.LevelDebug
		debug = httpcaller.NewDebugLogger(stderr)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	prog := progress.NewProgress(opts.quiet)
	prog.SetOutput(stderr)
	defer prog.Stop()

	d, err := newDispatcher(cfg, debug, logger,
		dispatcher.WithObserver(func(c *collector.Collector, b dispatcher.Batch) {
			prog.Track(c, b.Max)
		}),
	)
	if err != nil {
		return ExitError, err
	}

	batch := dispatcher.Batch{
		Max:         cfg.Dispatch.MaxCalls,
		Strategy:    cfg.Dispatch.Strategy,
		Concurrency: cfg.Dispatch.Concurrency,
	}
	if batch.Strategy == core.StrategyParallel {
		prog.Printf("Salvo: %d calls to %s (%s, concurrency %d)", batch.Max, cfg.Target.URL, batch.Strategy, batch.Concurrency)
	} else {
		prog.Printf("Salvo: %d calls to %s (%s)", batch.Max, cfg.Target.URL, batch.Strategy)
	}

	result, err := d.Run(ctx, batch)
	prog.Stop()
	if err != nil {
		return ExitError, err
	}

	var thresholdResults *collector.ThresholdResults
	if cfg.Thresholds != nil {
		thresholdResults = cfg.Thresholds.Check(collector.ComputeMetrics(result))
	}

	if opts.output == "json" {
		collector.FormatJSON(stdout, result, thresholdResults)
	} else {
		collector.FormatText(stdout, result, thresholdResults)
	}

	if ctx.Err() != nil {
		fmt.Fprintln(stderr, "Interrupted: remaining calls were cancelled")
		return ExitSuccess, nil
	}

	if thresholdResults != nil && !thresholdResults.Passed {
		if opts.output == "text" {
			fmt.Fprintln(stderr, "\nThreshold check failed!")
		}
		return ExitThresholdFailed, nil
	}
	return ExitSuccess, nil
}

func strategyNames() string {
	names := make([]string, len(core.Strategies))
	for i, s := range core.Strategies {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
