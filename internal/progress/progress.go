// Package progress prints a live status line while a batch runs.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"salvo/internal/collector"
)

// DefaultInterval is how often the status line is refreshed.
const DefaultInterval = time.Second

type Progress struct {
	startTime time.Time
	collector *collector.Collector
	total     int
	interval  time.Duration
	ticker    *time.Ticker
	stopCh    chan struct{}
	done      chan struct{}
	started   atomic.Bool
	stopped   atomic.Bool
	quiet     bool
	output    io.Writer
	mu        sync.Mutex
}

func NewProgress(quiet bool) *Progress {
	return &Progress{
		quiet:    quiet,
		interval: DefaultInterval,
		output:   os.Stderr,
	}
}

func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

func (p *Progress) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

// Track starts reporting on c, a batch of total calls. Only the first
// call has any effect.
func (p *Progress) Track(c *collector.Collector, total int) {
	if p.quiet || p.stopped.Load() || p.started.Swap(true) {
		return
	}
	p.collector = c
	p.total = total
	p.startTime = time.Now()
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	p.ticker = time.NewTicker(p.interval)
	go p.run()
}

func (p *Progress) run() {
	defer close(p.done)
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.ticker.C:
			p.printProgress()
		}
	}
}

func (p *Progress) printProgress() {
	completed := p.collector.Total()
	var failures int64
	for o, n := range p.collector.Counts() {
		if o.IsFailure() {
			failures += n
		}
	}

	elapsed := time.Since(p.startTime)
	rounded := elapsed.Round(time.Second)
	mins := int(rounded.Minutes())
	secs := int(rounded.Seconds()) % 60

	pct := 0.0
	if p.total > 0 {
		pct = float64(completed) / float64(p.total) * 100
	}
	rate := 0.0
	if elapsed > 0 {
		rate = float64(completed) / elapsed.Seconds()
	}

	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K[%02d:%02d] Calls: %d/%d (%.1f%%) | Calls/sec: %.1f | Failures: %d\r",
		mins, secs, completed, p.total, pct, rate, failures)
	p.mu.Unlock()
}

// Stop ends reporting and clears the status line. It is safe to call more
// than once and without Track.
func (p *Progress) Stop() {
	if p.quiet || p.stopped.Swap(true) {
		return
	}
	if p.ticker != nil {
		p.ticker.Stop()
	}
	if p.stopCh != nil {
		close(p.stopCh)
		<-p.done
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K")
	p.mu.Unlock()
}

func (p *Progress) Print(message string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K%s\n", message)
	p.mu.Unlock()
}

func (p *Progress) Printf(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K"+format+"\n", args...)
	p.mu.Unlock()
}
