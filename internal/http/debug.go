package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// DebugLogger writes a line per request, response and failure in verbose
// mode. A nil *DebugLogger discards everything.
type DebugLogger struct {
	out io.Writer
	mu  sync.Mutex
}

func NewDebugLogger(out io.Writer) *DebugLogger {
	return &DebugLogger{out: out}
}

func (d *DebugLogger) LogRequest(index int, req *http.Request) {
	if d == nil {
		return
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[Call %d] >>> %s %s\n", index, req.Method, req.URL.String())
	writeHeaders(&buf, req.Header)

	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprint(d.out, buf.String())
}

func (d *DebugLogger) LogResponse(index int, resp *http.Response, duration time.Duration) {
	if d == nil {
		return
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[Call %d] <<< %d %s (%s)\n",
		index, resp.StatusCode, http.StatusText(resp.StatusCode), duration.Round(time.Millisecond))
	writeHeaders(&buf, resp.Header)

	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprint(d.out, buf.String())
}

func (d *DebugLogger) LogError(index int, errMsg string, duration time.Duration) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "[Call %d] !!! ERROR (%s)\n  %s\n",
		index, duration.Round(time.Millisecond), errMsg)
}

func writeHeaders(buf *bytes.Buffer, h http.Header) {
	if len(h) == 0 {
		return
	}
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	buf.WriteString("  Headers:\n")
	for _, name := range names {
		fmt.Fprintf(buf, "    %s: %s\n", name, strings.Join(h[name], ", "))
	}
}
