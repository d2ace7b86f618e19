package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"salvo/internal/core"
	"salvo/testserver"
)

func newTarget(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(testserver.NewServer(nil).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "salvo.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type batchOutput struct {
	Strategy    string           `json:"strategy"`
	Calls       int              `json:"calls"`
	Concurrency int              `json:"concurrency"`
	Counts      map[string]int64 `json:"counts"`
}

func decodeBatch(t *testing.T, stdout string) batchOutput {
	t.Helper()
	var got batchOutput
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	return got
}

func TestRun_TextOutput(t *testing.T) {
	url := newTarget(t)

	stdout, _, err := execute(t, "run", "--quiet", "--strategy", "serial", "--max", "4", "--url", url+"/status/200")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Salvo - Batch Results", "Strategy:       serial", "Total Calls:    4", "200"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestRun_JSONOutput(t *testing.T) {
	url := newTarget(t)

	stdout, _, err := execute(t, "run", "-q", "-s", "parallelism", "-n", "5", "--concurrency", "2",
		"-o", "json", "-u", url+"/sequence?codes=200,200,500,200,500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := decodeBatch(t, stdout)
	if got.Strategy != "parallel" || got.Concurrency != 2 || got.Calls != 5 {
		t.Errorf("unexpected batch metadata: %+v", got)
	}
	if got.Counts["200"] != 3 || got.Counts["500"] != 2 {
		t.Errorf("expected {200:3, 500:2}, got %v", got.Counts)
	}
}

func TestRun_NonBlocking(t *testing.T) {
	url := newTarget(t)

	stdout, _, err := execute(t, "run", "-q", "-s", "nonblocking", "-n", "20", "-o", "json", "-u", url+"/delay/5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decodeBatch(t, stdout)
	if got.Counts["200"] != 20 {
		t.Errorf("expected 20 x 200, got %v", got.Counts)
	}
}

func TestRun_ConfigWithFlagOverride(t *testing.T) {
	url := newTarget(t)
	path := writeConfig(t, `
target:
  url: "`+url+`/status/503"
dispatch:
  strategy: serial
  max_calls: 50
`)

	stdout, _, err := execute(t, "run", "-q", "-c", path, "--max", "3", "-o", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decodeBatch(t, stdout)
	if got.Calls != 3 || got.Counts["503"] != 3 {
		t.Errorf("expected flag to override max_calls, got %+v", got)
	}
	if got.Strategy != "serial" {
		t.Errorf("expected strategy from config file, got %s", got.Strategy)
	}
}

func TestRun_ThresholdFailure(t *testing.T) {
	url := newTarget(t)
	path := writeConfig(t, `
target:
  url: "`+url+`/status/500"
dispatch:
  max_calls: 4
thresholds:
  call_failed:
    rate: "10%"
`)

	_, stderr, err := execute(t, "run", "-q", "-c", path)
	if code := exitCode(err); code != ExitThresholdFailed {
		t.Fatalf("expected exit code %d, got %d (%v)", ExitThresholdFailed, code, err)
	}
	if !strings.Contains(stderr, "Threshold check failed!") {
		t.Errorf("expected threshold message, got %q", stderr)
	}
}

func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero max", []string{"run", "-q", "--max", "0"}, "max_calls"},
		{"bad strategy", []string{"run", "-q", "--strategy", "burst"}, "unknown strategy"},
		{"bad output", []string{"run", "-q", "--output", "xml"}, "--output"},
		{"bad concurrency", []string{"run", "-q", "--concurrency", "-1"}, "concurrency"},
		{"missing config", []string{"run", "-q", "-c", "/nonexistent/salvo.yaml"}, "reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if code := exitCode(err); code != ExitError {
				t.Errorf("expected exit code %d, got %d", ExitError, code)
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRun_Verbose(t *testing.T) {
	url := newTarget(t)

	_, stderr, err := execute(t, "run", "-q", "-v", "-s", "serial", "-n", "2", "-u", url+"/status/200?call=${index}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"[Call 1] >>> GET", "call=2", "[Call 2] <<< 200", "batch complete"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("expected %q in verbose output:\n%s", want, stderr)
		}
	}
}

func TestRun_Progress(t *testing.T) {
	url := newTarget(t)

	_, stderr, err := execute(t, "run", "-s", "serial", "-n", "1", "-u", url+"/status/204")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "Salvo: 1 calls to") {
		t.Errorf("expected start banner on stderr, got %q", stderr)
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "salvo dev") {
		t.Errorf("unexpected version output %q", stdout)
	}
}

func TestExitCode(t *testing.T) {
	if exitCode(nil) != ExitSuccess {
		t.Error("nil error should exit 0")
	}
	if exitCode(errors.New("boom")) != ExitError {
		t.Error("plain error should exit 2")
	}
	wrapped := &exitError{code: ExitThresholdFailed}
	if exitCode(wrapped) != ExitThresholdFailed {
		t.Error("exitError code should be used")
	}
	if !errors.Is(&exitError{code: ExitError, err: core.ErrUnknownStrategy}, core.ErrUnknownStrategy) {
		t.Error("exitError should unwrap")
	}
}

func TestRun_DataFile(t *testing.T) {
	url := newTarget(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "codes.csv"), []byte("code\n200\n404\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "salvo.yaml")
	config := `
target:
  url: "` + url + `/status/${data.code}"
  data:
    file: codes.csv
dispatch:
  strategy: serial
  max_calls: 4
`
	if err := os.WriteFile(path, []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, "run", "-q", "-c", path, "-o", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decodeBatch(t, stdout)
	if got.Counts["200"] != 2 || got.Counts["404"] != 2 {
		t.Errorf("expected rows to alternate status codes, got %v", got.Counts)
	}
}
