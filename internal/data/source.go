// Package data supplies per-call parameters from a CSV or JSON file.
// Call number i of a batch reads its own row, so URL and header
// placeholders such as ${data.id} vary from call to call.
package data

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Mode defines how a call index is mapped onto a row.
type Mode string

const (
	// ModeSequential gives call i row (i-1) mod len, wrapping around.
	ModeSequential Mode = "sequential"
	// ModeRandom gives each call a random row.
	ModeRandom Mode = "random"
)

// ParseMode resolves a mode name. The empty string means sequential.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSequential:
		return ModeSequential, nil
	case ModeRandom:
		return ModeRandom, nil
	}
	return "", fmt.Errorf("unknown data mode %q (use sequential or random)", s)
}

// Source holds the rows of a loaded data file. It is safe for concurrent use.
type Source struct {
	rows []map[string]any
	mode Mode
	mu   sync.Mutex
	rng  *rand.Rand
}

// NewSource creates a data source from loaded rows.
func NewSource(rows []map[string]any, mode Mode) *Source {
	if mode == "" {
		mode = ModeSequential
	}
	return &Source{
		rows: rows,
		mode: mode,
		rng:  rand.New(rand.NewSource(rand.Int63())),
	}
}

// Len returns the number of rows.
func (s *Source) Len() int {
	return len(s.rows)
}

// Row returns the row for call number index (1-based).
func (s *Source) Row(index int) map[string]any {
	if len(s.rows) == 0 {
		return nil
	}

	var idx int
	switch s.mode {
	case ModeRandom:
		s.mu.Lock()
		idx = s.rng.Intn(len(s.rows))
		s.mu.Unlock()
	default:
		idx = (index - 1) % len(s.rows)
		if idx < 0 {
			idx += len(s.rows)
		}
	}
	return s.rows[idx]
}

// Inject sets the fields of the row for call index as "data.<field>".
func (s *Source) Inject(vars interface{ Set(key string, value any) }, index int) {
	if s == nil {
		return
	}
	for field, value := range s.Row(index) {
		vars.Set("data."+field, value)
	}
}

// LoadFile loads a data file (CSV or JSON). Relative paths are resolved
// against dir, normally the directory of the config file.
func LoadFile(path string, mode Mode, dir string) (*Source, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}

	var (
		rows []map[string]any
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = loadCSV(path)
	case ".json":
		rows, err = loadJSON(path)
	default:
		return nil, fmt.Errorf("unsupported file format %q (use .csv or .json)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("data file %s is empty", path)
	}

	return NewSource(rows, mode), nil
}

// loadCSV reads a header row followed by data rows.
func loadCSV(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV must have header row and at least one data row")
	}

	headers := records[0]
	rows := make([]map[string]any, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]any, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = record[i]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// loadJSON reads an array of objects.
func loadJSON(path string) ([]map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("JSON must be an array of objects: %w", err)
	}
	return rows, nil
}
