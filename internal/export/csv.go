package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"linkdispatch/internal/model"
)

// utf8BOM is prepended to new CSV files so spreadsheet tools pick up the
// encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter appends records to a tabular file. The column order is locked
// to the header found in an existing file, which keeps old targets readable
// when the record schema gains fields between runs.
type CSVExporter struct {
	file    *os.File
	writer  *csv.Writer
	columns []string
	seen    map[string]struct{}
}

// OpenCSV opens the target in append mode. An existing file is scanned
// fully to seed the dedup index and to lock in its column order; a new file
// gets the canonical record header.
func OpenCSV(path string) (*CSVExporter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	e := &CSVExporter{seen: make(map[string]struct{})}

	existing, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// new target, canonical header below
	case err != nil:
		return nil, fmt.Errorf("scan existing output %s: %w", path, err)
	default:
		if err := e.scan(existing); err != nil {
			return nil, fmt.Errorf("scan existing output %s: %w", path, err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	e.file = f
	e.writer = csv.NewWriter(f)

	if e.columns == nil {
		e.columns = append([]string(nil), model.RecordFields...)
		if _, err := f.Write(utf8BOM); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		if err := e.writer.Write(e.columns); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		e.writer.Flush()
		if err := e.writer.Error(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return e, nil
}

// scan reads an existing file, locking its header and seeding the dedup
// index from the url column (falling back to content for URL-less rows).
// Short or malformed rows are skipped, not fatal.
func (e *CSVExporter) scan(data []byte) error {
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	e.columns = header

	urlIdx, contentIdx := -1, -1
	for i, col := range header {
		switch col {
		case "url":
			urlIdx = i
		case "content":
			contentIdx = i
		}
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			continue
		}
		key := ""
		if urlIdx >= 0 && urlIdx < len(row) {
			key = row[urlIdx]
		}
		if key == "" && contentIdx >= 0 && contentIdx < len(row) {
			key = row[contentIdx]
		}
		if key != "" {
			e.seen[key] = struct{}{}
		}
	}
}

// IsDuplicate reports whether the key was seen in the existing file or
// written during this process.
func (e *CSVExporter) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}
	_, ok := e.seen[key]
	return ok
}

// Write appends one row in the locked column order, dropping record fields
// the target does not know about. The row is flushed immediately.
func (e *CSVExporter) Write(rec model.Record) error {
	e.seen[rec.DedupKey()] = struct{}{}

	fields := rec.Map()
	row := make([]string, len(e.columns))
	for i, col := range e.columns {
		row[i] = fields[col]
	}

	if err := e.writer.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	e.writer.Flush()
	if err := e.writer.Error(); err != nil {
		return fmt.Errorf("flush row: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (e *CSVExporter) Close() error {
	e.writer.Flush()
	if err := e.writer.Error(); err != nil {
		_ = e.file.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	return e.file.Close()
}
