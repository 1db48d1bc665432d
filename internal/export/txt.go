package export

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"linkdispatch/internal/model"
)

// TxtExporter appends one line per record: the record URL when present,
// otherwise the raw content. Deduplication is keyed on the literal written
// value.
type TxtExporter struct {
	file *os.File
	seen map[string]struct{}
}

// OpenTxt opens the target in append mode, seeding the dedup index from
// every existing line.
func OpenTxt(path string) (*TxtExporter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	e := &TxtExporter{seen: make(map[string]struct{})}

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("scan existing output %s: %w", path, err)
	}
	if err == nil {
		sc := bufio.NewScanner(bytes.NewReader(existing))
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			if line := sc.Text(); line != "" {
				e.seen[line] = struct{}{}
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scan existing output %s: %w", path, err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	e.file = f
	return e, nil
}

// IsDuplicate reports whether the value has already been written.
func (e *TxtExporter) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}
	_, ok := e.seen[key]
	return ok
}

// Write appends the record's dedup value as a single line and syncs it.
func (e *TxtExporter) Write(rec model.Record) error {
	line := rec.DedupKey()
	e.seen[line] = struct{}{}

	if _, err := e.file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	if err := e.file.Sync(); err != nil {
		return fmt.Errorf("flush line: %w", err)
	}
	return nil
}

// Close closes the file.
func (e *TxtExporter) Close() error {
	return e.file.Close()
}
