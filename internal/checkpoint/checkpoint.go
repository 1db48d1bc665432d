// Package checkpoint persists the per-source resumption cursor: a flat
// JSON document mapping source id to the last fully read message id.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store holds the checkpoint map in memory and rewrites the backing file on
// every update. It is owned by a single process; there is no cross-process
// locking.
type Store struct {
	path   string
	values map[string]int64
}

// Open loads the checkpoint file at path, creating an empty store if the
// file does not exist yet. A corrupt file is an error rather than a silent
// reset, so a bad deploy cannot cause a full re-read of every source.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]int64)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse checkpoint file %s: %w", path, err)
	}
	return s, nil
}

// Get returns the last seen message id for the source, or 0.
func (s *Store) Get(sourceID string) int64 {
	return s.values[sourceID]
}

// Set advances the cursor for the source and persists the whole file.
// A value lower than the current cursor is ignored: the cursor only ever
// moves forward.
func (s *Store) Set(sourceID string, value int64) error {
	if value <= s.values[sourceID] {
		return nil
	}
	s.values[sourceID] = value
	return s.save()
}

// save rewrites the file atomically via a temp file and rename, so a crash
// mid-write never truncates the previous checkpoint.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoints: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint file: %w", err)
	}
	return nil
}
