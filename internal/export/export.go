// Package export implements the deduplicating output targets: append-only
// CSV files, line-oriented text files, and Telegram chats. Each target
// keeps an in-memory index of previously written dedup keys, seeded from
// the existing output when the target is opened.
package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"linkdispatch/internal/model"
)

// Exporter is a single open output target.
type Exporter interface {
	// IsDuplicate reports whether the key has already been written to
	// this target.
	IsDuplicate(key string) bool

	// Write appends the record. The record's dedup key is marked seen
	// before the physical write, so a failed flush still suppresses
	// re-delivery within this process.
	Write(rec model.Record) error

	Close() error
}

// MessageSender delivers a text message to a chat. Implemented by
// internal/notify.
type MessageSender interface {
	SendText(chatID int64, text string) error
}

// Factory opens exporters for task output targets. File targets are
// confined to the storage root.
type Factory struct {
	Root   string
	Sender MessageSender
}

// Open creates an exporter for the output target, appending to existing
// file targets.
func (f *Factory) Open(out model.Output) (Exporter, error) {
	switch out.Format {
	case model.FormatCSV:
		return OpenCSV(SafePath(f.Root, out.Path))
	case model.FormatTxt:
		return OpenTxt(SafePath(f.Root, out.Path))
	case model.FormatTelegram:
		if f.Sender == nil {
			return nil, fmt.Errorf("telegram output %d: no sender configured", out.ChatID)
		}
		return NewTelegram(f.Sender, out.ChatID), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", out.Format)
	}
}

// SafePath resolves a configured output path against the storage root.
// A path that would escape the root is silently rewritten to a fallback
// inside the root derived from the original filename.
func SafePath(root, path string) string {
	if root == "" {
		return path
	}
	joined := path
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(root, joined)
	}
	joined = filepath.Clean(joined)

	rel, err := filepath.Rel(root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Join(root, filepath.Base(path))
	}
	return joined
}

// Manager keeps at most one open exporter per target for the lifetime of a
// process, so append-mode rescans happen once, not every cycle.
type Manager struct {
	factory *Factory
	open    map[string]Exporter
}

// NewManager creates a Manager over the factory.
func NewManager(f *Factory) *Manager {
	return &Manager{factory: f, open: make(map[string]Exporter)}
}

// Get returns the exporter for the target, opening it on first use.
func (m *Manager) Get(out model.Output) (Exporter, error) {
	key := out.TargetKey()
	if exp, ok := m.open[key]; ok {
		return exp, nil
	}
	exp, err := m.factory.Open(out)
	if err != nil {
		return nil, err
	}
	m.open[key] = exp
	return exp, nil
}

// CloseAll closes every open exporter and drops its state, forcing a fresh
// dedup-index rebuild on the next Get.
func (m *Manager) CloseAll() error {
	var firstErr error
	for key, exp := range m.open {
		if err := exp.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close target %s: %w", key, err)
		}
		delete(m.open, key)
	}
	return firstErr
}
