package export

import (
	"fmt"
	"strings"

	"linkdispatch/internal/model"
)

// TelegramExporter routes records to a chat through a MessageSender. The
// dedup index starts empty each process: chat history cannot be rescanned
// the way file targets are.
type TelegramExporter struct {
	sender MessageSender
	chatID int64
	seen   map[string]struct{}
}

// NewTelegram creates an exporter for the given chat.
func NewTelegram(sender MessageSender, chatID int64) *TelegramExporter {
	return &TelegramExporter{
		sender: sender,
		chatID: chatID,
		seen:   make(map[string]struct{}),
	}
}

// IsDuplicate reports whether the key was delivered during this process.
func (e *TelegramExporter) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}
	_, ok := e.seen[key]
	return ok
}

// Write sends the record as a message.
func (e *TelegramExporter) Write(rec model.Record) error {
	e.seen[rec.DedupKey()] = struct{}{}

	if err := e.sender.SendText(e.chatID, FormatRecord(rec)); err != nil {
		return fmt.Errorf("send to chat %d: %w", e.chatID, err)
	}
	return nil
}

// Close is a no-op; the sender is shared.
func (e *TelegramExporter) Close() error {
	return nil
}

// FormatRecord renders a record as a notification message.
func FormatRecord(rec model.Record) string {
	var b strings.Builder
	if rec.Title != "" {
		b.WriteString(rec.Title)
		b.WriteString("\n")
	}
	if rec.URL != "" {
		b.WriteString(rec.URL)
		b.WriteString("\n")
	}
	if rec.Title == "" && rec.URL == "" {
		b.WriteString(rec.Content)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s | %s", rec.SourceGroup, rec.Time)
	return b.String()
}
