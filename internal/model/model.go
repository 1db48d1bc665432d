// Package model defines the domain types used across the application.
package model

import (
	"strconv"
	"time"
)

// Source is a chat/channel-like entity messages are pulled from. Sources are
// rediscovered at the start of every sync cycle and are not persisted.
type Source struct {
	ID     int64
	PeerID int64
	Title  string
}

// SourceID returns the identifier used as the checkpoint key. The protocol
// peer id wins when the collaborator provides one.
func (s Source) SourceID() string {
	if s.PeerID != 0 {
		return strconv.FormatInt(s.PeerID, 10)
	}
	return strconv.FormatInt(s.ID, 10)
}

// MediaKind tags the content carried by a raw message.
type MediaKind string

// Supported media kinds.
const (
	MediaText     MediaKind = "text"
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
	MediaVideo    MediaKind = "video"
	MediaVoice    MediaKind = "voice"
	MediaPoll     MediaKind = "poll"
	MediaWebPage  MediaKind = "webpage"
	MediaOther    MediaKind = "other"
)

// Media describes the non-text payload of a message. Only the fields
// relevant to its kind are set: FileName for documents, Question for polls,
// URL and Title for link previews.
type Media struct {
	Kind     MediaKind
	FileName string
	Question string
	URL      string
	Title    string
}

// RawMessage is a message as produced by the message-source collaborator.
// IDs are source-scoped and monotonically increasing.
type RawMessage struct {
	ID      int64
	Time    time.Time
	Sender  string
	Text    string
	ReplyTo int64
	Media   *Media
}

// Record is the normalized unit offered to tasks and exporters. Title and
// URL may be rewritten once by the enrichment stage; everything else is
// fixed at parse time.
type Record struct {
	MessageID   int64
	Time        string
	Sender      string
	Title       string
	URL         string
	Content     string
	SourceGroup string
	SourceID    string
	ReplyTo     string
}

// RecordFields is the canonical column order of tabular output targets.
// New targets are created with exactly this header; existing targets keep
// whatever header they were created with.
var RecordFields = []string{
	"message_id", "time", "sender", "title", "url",
	"content", "source_group", "source_id", "reply_to",
}

// Map returns the record as a field-name map matching RecordFields.
func (r Record) Map() map[string]string {
	return map[string]string{
		"message_id":   strconv.FormatInt(r.MessageID, 10),
		"time":         r.Time,
		"sender":       r.Sender,
		"title":        r.Title,
		"url":          r.URL,
		"content":      r.Content,
		"source_group": r.SourceGroup,
		"source_id":    r.SourceID,
		"reply_to":     r.ReplyTo,
	}
}

// DedupKey is the value deduplication is keyed on: the canonical URL when
// present, otherwise the raw content.
func (r Record) DedupKey() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Content
}

// OutputFormat selects the exporter implementation for a task target.
type OutputFormat string

// Supported output formats.
const (
	FormatCSV      OutputFormat = "csv"
	FormatTxt      OutputFormat = "txt"
	FormatTelegram OutputFormat = "telegram"
)

// Output identifies a task's output target.
type Output struct {
	Path   string
	Format OutputFormat
	ChatID int64
}

// TargetKey identifies the exporter instance an output maps to. Telegram
// targets are keyed by chat, file targets by path.
func (o Output) TargetKey() string {
	if o.Format == FormatTelegram {
		return "telegram:" + strconv.FormatInt(o.ChatID, 10)
	}
	return o.Path
}

// Task is a named routing rule. Tasks are immutable for the duration of one
// cycle and reloaded from configuration between cycles.
type Task struct {
	Name            string
	Enabled         bool
	Sources         []string
	Keywords        []string
	ExcludeKeywords []string
	Output          Output
}

// WantsAllSources reports whether the task's source selector is the
// wildcard.
func (t Task) WantsAllSources() bool {
	for _, s := range t.Sources {
		if s == "all" {
			return true
		}
	}
	return false
}

// MatchesSource reports whether the task selects the given source, by
// wildcard or by string equality against the peer id or the raw entity id.
func (t Task) MatchesSource(src Source) bool {
	if t.WantsAllSources() {
		return true
	}
	peer := strconv.FormatInt(src.PeerID, 10)
	raw := strconv.FormatInt(src.ID, 10)
	for _, s := range t.Sources {
		if s == peer || s == raw {
			return true
		}
	}
	return false
}
