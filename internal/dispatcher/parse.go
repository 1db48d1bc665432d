package dispatcher

import (
	"strconv"
	"strings"

	"linkdispatch/internal/model"
	"linkdispatch/internal/urlnorm"
)

const timeLayout = "2006-01-02 15:04:05"

// parseMessage converts a raw message into a normalized record: classify
// the content by media kind, pull the first embedded URL through the
// normalizer, and take a best-effort title from link-preview metadata.
func parseMessage(msg model.RawMessage, src model.Source, norm *urlnorm.Normalizer) model.Record {
	sender := msg.Sender
	if sender == "" {
		sender = "unknown"
	}

	replyTo := ""
	if msg.ReplyTo != 0 {
		replyTo = strconv.FormatInt(msg.ReplyTo, 10)
	}

	rec := model.Record{
		MessageID:   msg.ID,
		Time:        msg.Time.Format(timeLayout),
		Sender:      sender,
		Content:     contentFor(msg),
		SourceGroup: src.Title,
		SourceID:    src.SourceID(),
		ReplyTo:     replyTo,
	}

	if url := urlnorm.FirstURL(msg.Text); url != "" {
		rec.URL = norm.Normalize(url)
	}

	if msg.Media != nil && msg.Media.Kind == model.MediaWebPage {
		if rec.Title == "" {
			rec.Title = msg.Media.Title
		}
		if rec.URL == "" && msg.Media.URL != "" {
			rec.URL = norm.Normalize(msg.Media.URL)
		}
	}
	return rec
}

// contentFor renders the message content, substituting placeholders for
// non-text payloads.
func contentFor(msg model.RawMessage) string {
	if text := strings.TrimSpace(msg.Text); text != "" {
		return text
	}
	if msg.Media == nil {
		return "[non-text message]"
	}
	switch msg.Media.Kind {
	case model.MediaPhoto:
		return "[photo]"
	case model.MediaDocument:
		name := msg.Media.FileName
		if name == "" {
			name = "unknown file"
		}
		return "[file] " + name
	case model.MediaVideo:
		return "[video]"
	case model.MediaVoice:
		return "[voice]"
	case model.MediaPoll:
		return "[poll] " + msg.Media.Question
	case model.MediaWebPage:
		if msg.Media.Title != "" {
			return "[link] " + msg.Media.Title
		}
		return "[link]"
	default:
		return "[non-text message]"
	}
}
