package dispatcher

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"linkdispatch/internal/model"
	"linkdispatch/internal/urlnorm"
)

func TestParseMessage(t *testing.T) {
	norm := urlnorm.New(urlnorm.Rules{
		Global: urlnorm.GlobalRule{DefaultStrip: []string{"utm_source", "spm"}},
	})
	src := model.Source{ID: 42, Title: "Dev Chat"}
	at := time.Date(2024, 3, 10, 9, 30, 5, 0, time.UTC)

	tests := []struct {
		name string
		msg  model.RawMessage
		want model.Record
	}{
		{
			name: "text with tracked url",
			msg: model.RawMessage{
				ID:     7,
				Time:   at,
				Sender: "bob",
				Text:   "worth reading https://example.com/post?spm=a.b&id=3",
			},
			want: model.Record{
				MessageID:   7,
				Time:        "2024-03-10 09:30:05",
				Sender:      "bob",
				Content:     "worth reading https://example.com/post?spm=a.b&id=3",
				URL:         "https://example.com/post?id=3",
				SourceGroup: "Dev Chat",
				SourceID:    "42",
			},
		},
		{
			name: "anonymous sender and reply",
			msg:  model.RawMessage{ID: 8, Time: at, Text: "hi", ReplyTo: 7},
			want: model.Record{
				MessageID:   8,
				Time:        "2024-03-10 09:30:05",
				Sender:      "unknown",
				Content:     "hi",
				SourceGroup: "Dev Chat",
				SourceID:    "42",
				ReplyTo:     "7",
			},
		},
		{
			name: "photo placeholder",
			msg: model.RawMessage{
				ID: 9, Time: at, Sender: "bob",
				Media: &model.Media{Kind: model.MediaPhoto},
			},
			want: model.Record{
				MessageID:   9,
				Time:        "2024-03-10 09:30:05",
				Sender:      "bob",
				Content:     "[photo]",
				SourceGroup: "Dev Chat",
				SourceID:    "42",
			},
		},
		{
			name: "document placeholder carries filename",
			msg: model.RawMessage{
				ID: 10, Time: at, Sender: "bob",
				Media: &model.Media{Kind: model.MediaDocument, FileName: "notes.pdf"},
			},
			want: model.Record{
				MessageID:   10,
				Time:        "2024-03-10 09:30:05",
				Sender:      "bob",
				Content:     "[file] notes.pdf",
				SourceGroup: "Dev Chat",
				SourceID:    "42",
			},
		},
		{
			name: "webpage preview supplies title and url",
			msg: model.RawMessage{
				ID: 11, Time: at, Sender: "bob",
				Media: &model.Media{
					Kind:  model.MediaWebPage,
					Title: "Release Notes",
					URL:   "https://example.com/release?utm_source=share",
				},
			},
			want: model.Record{
				MessageID:   11,
				Time:        "2024-03-10 09:30:05",
				Sender:      "bob",
				Content:     "[link] Release Notes",
				URL:         "https://example.com/release",
				Title:       "Release Notes",
				SourceGroup: "Dev Chat",
				SourceID:    "42",
			},
		},
		{
			name: "text url wins over preview url",
			msg: model.RawMessage{
				ID: 12, Time: at, Sender: "bob",
				Text: "see https://example.com/a",
				Media: &model.Media{
					Kind:  model.MediaWebPage,
					Title: "Preview",
					URL:   "https://example.com/b",
				},
			},
			want: model.Record{
				MessageID:   12,
				Time:        "2024-03-10 09:30:05",
				Sender:      "bob",
				Content:     "see https://example.com/a",
				URL:         "https://example.com/a",
				Title:       "Preview",
				SourceGroup: "Dev Chat",
				SourceID:    "42",
			},
		},
		{
			name: "empty message",
			msg:  model.RawMessage{ID: 13, Time: at, Sender: "bob"},
			want: model.Record{
				MessageID:   13,
				Time:        "2024-03-10 09:30:05",
				Sender:      "bob",
				Content:     "[non-text message]",
				SourceGroup: "Dev Chat",
				SourceID:    "42",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseMessage(tt.msg, src, norm)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseMessage() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
