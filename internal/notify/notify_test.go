package notify

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sentMsg struct {
	ChatID int64
	Text   string
}

type mockAPI struct {
	sent []sentMsg
	err  error
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m.err != nil {
		return tgbotapi.Message{}, m.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text})
	}
	return tgbotapi.Message{}, nil
}

func TestSendText(t *testing.T) {
	api := &mockAPI{}
	n := &Notifier{api: api, log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	if err := n.SendText(777, "New Release | https://example.com/v2"); err != nil {
		t.Fatalf("send text: %v", err)
	}

	if len(api.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(api.sent))
	}
	if api.sent[0].ChatID != 777 {
		t.Errorf("chat id = %d, want 777", api.sent[0].ChatID)
	}
	if api.sent[0].Text != "New Release | https://example.com/v2" {
		t.Errorf("text = %q", api.sent[0].Text)
	}
}

func TestSendTextError(t *testing.T) {
	api := &mockAPI{err: errors.New("chat not found")}
	n := &Notifier{api: api, log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	if err := n.SendText(1, "hi"); err == nil {
		t.Fatal("expected error")
	}
}
