// Package notify delivers records to Telegram chats.
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends record summaries through the Telegram Bot API. It
// satisfies the message sender the telegram output targets need.
type Notifier struct {
	api telegramAPI
	log *slog.Logger
}

// New creates a Notifier with the given bot token.
func New(token string, log *slog.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Notifier{api: api, log: log}, nil
}

// SendText sends a text message to the given chat.
func (n *Notifier) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	n.log.Debug("sent telegram message", "chat_id", chatID)
	return nil
}
