package telegram

import (
	"context"
	"time"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
	client "github.com/mamadbah2/stockcheck/pkg/clients/telegram"
)

// Sender delivers conversation replies through the Bot API.
type Sender struct {
	client client.Client
}

// NewSender wraps a Bot API client.
func NewSender(c client.Client) *Sender {
	return &Sender{client: c}
}

// Send posts one message, attaching an inline keyboard when buttons are present.
func (s *Sender) Send(ctx context.Context, msg models.OutboundMessage) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.client.SendMessage(ctxWithTimeout, client.SendMessageRequest{
		ChatID:      msg.ChatID,
		Text:        msg.Text,
		ReplyMarkup: markup(msg.Keyboard),
	})
	return err
}

func markup(kb models.Keyboard) *client.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]client.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]client.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, client.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, buttons)
	}
	return &client.InlineKeyboardMarkup{InlineKeyboard: rows}
}
