package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockcheck/internal/config"
	"github.com/mamadbah2/stockcheck/internal/domain/models"
	client "github.com/mamadbah2/stockcheck/pkg/clients/telegram"
)

// ErrInvalidSecret is returned when a webhook call carries the wrong secret token.
var ErrInvalidSecret = errors.New("invalid webhook secret")

const msgDownloadFailed = "Не удалось получить файл. Попробуйте отправить его ещё раз."

// MessagingService describes the operations the HTTP layer can perform.
type MessagingService interface {
	VerifySecret(token string) error
	HandleUpdate(ctx context.Context, update models.Update) error
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// EventHandler consumes decoded operator events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev models.InboundEvent) error
}

// BotService is the production implementation backed by the Telegram Bot API.
type BotService struct {
	cfg     config.TelegramConfig
	client  client.Client
	handler EventHandler
	logger  *zap.Logger
}

// NewBotService wires a new service instance.
func NewBotService(cfg config.TelegramConfig, client client.Client, handler EventHandler, logger *zap.Logger) *BotService {
	svc := &BotService{
		cfg:     cfg,
		client:  client,
		handler: handler,
		logger:  logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// VerifySecret checks the X-Telegram-Bot-Api-Secret-Token header value.
func (s *BotService) VerifySecret(token string) error {
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.WebhookSecret)) != 1 {
		return ErrInvalidSecret
	}
	return nil
}

// HandleUpdate turns a webhook update into an operator event and runs it.
func (s *BotService) HandleUpdate(ctx context.Context, update models.Update) error {
	if update.CallbackQuery != nil {
		s.ackCallback(ctx, update.CallbackQuery.ID)
	}

	ev, ok, err := s.toEvent(ctx, update)
	if err != nil {
		if update.Message != nil {
			s.notifyFailure(ctx, update.Message.Chat.ID, msgDownloadFailed)
		}
		return fmt.Errorf("decode update %d: %w", update.UpdateID, err)
	}
	if !ok {
		s.logger.Debug("skipping unsupported update", zap.Int64("update_id", update.UpdateID))
		return nil
	}

	s.logger.Info("inbound event",
		zap.Int64("update_id", update.UpdateID),
		zap.Int64("chat_id", ev.ChatID),
		zap.Int64("user_id", ev.UserID),
		zap.Int("kind", int(ev.Kind)))

	return s.handler.HandleEvent(ctx, ev)
}

// ackCallback stops the client spinner. Failures are not fatal.
func (s *BotService) ackCallback(ctx context.Context, id string) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.client.AnswerCallbackQuery(ctxWithTimeout, id, ""); err != nil {
		s.logger.Warn("failed to answer callback query", zap.String("callback_id", id), zap.Error(err))
	}
}

// notifyFailure tells the chat its update could not be processed.
func (s *BotService) notifyFailure(ctx context.Context, chatID int64, text string) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.client.SendMessage(ctxWithTimeout, client.SendMessageRequest{ChatID: chatID, Text: text}); err != nil {
		s.logger.Warn("failed to notify chat about update failure", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (s *BotService) toEvent(ctx context.Context, update models.Update) (models.InboundEvent, bool, error) {
	if cq := update.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.Data == "" {
			return models.InboundEvent{}, false, nil
		}
		return models.InboundEvent{
			Kind:    models.EventCallback,
			ChatID:  cq.Message.Chat.ID,
			UserID:  cq.From.ID,
			Private: cq.Message.Chat.IsPrivate(),
			Data:    cq.Data,
		}, true, nil
	}

	msg := update.Message
	if msg == nil {
		return models.InboundEvent{}, false, nil
	}

	ev := models.InboundEvent{
		ChatID:  msg.Chat.ID,
		Private: msg.Chat.IsPrivate(),
	}
	if msg.From != nil {
		ev.UserID = msg.From.ID
	}

	switch {
	case msg.Document != nil:
		if !ev.Private {
			return models.InboundEvent{}, false, nil
		}
		file, err := s.download(ctx, *msg.Document)
		if err != nil {
			return models.InboundEvent{}, false, err
		}
		ev.Kind = models.EventDocument
		ev.Document = file
	case models.IsCommand(msg.Text):
		ev.Kind = models.EventCommand
		ev.Command = models.ParseCommand(msg.Text)
		ev.Text = msg.Text
	case strings.TrimSpace(msg.Text) != "":
		ev.Kind = models.EventText
		ev.Text = msg.Text
	default:
		return models.InboundEvent{}, false, nil
	}

	return ev, true, nil
}

func (s *BotService) download(ctx context.Context, doc models.Document) (*models.UploadedFile, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	file, err := s.client.GetFile(ctxWithTimeout, doc.FileID)
	if err != nil {
		return nil, err
	}
	body, err := s.client.DownloadFile(ctxWithTimeout, file.FilePath)
	if err != nil {
		return nil, err
	}

	name := doc.FileName
	if name == "" {
		name = file.FilePath
	}
	return &models.UploadedFile{Name: name, Body: body}, nil
}

// SendOutbound lets internal operators push quick notifications via HTTP.
func (s *BotService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.client.SendMessage(ctxWithTimeout, client.SendMessageRequest{
		ChatID: req.ChatID,
		Text:   req.Message,
	})
	return err
}

// RegisterCommands publishes the command menu shown by Telegram clients.
func (s *BotService) RegisterCommands(ctx context.Context) error {
	return s.client.SetMyCommands(ctx, []client.BotCommand{
		{Command: "start", Description: "Начать сверку остатков"},
		{Command: "history", Description: "История остатков по товару"},
		{Command: "cancel", Description: "Прервать текущее действие"},
		{Command: "help", Description: "Справка"},
	})
}
