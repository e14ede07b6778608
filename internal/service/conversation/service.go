package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
	"github.com/mamadbah2/stockcheck/internal/repository/extract"
	"github.com/mamadbah2/stockcheck/internal/repository/ledger"
)

// Messenger delivers bot replies.
type Messenger interface {
	Send(ctx context.Context, msg models.OutboundMessage) error
}

// Catalog is the shared product list.
type Catalog interface {
	List() []models.Product
	Get(code string) (models.Product, bool)
	Add(p models.Product) error
	Remove(code string) error
	SetThreshold(code string, threshold int) error
}

// ExtractSource provides the accounting stock export.
type ExtractSource interface {
	Latest() (extract.FileInfo, error)
	Load() (models.Extract, extract.FileInfo, error)
	Import(name string, body []byte) (extract.FileInfo, models.Extract, error)
}

// HistoryReader answers per-product history queries.
type HistoryReader interface {
	History(ctx context.Context, code string, days int) ([]models.LedgerRow, error)
}

// Archiver stores published reconciliation summaries.
type Archiver interface {
	SaveReconciliationReport(ctx context.Context, report models.ReconciliationReport) error
	RecentReports(ctx context.Context, limit int64) ([]models.ReconciliationReport, error)
}

// Config holds the fixed identities of a deployment.
type Config struct {
	AdminID      int64
	NotifyChatID int64
	Location     *time.Location
}

// Dependencies are the collaborators driven by the state machine. Archiver is optional.
type Dependencies struct {
	Catalog   Catalog
	Extracts  ExtractSource
	Ledger    ledger.Ledger
	History   HistoryReader
	Messenger Messenger
	Archiver  Archiver
}

// Service runs the stock counting conversation for every operator chat.
type Service struct {
	cfg      Config
	deps     Dependencies
	sessions *SessionManager
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires the conversation service.
func NewService(cfg Config, deps Dependencies, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		cfg:      cfg,
		deps:     deps,
		sessions: NewSessionManager(),
		logger:   logger,
		now:      time.Now,
	}
}

// Sessions exposes the session registry.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// HandleEvent processes one inbound event to completion. Failures inside a
// transition are reported to the operator; the returned error only signals
// that a reply could not be delivered.
func (s *Service) HandleEvent(ctx context.Context, ev models.InboundEvent) error {
	if !ev.Private {
		s.logger.Debug("ignoring event from non-private chat", zap.Int64("chat_id", ev.ChatID))
		return nil
	}

	return s.sessions.With(ev.ChatID, func(sess *Session) error {
		before := sess.State

		var err error
		switch ev.Kind {
		case models.EventCommand:
			err = s.handleCommand(ctx, sess, ev)
		case models.EventText:
			err = s.handleText(ctx, sess, ev)
		case models.EventCallback:
			err = s.handleCallback(ctx, sess, ev)
		case models.EventDocument:
			err = s.handleDocument(ctx, sess, ev)
		default:
			s.logger.Warn("unsupported event kind", zap.Int("kind", int(ev.Kind)))
			return nil
		}

		s.logger.Debug("event handled",
			zap.Int64("chat_id", ev.ChatID),
			zap.Stringer("from", before),
			zap.Stringer("to", sess.State),
			zap.String("text", ev.Text),
			zap.String("data", ev.Data))

		if err == nil {
			return nil
		}
		return s.fail(ctx, sess, ev, err)
	})
}

func (s *Service) fail(ctx context.Context, sess *Session, ev models.InboundEvent, err error) error {
	if errors.Is(err, ErrIllegalTransition) {
		s.logger.Warn("rejected event", zap.Int64("chat_id", sess.ChatID), zap.Stringer("state", sess.State), zap.String("data", ev.Data), zap.Error(err))
		return s.reply(ctx, sess.ChatID, msgStaleAction, nil)
	}

	s.logger.Error("event processing failed", zap.Int64("chat_id", sess.ChatID), zap.Stringer("state", sess.State), zap.Error(err))
	return s.reply(ctx, sess.ChatID, msgGenericError, nil)
}

func (s *Service) reply(ctx context.Context, chatID int64, text string, kb models.Keyboard) error {
	return s.deps.Messenger.Send(ctx, models.OutboundMessage{ChatID: chatID, Text: text, Keyboard: kb})
}

func (s *Service) isAdmin(userID int64) bool {
	return s.cfg.AdminID != 0 && userID == s.cfg.AdminID
}

func (s *Service) today() time.Time {
	now := s.now().In(s.cfg.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) handleCommand(ctx context.Context, sess *Session, ev models.InboundEvent) error {
	switch ev.Command.Type {
	case models.CommandStart:
		return s.start(ctx, sess)
	case models.CommandHelp:
		return s.help(ctx, sess, ev)
	case models.CommandHistory:
		return s.startHistory(ctx, sess)
	case models.CommandAdmin:
		return s.openAdmin(ctx, sess, ev)
	case models.CommandCancel:
		sess.reset()
		return s.reply(ctx, sess.ChatID, "Действие отменено.", nil)
	default:
		return s.reply(ctx, sess.ChatID, msgUnknownCommand, nil)
	}
}

func (s *Service) help(ctx context.Context, sess *Session, ev models.InboundEvent) error {
	if s.isAdmin(ev.UserID) {
		kb := models.Keyboard{{{Text: "Открыть панель администратора", Data: actionAdminOpen}}}
		return s.reply(ctx, sess.ChatID, helpText+helpAdminText, kb)
	}
	return s.reply(ctx, sess.ChatID, helpText, nil)
}

func (s *Service) handleText(ctx context.Context, sess *Session, ev models.InboundEvent) error {
	text := strings.TrimSpace(ev.Text)

	if sess.Admin != AdminNone && s.isAdmin(ev.UserID) {
		return s.handleAdminText(ctx, sess, text)
	}

	switch sess.State {
	case StateInput:
		return s.recordCount(ctx, sess, text)
	case StateEdit:
		return s.selectEditCode(ctx, sess, text)
	case StateEditValue:
		return s.correctCount(ctx, sess, text)
	case StateHistorySelect:
		return s.selectHistoryCode(ctx, sess, text)
	case StateHistoryPeriod:
		return s.reply(ctx, sess.ChatID, msgUseButtons, periodKeyboard())
	case StateIdle:
		return s.reply(ctx, sess.ChatID, msgIdleHint, nil)
	default:
		return s.reply(ctx, sess.ChatID, msgUseButtons, nil)
	}
}

func (s *Service) handleCallback(ctx context.Context, sess *Session, ev models.InboundEvent) error {
	data := ev.Data

	if strings.HasPrefix(data, "admin_") {
		return s.handleAdminCallback(ctx, sess, ev)
	}
	if strings.HasPrefix(data, actionPeriod) {
		return s.showHistory(ctx, sess, strings.TrimPrefix(data, actionPeriod))
	}

	required, ok := callbackStates[data]
	if !ok {
		return fmt.Errorf("%w: unknown action %q", ErrIllegalTransition, data)
	}
	if sess.State != required {
		return fmt.Errorf("%w: %s pressed in state %s", ErrIllegalTransition, data, sess.State)
	}

	switch data {
	case actionReadyYes:
		return s.beginCounting(ctx, sess)
	case actionReadyNo:
		sess.reset()
		return s.reply(ctx, sess.ChatID, "Хорошо, вернитесь когда будете готовы!", nil)
	case actionCheckYes:
		return s.reconcile(ctx, sess)
	case actionCheckNo:
		if err := sess.transition(StateConfirmCancel); err != nil {
			return err
		}
		return s.reply(ctx, sess.ChatID, "Вы уверены, что хотите прервать процесс сверки?", yesNo("cancel"))
	case actionCancelYes:
		sess.reset()
		return s.reply(ctx, sess.ChatID, "Сверка отменена.", nil)
	case actionCancelNo:
		if err := sess.transition(StateCheck); err != nil {
			return err
		}
		return s.reply(ctx, sess.ChatID, msgCheckQuestion, yesNo("check"))
	case actionReviewYes, actionEditYes:
		return s.askEditCode(ctx, sess)
	case actionReviewNo, actionEditNo:
		return s.askSend(ctx, sess)
	case actionSendYes:
		return s.publishSummary(ctx, sess)
	case actionSendNo:
		sess.reset()
		return s.reply(ctx, sess.ChatID, "Остатки не отправлены в группу.", nil)
	case actionHistoryDone:
		sess.reset()
		return s.reply(ctx, sess.ChatID, "Просмотр истории завершён.", nil)
	}

	return fmt.Errorf("%w: unhandled action %q", ErrIllegalTransition, data)
}

func (s *Service) handleDocument(ctx context.Context, sess *Session, ev models.InboundEvent) error {
	if ev.Document == nil {
		return nil
	}

	info, data, err := s.deps.Extracts.Import(ev.Document.Name, ev.Document.Body)
	if err != nil {
		s.logger.Warn("extract upload rejected", zap.String("file", ev.Document.Name), zap.Error(err))
		return s.reply(ctx, sess.ChatID, extractErrorText(err), nil)
	}

	return s.reply(ctx, sess.ChatID, fmt.Sprintf("Файл остатков сохранён: %s (%d позиций).", info.Name(), len(data)), nil)
}

// parseCount accepts a non-negative whole number.
func parseCount(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
