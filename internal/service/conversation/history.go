package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mamadbah2/stockcheck/internal/service/reporting"
)

func (s *Service) startHistory(ctx context.Context, sess *Session) error {
	sess.reset()

	products := s.deps.Catalog.List()
	if len(products) == 0 {
		return s.reply(ctx, sess.ChatID, "Список товаров пуст. Добавьте товары через админ-панель.", nil)
	}

	if err := sess.transition(StateHistorySelect); err != nil {
		return err
	}
	if err := s.reply(ctx, sess.ChatID, productList("Список товаров:", products, false), nil); err != nil {
		return err
	}
	return s.reply(ctx, sess.ChatID, "Введите код товара, чтобы посмотреть историю (например, 999):", nil)
}

func (s *Service) selectHistoryCode(ctx context.Context, sess *Session, code string) error {
	if code == "" {
		return s.reply(ctx, sess.ChatID, "Пожалуйста, введите код товара (например, 999):", nil)
	}
	if _, ok := s.deps.Catalog.Get(code); !ok {
		return s.reply(ctx, sess.ChatID, fmt.Sprintf("Товар с кодом %s не найден. Попробуйте снова:", code), nil)
	}

	if err := sess.transition(StateHistoryPeriod); err != nil {
		return err
	}
	sess.HistoryCode = code
	return s.reply(ctx, sess.ChatID, msgPeriodQuestion, periodKeyboard())
}

// showHistory answers one period_N button; the session stays in
// history_period until the operator presses done.
func (s *Service) showHistory(ctx context.Context, sess *Session, rawDays string) error {
	if sess.State != StateHistoryPeriod || sess.HistoryCode == "" {
		return fmt.Errorf("%w: period selected in state %s", ErrIllegalTransition, sess.State)
	}

	days, err := strconv.Atoi(rawDays)
	if err != nil || !validPeriod(days) {
		return fmt.Errorf("%w: unknown period %q", ErrIllegalTransition, rawDays)
	}

	rows, err := s.deps.History.History(ctx, sess.HistoryCode, days)
	if err != nil {
		return fmt.Errorf("load history for %s: %w", sess.HistoryCode, err)
	}

	if err := sess.transition(StateHistoryPeriod); err != nil {
		return err
	}

	var text string
	if len(rows) == 0 {
		text = fmt.Sprintf("История для товара с кодом %s за последние %d дней не найдена.", sess.HistoryCode, days)
	} else {
		lines := make([]string, len(rows))
		for i, row := range rows {
			lines[i] = reporting.FormatHistoryLine(row)
		}
		text = fmt.Sprintf("История для товара с кодом %s (последние %d дней):\n%s", sess.HistoryCode, days, strings.Join(lines, "\n"))
	}

	if err := s.reply(ctx, sess.ChatID, text, nil); err != nil {
		return err
	}
	return s.reply(ctx, sess.ChatID, "Выберите другой период или завершите:", periodKeyboard())
}

func validPeriod(days int) bool {
	for _, p := range reporting.HistoryPeriods {
		if p == days {
			return true
		}
	}
	return false
}
