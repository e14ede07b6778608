package conversation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
	"github.com/mamadbah2/stockcheck/internal/service/reconciliation"
)

// start resets the session and checks that a usable extract exists before
// asking the operator to begin.
func (s *Service) start(ctx context.Context, sess *Session) error {
	sess.reset()

	info, err := s.deps.Extracts.Latest()
	if err != nil {
		s.logger.Warn("extract unavailable at start", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
		return s.reply(ctx, sess.ChatID, extractErrorText(err), nil)
	}

	if err := sess.transition(StateReadyCheck); err != nil {
		return err
	}

	intro := "Привет! Я бот для сверки остатков.\n" +
		"Я буду запрашивать фактические остатки для каждого товара по очереди.\n" +
		"Отвечайте числом остатка для каждого товара.\n" +
		fmt.Sprintf("Используется файл: %s (дата: %s)", info.Name(), info.ModTime.Format("2006-01-02 15:04"))
	if info.Candidates > 1 {
		intro += "\nВ папке несколько файлов. Используется самый свежий."
	}

	if err := s.reply(ctx, sess.ChatID, intro, nil); err != nil {
		return err
	}
	return s.reply(ctx, sess.ChatID, msgReadyQuestion, yesNo("ready"))
}

func (s *Service) beginCounting(ctx context.Context, sess *Session) error {
	products := s.deps.Catalog.List()
	if len(products) == 0 {
		sess.reset()
		return s.reply(ctx, sess.ChatID, msgCatalogEmpty, nil)
	}

	if err := sess.transition(StateInput); err != nil {
		return err
	}
	sess.Products = products
	sess.ProductIndex = 0
	sess.Counts = make(map[string]int, len(products))

	return s.reply(ctx, sess.ChatID, promptFor(products[0]), nil)
}

func (s *Service) recordCount(ctx context.Context, sess *Session, text string) error {
	product, ok := sess.currentProduct()
	if !ok {
		return fmt.Errorf("%w: no product at index %d", ErrIllegalTransition, sess.ProductIndex)
	}

	n, ok := parseCount(text)
	if !ok {
		return s.reply(ctx, sess.ChatID, fmt.Sprintf("Пожалуйста, введите число для %s:", productLabel(product)), nil)
	}

	next := StateInput
	if sess.ProductIndex+1 >= len(sess.Products) {
		next = StateCheck
	}
	if err := sess.transition(next); err != nil {
		return err
	}
	sess.Counts[product.Code] = n
	sess.ProductIndex++

	if err := s.reply(ctx, sess.ChatID, fmt.Sprintf("Добавлено: %s = %d", productLabel(product), n), nil); err != nil {
		return err
	}

	if next == StateInput {
		return s.reply(ctx, sess.ChatID, promptFor(sess.Products[sess.ProductIndex]), nil)
	}
	return s.reply(ctx, sess.ChatID, msgCheckQuestion, yesNo("check"))
}

// reconcile compares the collected counts with the extract and writes one
// ledger row per code. Any failure leaves the session in check.
func (s *Service) reconcile(ctx context.Context, sess *Session) error {
	if err := s.reply(ctx, sess.ChatID, msgCheckRunning, nil); err != nil {
		return err
	}

	data, info, err := s.deps.Extracts.Load()
	if err != nil {
		s.logger.Warn("extract unavailable for reconciliation", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
		return s.reply(ctx, sess.ChatID, extractErrorText(err)+"\n"+msgCheckQuestion, yesNo("check"))
	}

	res := reconciliation.Compute(s.today(), sess.Counts, data)
	for _, row := range res.Rows {
		if err := s.deps.Ledger.Upsert(ctx, row); err != nil {
			s.logger.Error("ledger write failed during reconciliation", zap.Int64("chat_id", sess.ChatID), zap.String("code", row.Code), zap.Error(err))
			return s.reply(ctx, sess.ChatID, msgGenericError+"\n"+msgCheckQuestion, yesNo("check"))
		}
	}

	s.logger.Info("reconciliation completed",
		zap.Int64("chat_id", sess.ChatID),
		zap.String("extract", info.Name()),
		zap.Int("rows", len(res.Rows)),
		zap.Int("discrepancies", len(res.Discrepancies)))

	text := fmt.Sprintf("Сверка завершена. Обработано: %d товаров", len(res.Rows))
	if len(res.Discrepancies) == 0 {
		if err := sess.transition(StateSend); err != nil {
			return err
		}
		sess.Extract = data
		sess.Discrepancies = nil
		if err := s.reply(ctx, sess.ChatID, text, nil); err != nil {
			return err
		}
		return s.reply(ctx, sess.ChatID, msgSendQuestion, yesNo("send"))
	}

	if err := sess.transition(StateReview); err != nil {
		return err
	}
	sess.Extract = data
	sess.Discrepancies = res.Discrepancies

	text += "\nРасхождения:\n" + discrepancyLines(res.Discrepancies) + "\nЕсть расхождения. Перепроверить позиции?"
	return s.reply(ctx, sess.ChatID, text, yesNo("review"))
}

func (s *Service) askEditCode(ctx context.Context, sess *Session) error {
	if err := sess.transition(StateEdit); err != nil {
		return err
	}
	text := "Расхождения:\n" + discrepancyLines(sess.Discrepancies) + "\nИсправить данные для какого товара? Введите код:"
	return s.reply(ctx, sess.ChatID, text, nil)
}

func (s *Service) askSend(ctx context.Context, sess *Session) error {
	if err := sess.transition(StateSend); err != nil {
		return err
	}
	return s.reply(ctx, sess.ChatID, msgSendQuestion, yesNo("send"))
}

func (s *Service) selectEditCode(ctx context.Context, sess *Session, text string) error {
	for _, d := range sess.Discrepancies {
		if strings.EqualFold(d.Code, text) {
			if err := sess.transition(StateEditValue); err != nil {
				return err
			}
			sess.EditCode = d.Code
			return s.reply(ctx, sess.ChatID, fmt.Sprintf("Введите новый остаток для товара с кодом %s:", d.Code), nil)
		}
	}
	return s.reply(ctx, sess.ChatID, "Неверный код. Введите код из списка расхождений:", nil)
}

// correctCount overwrites a count, persists the corrected row and
// recomputes the discrepancy list.
func (s *Service) correctCount(ctx context.Context, sess *Session, text string) error {
	n, ok := parseCount(text)
	if !ok {
		return s.reply(ctx, sess.ChatID, "Пожалуйста, введите число для нового остатка:", nil)
	}

	code := sess.EditCode
	counts := make(map[string]int, len(sess.Counts)+1)
	for k, v := range sess.Counts {
		counts[k] = v
	}
	counts[code] = n

	entry := reconciliation.Entry(code, counts, sess.Extract)
	row := models.LedgerRow{
		Date:   s.today(),
		Code:   code,
		Name:   entry.Name,
		Actual: float64(n),
		System: entry.System,
	}
	if err := s.deps.Ledger.Upsert(ctx, row); err != nil {
		return fmt.Errorf("persist corrected count for %s: %w", code, err)
	}

	remaining := reconciliation.Discrepancies(counts, sess.Extract)
	next := StateSend
	if len(remaining) > 0 {
		next = StateEdit
	}
	if err := sess.transition(next); err != nil {
		return err
	}
	sess.Counts = counts
	sess.Discrepancies = remaining
	sess.EditCode = ""

	if err := s.reply(ctx, sess.ChatID, fmt.Sprintf("Обновлено: %s (%s) = %d", entry.Name, code, n), nil); err != nil {
		return err
	}

	if next == StateEdit {
		text := "Расхождения остались:\n" + discrepancyLines(remaining) + "\nИсправить ещё один товар?"
		return s.reply(ctx, sess.ChatID, text, yesNo("edit"))
	}
	return s.reply(ctx, sess.ChatID, msgSendQuestion, yesNo("send"))
}

func (s *Service) publishSummary(ctx context.Context, sess *Session) error {
	summary := summaryText(len(sess.Counts), sess.Discrepancies)

	if err := s.reply(ctx, s.cfg.NotifyChatID, summary, nil); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}

	if s.deps.Archiver != nil {
		report := models.ReconciliationReport{
			Date:      s.today().Format("2006-01-02"),
			ChatID:    sess.ChatID,
			Processed: len(sess.Counts),
			Summary:   summary,
			CreatedAt: s.now().UTC(),
		}
		for _, d := range sess.Discrepancies {
			report.Discrepancies = append(report.Discrepancies, models.DiscrepancyDocument{
				Code: d.Code, Name: d.Name, Actual: d.Actual, System: d.System, Delta: d.Delta(),
			})
		}
		if err := s.deps.Archiver.SaveReconciliationReport(ctx, report); err != nil {
			s.logger.Error("failed to archive reconciliation summary", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
		}
	}

	sess.reset()
	return s.reply(ctx, sess.ChatID, "Остатки отправлены в группу.", nil)
}
