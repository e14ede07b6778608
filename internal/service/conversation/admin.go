package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
	"github.com/mamadbah2/stockcheck/internal/service/catalog"
)

func (s *Service) openAdmin(ctx context.Context, sess *Session, ev models.InboundEvent) error {
	if !s.isAdmin(ev.UserID) {
		return s.reply(ctx, sess.ChatID, msgAdminOnly, nil)
	}
	sess.resetAdmin()
	return s.showAdminMenu(ctx, sess)
}

func (s *Service) showAdminMenu(ctx context.Context, sess *Session) error {
	return s.reply(ctx, sess.ChatID, msgAdminPanel, adminKeyboard())
}

func (s *Service) handleAdminCallback(ctx context.Context, sess *Session, ev models.InboundEvent) error {
	if !s.isAdmin(ev.UserID) {
		return s.reply(ctx, sess.ChatID, msgAdminOnly, nil)
	}

	switch ev.Data {
	case actionAdminOpen:
		return s.openAdmin(ctx, sess, ev)
	case actionAdminAdd:
		sess.resetAdmin()
		sess.Admin = AdminAddCode
		return s.reply(ctx, sess.ChatID, "Введите код нового товара (например, 999):", nil)
	case actionAdminRemove:
		sess.resetAdmin()
		sess.Admin = AdminRemoveCode
		return s.reply(ctx, sess.ChatID, "Введите код товара для удаления (например, 109):", nil)
	case actionAdminThreshold:
		sess.resetAdmin()
		sess.Admin = AdminThresholdCode
		return s.reply(ctx, sess.ChatID, "Введите код товара для изменения порога:", nil)
	case actionAdminList:
		sess.resetAdmin()
		products := s.deps.Catalog.List()
		text := "Список товаров пуст."
		if len(products) > 0 {
			text = productList("Текущий список товаров:", products, true)
		}
		if err := s.reply(ctx, sess.ChatID, text, nil); err != nil {
			return err
		}
		return s.showAdminMenu(ctx, sess)
	case actionAdminReports:
		sess.resetAdmin()
		return s.showRecentReports(ctx, sess)
	}

	return fmt.Errorf("%w: unknown admin action %q", ErrIllegalTransition, ev.Data)
}

// handleAdminText advances the catalog editing prompts. Every outcome other
// than a re-prompt ends at the admin menu.
func (s *Service) handleAdminText(ctx context.Context, sess *Session, text string) error {
	switch sess.Admin {
	case AdminAddCode:
		if text == "" {
			return s.reply(ctx, sess.ChatID, "Введите код нового товара (например, 999):", nil)
		}
		if _, exists := s.deps.Catalog.Get(text); exists {
			return s.finishAdmin(ctx, sess, fmt.Sprintf("Товар с кодом %s уже существует.", text))
		}
		sess.Draft.Code = text
		sess.Admin = AdminAddName
		return s.reply(ctx, sess.ChatID, "Введите название товара (например, Апельсин):", nil)

	case AdminAddName:
		if text == "" {
			return s.reply(ctx, sess.ChatID, "Введите название товара (например, Апельсин):", nil)
		}
		sess.Draft.Name = text
		sess.Admin = AdminAddThreshold
		return s.reply(ctx, sess.ChatID, fmt.Sprintf("Введите порог низкого остатка (по умолчанию %d) или «-», чтобы оставить по умолчанию:", models.DefaultThreshold), nil)

	case AdminAddThreshold:
		threshold := models.DefaultThreshold
		if text != "-" && text != "" {
			n, ok := parseThreshold(text)
			if !ok {
				return s.reply(ctx, sess.ChatID, "Порог должен быть неотрицательным целым числом. Попробуйте снова:", nil)
			}
			threshold = n
		}
		product := models.Product{Code: sess.Draft.Code, Name: sess.Draft.Name, Threshold: threshold}
		err := s.deps.Catalog.Add(product)
		switch {
		case errors.Is(err, catalog.ErrDuplicateCode):
			return s.finishAdmin(ctx, sess, fmt.Sprintf("Товар с кодом %s уже существует.", product.Code))
		case err != nil:
			return s.adminFailure(ctx, sess, err)
		}
		return s.finishAdmin(ctx, sess, fmt.Sprintf("Товар добавлен: %s, порог %d", productLabel(product), threshold))

	case AdminRemoveCode:
		err := s.deps.Catalog.Remove(text)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			return s.finishAdmin(ctx, sess, fmt.Sprintf("Товар с кодом %s не найден.", text))
		case err != nil:
			return s.adminFailure(ctx, sess, err)
		}
		return s.finishAdmin(ctx, sess, fmt.Sprintf("Товар с кодом %s удалён.", text))

	case AdminThresholdCode:
		product, ok := s.deps.Catalog.Get(text)
		if !ok {
			return s.finishAdmin(ctx, sess, fmt.Sprintf("Товар с кодом %s не найден.", text))
		}
		sess.Draft = product
		sess.Admin = AdminThresholdValue
		return s.reply(ctx, sess.ChatID, fmt.Sprintf("Введите новый порог для %s (текущий %d):", productLabel(product), product.Threshold), nil)

	case AdminThresholdValue:
		n, ok := parseThreshold(text)
		if !ok {
			return s.reply(ctx, sess.ChatID, "Порог должен быть неотрицательным целым числом. Попробуйте снова:", nil)
		}
		err := s.deps.Catalog.SetThreshold(sess.Draft.Code, n)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			return s.finishAdmin(ctx, sess, fmt.Sprintf("Товар с кодом %s не найден.", sess.Draft.Code))
		case err != nil:
			return s.adminFailure(ctx, sess, err)
		}
		return s.finishAdmin(ctx, sess, fmt.Sprintf("Порог для %s изменён: %d", productLabel(sess.Draft), n))
	}

	sess.resetAdmin()
	return s.showAdminMenu(ctx, sess)
}

const recentReportsLimit = 5

func (s *Service) showRecentReports(ctx context.Context, sess *Session) error {
	if s.deps.Archiver == nil {
		return s.finishAdmin(ctx, sess, "Архив сверок не подключён.")
	}

	reports, err := s.deps.Archiver.RecentReports(ctx, recentReportsLimit)
	if err != nil {
		s.logger.Error("failed to read reconciliation archive", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
		return s.finishAdmin(ctx, sess, msgGenericError)
	}
	if len(reports) == 0 {
		return s.finishAdmin(ctx, sess, "Архив сверок пуст.")
	}
	return s.finishAdmin(ctx, sess, reportLines(reports))
}

func (s *Service) finishAdmin(ctx context.Context, sess *Session, text string) error {
	sess.resetAdmin()
	if err := s.reply(ctx, sess.ChatID, text, nil); err != nil {
		return err
	}
	return s.showAdminMenu(ctx, sess)
}

func (s *Service) adminFailure(ctx context.Context, sess *Session, err error) error {
	s.logger.Error("catalog update failed", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
	return s.finishAdmin(ctx, sess, "Ошибка: не удалось сохранить список товаров.")
}

func parseThreshold(text string) (int, bool) {
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
