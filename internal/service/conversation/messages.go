package conversation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
	"github.com/mamadbah2/stockcheck/internal/repository/extract"
	"github.com/mamadbah2/stockcheck/internal/service/reporting"
)

// Callback action identifiers carried by inline buttons.
const (
	actionReadyYes    = "ready_yes"
	actionReadyNo     = "ready_no"
	actionCheckYes    = "check_yes"
	actionCheckNo     = "check_no"
	actionCancelYes   = "cancel_yes"
	actionCancelNo    = "cancel_no"
	actionReviewYes   = "review_yes"
	actionReviewNo    = "review_no"
	actionEditYes     = "edit_yes"
	actionEditNo      = "edit_no"
	actionSendYes     = "send_yes"
	actionSendNo      = "send_no"
	actionHistoryDone = "history_done"
	actionPeriod      = "period_"

	actionAdminOpen      = "admin_open"
	actionAdminAdd       = "admin_add"
	actionAdminRemove    = "admin_remove"
	actionAdminThreshold = "admin_threshold"
	actionAdminList      = "admin_list"
	actionAdminReports   = "admin_reports"
)

// callbackStates maps each flow button to the only state it is valid in.
var callbackStates = map[string]State{
	actionReadyYes:    StateReadyCheck,
	actionReadyNo:     StateReadyCheck,
	actionCheckYes:    StateCheck,
	actionCheckNo:     StateCheck,
	actionCancelYes:   StateConfirmCancel,
	actionCancelNo:    StateConfirmCancel,
	actionReviewYes:   StateReview,
	actionReviewNo:    StateReview,
	actionEditYes:     StateEdit,
	actionEditNo:      StateEdit,
	actionSendYes:     StateSend,
	actionSendNo:      StateSend,
	actionHistoryDone: StateHistoryPeriod,
}

const (
	msgGenericError   = "Произошла ошибка. Попробуйте снова."
	msgStaleAction    = "Это действие сейчас недоступно. Начните заново: /start"
	msgUseButtons     = "Пожалуйста, воспользуйтесь кнопками выше."
	msgIdleHint       = "Чтобы начать сверку, отправьте /start. Справка: /help"
	msgUnknownCommand = "Неизвестная команда. Используйте /help."
	msgAdminOnly      = "Эта функция доступна только администратору."
	msgCatalogEmpty   = "Список товаров пуст. Обратитесь к администратору для добавления товаров."
	msgReadyQuestion  = "Готовы ли для подсчета фактических остатков?"
	msgCheckQuestion  = "Все фактические остатки введены. Провести сверку?"
	msgSendQuestion   = "Отправить остатки в группу?"
	msgCheckRunning   = "Идёт сверка остатков, пожалуйста, подождите..."
	msgPeriodQuestion = "Выберите период для истории:"
	msgAdminPanel     = "Панель администратора:"
)

const helpText = "📋 Справка по боту:\n" +
	"- /start — Начать процесс сверки остатков.\n" +
	"- /history — Показать историю остатков по товару.\n" +
	"- /cancel — Прервать текущее действие.\n" +
	"- Используйте кнопки для навигации по процессу.\n" +
	"- Чтобы обновить остатки ЕГАИС, отправьте файл .xlsx в этот чат.\n" +
	"Вводите остатки числом для каждого товара."

const helpAdminText = "\n\n🔑 Администраторские функции: откройте панель кнопкой ниже или командой /admin."

func yesNo(prefix string) models.Keyboard {
	return models.Keyboard{{
		{Text: "Да", Data: prefix + "_yes"},
		{Text: "Нет", Data: prefix + "_no"},
	}}
}

func periodKeyboard() models.Keyboard {
	var kb models.Keyboard
	var row []models.Button
	for _, days := range reporting.HistoryPeriods {
		row = append(row, models.Button{Text: fmt.Sprintf("%d дней", days), Data: fmt.Sprintf("%s%d", actionPeriod, days)})
		if len(row) == 2 {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	return append(kb, []models.Button{{Text: "Завершить", Data: actionHistoryDone}})
}

func adminKeyboard() models.Keyboard {
	return models.Keyboard{
		{{Text: "Добавить товар", Data: actionAdminAdd}},
		{{Text: "Удалить товар", Data: actionAdminRemove}},
		{{Text: "Изменить порог", Data: actionAdminThreshold}},
		{{Text: "Список товаров", Data: actionAdminList}},
		{{Text: "Последние сверки", Data: actionAdminReports}},
	}
}

func productLabel(p models.Product) string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Code)
}

func promptFor(p models.Product) string {
	return fmt.Sprintf("Введите остаток для %s:", productLabel(p))
}

func productList(title string, products []models.Product, withThreshold bool) string {
	lines := make([]string, 0, len(products)+1)
	lines = append(lines, title)
	for _, p := range products {
		if withThreshold {
			lines = append(lines, fmt.Sprintf("%s, порог %d", productLabel(p), p.Threshold))
			continue
		}
		lines = append(lines, productLabel(p))
	}
	return strings.Join(lines, "\n")
}

func discrepancyLines(list []models.Discrepancy) string {
	lines := make([]string, len(list))
	for i, d := range list {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

func reportLines(reports []models.ReconciliationReport) string {
	lines := make([]string, 0, len(reports)+1)
	lines = append(lines, "Последние сверки:")
	for _, r := range reports {
		lines = append(lines, fmt.Sprintf("%s: обработано %d, расхождений %d", r.Date, r.Processed, len(r.Discrepancies)))
	}
	return strings.Join(lines, "\n")
}

func summaryText(processed int, list []models.Discrepancy) string {
	text := fmt.Sprintf("Результаты сверки:\nОбработано товаров: %d\n", processed)
	if len(list) == 0 {
		return text + "Расхождений нет."
	}
	return text + "Расхождения:\n" + discrepancyLines(list)
}

// extractErrorText explains why an extract cannot be used.
func extractErrorText(err error) string {
	var stale *extract.StaleError
	switch {
	case errors.Is(err, extract.ErrNoExtract):
		return "Файл остатков не найден. Отправьте файл .xlsx в этот чат или положите его в папку остатков и попробуйте снова."
	case errors.As(err, &stale):
		return fmt.Sprintf("Файл остатков устарел (дата: %s). Пожалуйста, загрузите актуальный файл и попробуйте снова.", stale.ModTime.Format("2006-01-02 15:04"))
	case errors.Is(err, extract.ErrMissingColumns):
		return "В файле остатков отсутствуют необходимые столбцы."
	case errors.Is(err, extract.ErrUnsupportedFile):
		return "Поддерживаются только файлы .xlsx."
	default:
		return "Ошибка обработки файла остатков. Проверьте файл и попробуйте снова."
	}
}
