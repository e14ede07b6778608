package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
	"github.com/mamadbah2/stockcheck/internal/repository/extract"
	"github.com/mamadbah2/stockcheck/internal/service/catalog"
	"github.com/mamadbah2/stockcheck/internal/service/reporting"
)

const (
	operatorChat = int64(500)
	adminUser    = int64(42)
	groupChat    = int64(-100)
)

type recordingMessenger struct {
	mu   sync.Mutex
	sent []models.OutboundMessage
}

func (m *recordingMessenger) Send(_ context.Context, msg models.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMessenger) last() models.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return models.OutboundMessage{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *recordingMessenger) texts(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.sent {
		if msg.ChatID == chatID {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (m *recordingMessenger) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

type memoryStore struct {
	products []models.Product
	failSave bool
}

func (s *memoryStore) Load() ([]models.Product, error) {
	return append([]models.Product(nil), s.products...), nil
}

func (s *memoryStore) Save(products []models.Product) error {
	if s.failSave {
		return errors.New("disk full")
	}
	s.products = append([]models.Product(nil), products...)
	return nil
}

type fakeExtracts struct {
	data models.Extract
	err  error
}

func (f *fakeExtracts) info() extract.FileInfo {
	return extract.FileInfo{Path: "/data/extracts/egais.xlsx", ModTime: time.Now(), Candidates: 1}
}

func (f *fakeExtracts) Latest() (extract.FileInfo, error) {
	if f.err != nil {
		return extract.FileInfo{}, f.err
	}
	return f.info(), nil
}

func (f *fakeExtracts) Load() (models.Extract, extract.FileInfo, error) {
	if f.err != nil {
		return nil, extract.FileInfo{}, f.err
	}
	return f.data, f.info(), nil
}

func (f *fakeExtracts) Import(name string, _ []byte) (extract.FileInfo, models.Extract, error) {
	if !strings.HasSuffix(name, ".xlsx") {
		return extract.FileInfo{}, nil, extract.ErrUnsupportedFile
	}
	return extract.FileInfo{Path: "/data/extracts/" + name, ModTime: time.Now()}, f.data, nil
}

type memoryLedger struct {
	rows    []models.LedgerRow
	failErr error
}

func (l *memoryLedger) Upsert(_ context.Context, row models.LedgerRow) error {
	if l.failErr != nil {
		return l.failErr
	}
	for i, existing := range l.rows {
		if existing.Code == row.Code && existing.Date.Equal(row.Date) {
			l.rows[i] = row
			return nil
		}
	}
	l.rows = append(l.rows, row)
	return nil
}

func (l *memoryLedger) ReadAll(context.Context) ([]models.LedgerRow, error) {
	return append([]models.LedgerRow(nil), l.rows...), nil
}

type recordingArchive struct {
	reports []models.ReconciliationReport
	readErr error
}

func (a *recordingArchive) SaveReconciliationReport(_ context.Context, report models.ReconciliationReport) error {
	a.reports = append(a.reports, report)
	return nil
}

func (a *recordingArchive) RecentReports(_ context.Context, limit int64) ([]models.ReconciliationReport, error) {
	if a.readErr != nil {
		return nil, a.readErr
	}
	var out []models.ReconciliationReport
	for i := len(a.reports) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		out = append(out, a.reports[i])
	}
	return out, nil
}

type fixture struct {
	svc       *Service
	messenger *recordingMessenger
	store     *memoryStore
	extracts  *fakeExtracts
	ledger    *memoryLedger
	archive   *recordingArchive
}

func newFixture(t *testing.T, products ...models.Product) *fixture {
	t.Helper()

	store := &memoryStore{products: products}
	cat, err := catalog.NewService(store, nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	f := &fixture{
		messenger: &recordingMessenger{},
		store:     store,
		extracts:  &fakeExtracts{data: models.Extract{}},
		ledger:    &memoryLedger{},
		archive:   &recordingArchive{},
	}
	f.svc = NewService(Config{AdminID: adminUser, NotifyChatID: groupChat}, Dependencies{
		Catalog:   cat,
		Extracts:  f.extracts,
		Ledger:    f.ledger,
		History:   reporting.NewService(f.ledger, cat, time.UTC, nil),
		Messenger: f.messenger,
		Archiver:  f.archive,
	}, nil)
	return f
}

func (f *fixture) command(t *testing.T, userID int64, text string) {
	t.Helper()
	f.send(t, models.InboundEvent{Kind: models.EventCommand, ChatID: operatorChat, UserID: userID, Private: true, Command: models.ParseCommand(text), Text: text})
}

func (f *fixture) text(t *testing.T, userID int64, text string) {
	t.Helper()
	f.send(t, models.InboundEvent{Kind: models.EventText, ChatID: operatorChat, UserID: userID, Private: true, Text: text})
}

func (f *fixture) press(t *testing.T, userID int64, data string) {
	t.Helper()
	f.send(t, models.InboundEvent{Kind: models.EventCallback, ChatID: operatorChat, UserID: userID, Private: true, Data: data})
}

func (f *fixture) send(t *testing.T, ev models.InboundEvent) {
	t.Helper()
	if err := f.svc.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("handle event: %v", err)
	}
}

func (f *fixture) state() State {
	return f.svc.Sessions().State(operatorChat)
}

func (f *fixture) expectState(t *testing.T, want State) {
	t.Helper()
	if got := f.state(); got != want {
		t.Fatalf("expected state %s, got %s", want, got)
	}
}

func (f *fixture) expectLast(t *testing.T, substr string) {
	t.Helper()
	if got := f.messenger.last().Text; !strings.Contains(got, substr) {
		t.Fatalf("expected last reply to contain %q, got %q", substr, got)
	}
}

func apple() models.Product {
	return models.Product{Code: "101", Name: "Apple", Threshold: 5}
}

func TestFullReconciliationWithCorrection(t *testing.T) {
	f := newFixture(t, apple())
	f.extracts.data = models.Extract{"101": {Name: "Apple", Quantity: 12}}

	f.command(t, 7, "/start")
	f.expectState(t, StateReadyCheck)
	f.expectLast(t, msgReadyQuestion)

	f.press(t, 7, actionReadyYes)
	f.expectState(t, StateInput)
	f.expectLast(t, "Введите остаток для Apple (101):")

	f.text(t, 7, "9")
	f.expectState(t, StateCheck)

	f.press(t, 7, actionCheckYes)
	f.expectState(t, StateReview)
	f.expectLast(t, "Apple (101): Факт = 9, ЕГАИС = 12, Расхождение = -3")

	if len(f.ledger.rows) != 1 || f.ledger.rows[0].Actual != 9 || f.ledger.rows[0].System != 12 {
		t.Fatalf("unexpected ledger rows after check: %+v", f.ledger.rows)
	}

	f.press(t, 7, actionReviewYes)
	f.expectState(t, StateEdit)

	f.text(t, 7, "101")
	f.expectState(t, StateEditValue)

	f.text(t, 7, "12")
	f.expectState(t, StateSend)

	if len(f.ledger.rows) != 1 || f.ledger.rows[0].Actual != 12 {
		t.Fatalf("expected corrected row in place, got %+v", f.ledger.rows)
	}

	f.press(t, 7, actionSendYes)
	f.expectState(t, StateIdle)
	f.expectLast(t, "Остатки отправлены в группу.")

	group := f.messenger.texts(groupChat)
	if len(group) != 1 {
		t.Fatalf("expected one group summary, got %v", group)
	}
	if !strings.Contains(group[0], "Обработано товаров: 1") || !strings.Contains(group[0], "Расхождений нет.") {
		t.Errorf("unexpected summary %q", group[0])
	}
	if len(f.archive.reports) != 1 || f.archive.reports[0].Processed != 1 {
		t.Errorf("expected archived report, got %+v", f.archive.reports)
	}
}

func TestPromptsFollowCatalogOrder(t *testing.T) {
	f := newFixture(t,
		models.Product{Code: "300", Name: "Plum", Threshold: 10},
		models.Product{Code: "100", Name: "Kiwi", Threshold: 10},
	)
	f.extracts.data = models.Extract{"300": {Name: "Plum", Quantity: 1}, "100": {Name: "Kiwi", Quantity: 2}}

	f.command(t, 7, "/start")
	f.press(t, 7, actionReadyYes)
	f.expectLast(t, "Plum (300)")
	f.text(t, 7, "1")
	f.expectLast(t, "Kiwi (100)")
	f.text(t, 7, "2")
	f.expectState(t, StateCheck)

	f.press(t, 7, actionCheckYes)
	f.expectState(t, StateSend)
}

func TestNonNumericCountReprompts(t *testing.T) {
	f := newFixture(t, apple())
	f.command(t, 7, "/start")
	f.press(t, 7, actionReadyYes)

	for _, input := range []string{"abc", "-1", "2.5"} {
		f.text(t, 7, input)
		f.expectState(t, StateInput)
		f.expectLast(t, "Пожалуйста, введите число для Apple (101):")
	}
}

func TestStaleButtonIsRejected(t *testing.T) {
	f := newFixture(t, apple())
	f.command(t, 7, "/start")

	f.press(t, 7, actionSendYes)
	f.expectState(t, StateReadyCheck)
	f.expectLast(t, msgStaleAction)

	if got := f.messenger.texts(groupChat); len(got) != 0 {
		t.Fatalf("stale button must not publish, got %v", got)
	}
}

func TestConfirmCancelFlow(t *testing.T) {
	f := newFixture(t, apple())
	f.command(t, 7, "/start")
	f.press(t, 7, actionReadyYes)
	f.text(t, 7, "3")

	f.press(t, 7, actionCheckNo)
	f.expectState(t, StateConfirmCancel)

	f.press(t, 7, actionCancelNo)
	f.expectState(t, StateCheck)

	f.press(t, 7, actionCheckNo)
	f.press(t, 7, actionCancelYes)
	f.expectState(t, StateIdle)
	if len(f.ledger.rows) != 0 {
		t.Fatalf("cancelled session wrote ledger rows: %+v", f.ledger.rows)
	}
}

func TestMissingExtractBlocksStart(t *testing.T) {
	f := newFixture(t, apple())
	f.extracts.err = extract.ErrNoExtract

	f.command(t, 7, "/start")
	f.expectState(t, StateIdle)
	f.expectLast(t, "Файл остатков не найден")
}

func TestStaleExtractAtCheckKeepsState(t *testing.T) {
	f := newFixture(t, apple())
	f.command(t, 7, "/start")
	f.press(t, 7, actionReadyYes)
	f.text(t, 7, "3")

	f.extracts.err = &extract.StaleError{Path: "old.xlsx", ModTime: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
	f.press(t, 7, actionCheckYes)
	f.expectState(t, StateCheck)
	f.expectLast(t, "устарел (дата: 2026-10-01 09:00)")
	if len(f.ledger.rows) != 0 {
		t.Fatalf("no rows should be written, got %+v", f.ledger.rows)
	}
}

func TestLedgerFailureKeepsCheckState(t *testing.T) {
	f := newFixture(t, apple())
	f.extracts.data = models.Extract{"101": {Name: "Apple", Quantity: 3}}
	f.command(t, 7, "/start")
	f.press(t, 7, actionReadyYes)
	f.text(t, 7, "3")

	f.ledger.failErr = errors.New("sheets unavailable")
	f.press(t, 7, actionCheckYes)
	f.expectState(t, StateCheck)
	f.expectLast(t, msgGenericError)

	f.ledger.failErr = nil
	f.press(t, 7, actionCheckYes)
	f.expectState(t, StateSend)
}

func TestUnknownEditCodeReprompts(t *testing.T) {
	f := newFixture(t, apple())
	f.extracts.data = models.Extract{"101": {Name: "Apple", Quantity: 12}}
	f.command(t, 7, "/start")
	f.press(t, 7, actionReadyYes)
	f.text(t, 7, "9")
	f.press(t, 7, actionCheckYes)
	f.press(t, 7, actionReviewYes)

	f.text(t, 7, "999")
	f.expectState(t, StateEdit)
	f.expectLast(t, "Неверный код")

	f.press(t, 7, actionEditNo)
	f.expectState(t, StateSend)
}

func TestCancelCommandDropsSession(t *testing.T) {
	f := newFixture(t, apple())
	f.command(t, 7, "/start")
	f.press(t, 7, actionReadyYes)

	f.command(t, 7, "/cancel")
	f.expectState(t, StateIdle)
}

func TestGroupChatsAreIgnored(t *testing.T) {
	f := newFixture(t, apple())
	f.send(t, models.InboundEvent{Kind: models.EventCommand, ChatID: groupChat, Private: false, Command: models.ParseCommand("/start")})
	if len(f.messenger.sent) != 0 {
		t.Fatalf("expected no replies, got %+v", f.messenger.sent)
	}
}

func TestAdminAddRejectsDuplicate(t *testing.T) {
	f := newFixture(t, apple())

	f.command(t, adminUser, "/admin")
	f.expectLast(t, msgAdminPanel)

	f.press(t, adminUser, actionAdminAdd)
	f.text(t, adminUser, "101")

	texts := f.messenger.texts(operatorChat)
	if !containsText(texts, "Товар с кодом 101 уже существует.") {
		t.Fatalf("expected duplicate rejection, got %v", texts)
	}
	f.expectLast(t, msgAdminPanel)
	if len(f.store.products) != 1 {
		t.Fatalf("catalog must be unchanged, got %+v", f.store.products)
	}
}

func TestAdminAddWithDefaultThreshold(t *testing.T) {
	f := newFixture(t, apple())

	f.command(t, adminUser, "/admin")
	f.press(t, adminUser, actionAdminAdd)
	f.text(t, adminUser, "999")
	f.text(t, adminUser, "Апельсин")
	f.text(t, adminUser, "-")

	if len(f.store.products) != 2 {
		t.Fatalf("expected product saved, got %+v", f.store.products)
	}
	added := f.store.products[1]
	if added.Code != "999" || added.Name != "Апельсин" || added.Threshold != models.DefaultThreshold {
		t.Errorf("unexpected product %+v", added)
	}
}

func TestAdminRemoveAndThreshold(t *testing.T) {
	f := newFixture(t, apple(), models.Product{Code: "109", Name: "Banana", Threshold: 10})

	f.command(t, adminUser, "/admin")
	f.press(t, adminUser, actionAdminThreshold)
	f.text(t, adminUser, "101")
	f.text(t, adminUser, "7")
	if f.store.products[0].Threshold != 7 {
		t.Fatalf("threshold not updated: %+v", f.store.products[0])
	}

	f.press(t, adminUser, actionAdminRemove)
	f.text(t, adminUser, "555")
	if !containsText(f.messenger.texts(operatorChat), "Товар с кодом 555 не найден.") {
		t.Fatal("expected not found reply")
	}

	f.press(t, adminUser, actionAdminRemove)
	f.text(t, adminUser, "109")
	if len(f.store.products) != 1 {
		t.Fatalf("expected removal, got %+v", f.store.products)
	}
}

func TestAdminSaveFailureKeepsCatalog(t *testing.T) {
	f := newFixture(t, apple())
	f.store.failSave = true

	f.command(t, adminUser, "/admin")
	f.press(t, adminUser, actionAdminRemove)
	f.text(t, adminUser, "101")

	if !containsText(f.messenger.texts(operatorChat), "не удалось сохранить") {
		t.Fatal("expected save failure reply")
	}
	if _, ok := f.svc.deps.Catalog.Get("101"); !ok {
		t.Fatal("in-memory catalog must be rolled back")
	}
}

func TestAdminRecentReports(t *testing.T) {
	f := newFixture(t, apple())

	f.command(t, adminUser, "/admin")
	f.press(t, adminUser, actionAdminReports)
	if !containsText(f.messenger.texts(operatorChat), "Архив сверок пуст.") {
		t.Fatal("expected empty archive reply")
	}

	f.archive.reports = []models.ReconciliationReport{
		{Date: "2026-10-14", Processed: 3},
		{Date: "2026-10-15", Processed: 2, Discrepancies: []models.DiscrepancyDocument{{Code: "101"}}},
	}
	f.messenger.reset()
	f.press(t, adminUser, actionAdminReports)

	texts := f.messenger.texts(operatorChat)
	if len(texts) != 2 {
		t.Fatalf("expected report list and menu, got %v", texts)
	}
	want := "Последние сверки:\n2026-10-15: обработано 2, расхождений 1\n2026-10-14: обработано 3, расхождений 0"
	if texts[0] != want {
		t.Errorf("got %q, want %q", texts[0], want)
	}
	f.expectLast(t, msgAdminPanel)

	f.archive.readErr = errors.New("mongo down")
	f.press(t, adminUser, actionAdminReports)
	if !containsText(f.messenger.texts(operatorChat), msgGenericError) {
		t.Error("expected generic error on archive failure")
	}
}

func TestRecentReportsWithoutArchive(t *testing.T) {
	f := newFixture(t, apple())
	f.svc.deps.Archiver = nil

	f.command(t, adminUser, "/admin")
	f.press(t, adminUser, actionAdminReports)
	if !containsText(f.messenger.texts(operatorChat), "Архив сверок не подключён.") {
		t.Fatal("expected archive disabled reply")
	}
}

func TestAdminGating(t *testing.T) {
	f := newFixture(t, apple())

	f.command(t, 7, "/admin")
	f.expectLast(t, msgAdminOnly)

	f.press(t, 7, actionAdminAdd)
	f.expectLast(t, msgAdminOnly)

	f.command(t, 7, "/help")
	if kb := f.messenger.last().Keyboard; kb != nil {
		t.Errorf("non-admin help must not offer the admin button")
	}
	f.command(t, adminUser, "/help")
	if kb := f.messenger.last().Keyboard; len(kb) != 1 || kb[0][0].Data != actionAdminOpen {
		t.Errorf("admin help should offer the admin button, got %+v", kb)
	}
}

func TestHistoryFlow(t *testing.T) {
	f := newFixture(t, apple())
	today := f.svc.today()
	f.ledger.rows = []models.LedgerRow{
		{Date: today.AddDate(0, 0, -2), Code: "101", Name: "Apple", Actual: 9, System: 12},
		{Date: today.AddDate(0, 0, -40), Code: "101", Name: "Apple", Actual: 1, System: 1},
		{Date: today, Code: "102", Name: "Pear", Actual: 1, System: 1},
	}

	f.command(t, 7, "/history")
	f.expectState(t, StateHistorySelect)

	f.text(t, 7, "555")
	f.expectState(t, StateHistorySelect)
	f.expectLast(t, "Товар с кодом 555 не найден.")

	f.text(t, 7, "101")
	f.expectState(t, StateHistoryPeriod)

	f.messenger.reset()
	f.press(t, 7, actionPeriod+"5")
	f.expectState(t, StateHistoryPeriod)

	texts := f.messenger.texts(operatorChat)
	if len(texts) != 2 {
		t.Fatalf("expected history and period prompt, got %v", texts)
	}
	want := today.AddDate(0, 0, -2).Format("2006-01-02") + ": Факт = 9, ЕГАИС = 12, Расхождение = -3"
	if !strings.Contains(texts[0], want) {
		t.Errorf("expected %q in %q", want, texts[0])
	}
	if strings.Count(texts[0], "\n") != 1 {
		t.Errorf("expected exactly one history line, got %q", texts[0])
	}

	f.press(t, 7, actionPeriod+"7")
	f.expectLast(t, msgStaleAction)

	f.press(t, 7, actionHistoryDone)
	f.expectState(t, StateIdle)
}

func TestHistoryEmptyPeriod(t *testing.T) {
	f := newFixture(t, apple())
	f.command(t, 7, "/history")
	f.text(t, 7, "101")
	f.press(t, 7, actionPeriod+"30")

	if !containsText(f.messenger.texts(operatorChat), "История для товара с кодом 101 за последние 30 дней не найдена.") {
		t.Fatal("expected empty history reply")
	}
}

func TestDocumentUpload(t *testing.T) {
	f := newFixture(t, apple())
	f.extracts.data = models.Extract{"101": {Name: "Apple", Quantity: 1}}

	f.send(t, models.InboundEvent{Kind: models.EventDocument, ChatID: operatorChat, Private: true, Document: &models.UploadedFile{Name: "egais.xlsx", Body: []byte("x")}})
	f.expectLast(t, "Файл остатков сохранён: egais.xlsx (1 позиций).")

	f.send(t, models.InboundEvent{Kind: models.EventDocument, ChatID: operatorChat, Private: true, Document: &models.UploadedFile{Name: "egais.csv"}})
	f.expectLast(t, "Поддерживаются только файлы .xlsx.")
}

func TestIdleTextGetsHint(t *testing.T) {
	f := newFixture(t, apple())
	f.text(t, 7, "hello")
	f.expectLast(t, msgIdleHint)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateReadyCheck, StateInput, true},
		{StateInput, StateCheck, true},
		{StateCheck, StateReview, true},
		{StateCheck, StateSend, true},
		{StateConfirmCancel, StateCheck, true},
		{StateReview, StateEdit, true},
		{StateEditValue, StateSend, true},
		{StateHistoryPeriod, StateHistoryPeriod, true},
		{StateSend, StateReadyCheck, true},
		{StateEdit, StateIdle, true},
		{StateReadyCheck, StateSend, false},
		{StateInput, StateReview, false},
		{StateSend, StateEdit, false},
		{StateIdle, StateInput, false},
		{StateHistorySelect, StateCheck, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	f := newFixture(t, apple())
	f.command(t, 7, "/start")

	other := models.InboundEvent{Kind: models.EventCommand, ChatID: 600, UserID: 8, Private: true, Command: models.ParseCommand("/history")}
	f.send(t, other)

	f.expectState(t, StateReadyCheck)
	if got := f.svc.Sessions().State(600); got != StateHistorySelect {
		t.Fatalf("expected other chat in history_select, got %s", got)
	}
}

func containsText(texts []string, substr string) bool {
	for _, text := range texts {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}
