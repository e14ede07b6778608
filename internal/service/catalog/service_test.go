package catalog

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
)

type memoryStore struct {
	products []models.Product
	saves    int
	failSave bool
}

func (m *memoryStore) Load() ([]models.Product, error) {
	out := make([]models.Product, len(m.products))
	copy(out, m.products)
	return out, nil
}

func (m *memoryStore) Save(products []models.Product) error {
	if m.failSave {
		return errors.New("disk full")
	}
	m.saves++
	m.products = append([]models.Product(nil), products...)
	return nil
}

func newTestService(t *testing.T, products ...models.Product) (*Service, *memoryStore) {
	t.Helper()
	store := &memoryStore{products: products}
	svc, err := NewService(store, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func TestAddPersistsInOrder(t *testing.T) {
	svc, store := newTestService(t, models.Product{Code: "101", Name: "Apple", Threshold: 5})

	if err := svc.Add(models.Product{Code: " 102 ", Name: "Pear", Threshold: models.DefaultThreshold}); err != nil {
		t.Fatalf("add: %v", err)
	}

	list := svc.List()
	if len(list) != 2 || list[1].Code != "102" {
		t.Fatalf("unexpected list %+v", list)
	}
	if store.saves != 1 || !reflect.DeepEqual(store.products, list) {
		t.Errorf("store not in sync: saves=%d %+v", store.saves, store.products)
	}
}

func TestAddDuplicateLeavesCatalogUnchanged(t *testing.T) {
	svc, store := newTestService(t, models.Product{Code: "101", Name: "Apple", Threshold: 5})
	before := svc.List()

	err := svc.Add(models.Product{Code: "101", Name: "Other", Threshold: 1})
	if !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
	if !reflect.DeepEqual(before, svc.List()) {
		t.Errorf("catalog changed after rejected add")
	}
	if store.saves != 0 {
		t.Errorf("rejected add should not save")
	}
}

func TestRemoveAndSetThreshold(t *testing.T) {
	svc, _ := newTestService(t,
		models.Product{Code: "1", Name: "A", Threshold: 10},
		models.Product{Code: "2", Name: "B", Threshold: 10},
	)

	if err := svc.Remove("3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := svc.SetThreshold("3", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := svc.SetThreshold("2", -1); !errors.Is(err, ErrInvalidProduct) {
		t.Errorf("expected ErrInvalidProduct, got %v", err)
	}

	if err := svc.SetThreshold("2", 4); err != nil {
		t.Fatalf("set threshold: %v", err)
	}
	if p, _ := svc.Get("2"); p.Threshold != 4 {
		t.Errorf("threshold not updated: %+v", p)
	}

	if err := svc.Remove("1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if list := svc.List(); len(list) != 1 || list[0].Code != "2" {
		t.Errorf("unexpected list after remove %+v", list)
	}
}

func TestFailedSaveRollsBack(t *testing.T) {
	svc, store := newTestService(t, models.Product{Code: "1", Name: "A", Threshold: 10})
	store.failSave = true

	if err := svc.Add(models.Product{Code: "2", Name: "B"}); err == nil {
		t.Fatal("expected save error")
	}
	if err := svc.SetThreshold("1", 2); err == nil {
		t.Fatal("expected save error")
	}
	if list := svc.List(); len(list) != 1 || list[0].Threshold != 10 {
		t.Errorf("in-memory catalog changed despite failed save: %+v", list)
	}
}

func TestListReturnsCopy(t *testing.T) {
	svc, _ := newTestService(t, models.Product{Code: "1", Name: "A", Threshold: 10})
	list := svc.List()
	list[0].Name = "mutated"
	if p, _ := svc.Get("1"); p.Name != "A" {
		t.Error("List must not alias internal state")
	}
}
