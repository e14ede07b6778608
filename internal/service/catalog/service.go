package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
)

var (
	// ErrDuplicateCode indicates a product with the same code already exists.
	ErrDuplicateCode = errors.New("product code already exists")
	// ErrNotFound indicates no product carries the requested code.
	ErrNotFound = errors.New("product not found")
	// ErrInvalidProduct indicates an empty code or name, or a negative threshold.
	ErrInvalidProduct = errors.New("invalid product")
)

// Store persists the whole catalog.
type Store interface {
	Load() ([]models.Product, error)
	Save(products []models.Product) error
}

// Service owns the shared product list. Every mutation is saved before it
// becomes visible; a failed save leaves the previous list in place.
type Service struct {
	mu       sync.RWMutex
	store    Store
	products []models.Product
	logger   *zap.Logger
}

// NewService loads the catalog from the store.
func NewService(store Store, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	products, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return &Service{store: store, products: products, logger: logger}, nil
}

// List returns a copy of the catalog in insertion order.
func (s *Service) List() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Get looks a product up by code.
func (s *Service) Get(code string) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(code); i >= 0 {
		return s.products[i], true
	}
	return models.Product{}, false
}

// Add appends a new product.
func (s *Service) Add(p models.Product) error {
	p.Code = strings.TrimSpace(p.Code)
	p.Name = strings.TrimSpace(p.Name)
	if p.Code == "" || p.Name == "" || p.Threshold < 0 {
		return ErrInvalidProduct
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(p.Code) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, p.Code)
	}

	next := make([]models.Product, len(s.products), len(s.products)+1)
	copy(next, s.products)
	next = append(next, p)
	if err := s.commit(next); err != nil {
		return err
	}

	s.logger.Info("product added", zap.String("code", p.Code), zap.String("name", p.Name), zap.Int("threshold", p.Threshold))
	return nil
}

// Remove deletes the product with the given code.
func (s *Service) Remove(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(code)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}

	next := make([]models.Product, 0, len(s.products)-1)
	next = append(next, s.products[:i]...)
	next = append(next, s.products[i+1:]...)
	if err := s.commit(next); err != nil {
		return err
	}

	s.logger.Info("product removed", zap.String("code", code))
	return nil
}

// SetThreshold changes the low-stock threshold of a product.
func (s *Service) SetThreshold(code string, threshold int) error {
	if threshold < 0 {
		return ErrInvalidProduct
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(code)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}

	next := make([]models.Product, len(s.products))
	copy(next, s.products)
	next[i].Threshold = threshold
	if err := s.commit(next); err != nil {
		return err
	}

	s.logger.Info("product threshold changed", zap.String("code", code), zap.Int("threshold", threshold))
	return nil
}

func (s *Service) commit(next []models.Product) error {
	if err := s.store.Save(next); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	s.products = next
	return nil
}

func (s *Service) indexOf(code string) int {
	for i, p := range s.products {
		if p.Code == code {
			return i
		}
	}
	return -1
}
