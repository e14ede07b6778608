package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
)

// record is the on-disk shape of a product.
type record struct {
	Code      string `json:"code"`
	ShortName string `json:"short_name"`
	Threshold *int   `json:"threshold,omitempty"`
}

// FileStore persists the catalog as a JSON array of products.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore returns a store bound to the given file path.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}
}

// Load reads the catalog in file order. A missing file yields an empty
// catalog and is created on disk.
func (s *FileStore) Load() ([]models.Product, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("catalog file not found, creating empty catalog", zap.String("path", s.path))
		if err := s.Save(nil); err != nil {
			return nil, err
		}
		return []models.Product{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", s.path, err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", s.path, err)
	}

	products := make([]models.Product, 0, len(records))
	for _, r := range records {
		p := models.Product{Code: r.Code, Name: r.ShortName, Threshold: models.DefaultThreshold}
		if r.Threshold != nil && *r.Threshold >= 0 {
			p.Threshold = *r.Threshold
		}
		products = append(products, p)
	}

	s.logger.Info("catalog loaded", zap.String("path", s.path), zap.Int("products", len(products)))
	return products, nil
}

// Save writes the whole catalog to a temporary file and renames it over the
// previous one, so an interrupted write leaves the old file intact.
func (s *FileStore) Save(products []models.Product) error {
	records := make([]record, 0, len(products))
	for _, p := range products {
		threshold := p.Threshold
		records = append(records, record{Code: p.Code, ShortName: p.Name, Threshold: &threshold})
	}

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp catalog: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp catalog: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace catalog %s: %w", s.path, err)
	}

	s.logger.Info("catalog saved", zap.String("path", s.path), zap.Int("products", len(products)))
	return nil
}
