package extract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
)

// DefaultMaxAge is the freshness limit of an export.
const DefaultMaxAge = 24 * time.Hour

var (
	// ErrNoExtract indicates the directory holds no export workbook.
	ErrNoExtract = errors.New("no stock extract found")
	// ErrStaleExtract indicates the newest export is older than the freshness limit.
	ErrStaleExtract = errors.New("stock extract is stale")
	// ErrUnsupportedFile indicates an upload that is not an .xlsx workbook.
	ErrUnsupportedFile = errors.New("unsupported extract file")
)

// StaleError carries the modification time of a stale export.
type StaleError struct {
	Path    string
	ModTime time.Time
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("stock extract %s is stale (modified %s)", filepath.Base(e.Path), e.ModTime.Format("2006-01-02 15:04"))
}

// Is lets errors.Is match ErrStaleExtract.
func (e *StaleError) Is(target error) bool {
	return target == ErrStaleExtract
}

// FileInfo describes the export chosen for reconciliation.
type FileInfo struct {
	Path       string
	ModTime    time.Time
	Candidates int
}

// Name returns the base name of the export file.
func (f FileInfo) Name() string {
	return filepath.Base(f.Path)
}

// Source locates exports in a directory where the accounting system (or
// the operator, by upload) drops them.
type Source struct {
	dir    string
	maxAge time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewSource creates a Source over dir, creating the directory if needed.
func NewSource(dir string, maxAge time.Duration, logger *zap.Logger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create extract dir: %w", err)
	}
	return &Source{dir: dir, maxAge: maxAge, now: time.Now, logger: logger}, nil
}

// Latest returns the newest workbook, ignoring Excel lock files, and
// rejects it when older than the freshness limit.
func (s *Source) Latest() (FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return FileInfo{}, fmt.Errorf("list extract dir: %w", err)
	}

	var latest FileInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isWorkbook(name) || strings.HasPrefix(name, "~$") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		latest.Candidates++
		if latest.Path == "" || info.ModTime().After(latest.ModTime) {
			latest.Path = filepath.Join(s.dir, name)
			latest.ModTime = info.ModTime()
		}
	}

	if latest.Path == "" {
		return FileInfo{}, ErrNoExtract
	}
	if latest.Candidates > 1 {
		s.logger.Warn("several extracts found, using the newest", zap.Int("candidates", latest.Candidates), zap.String("path", latest.Path))
	}
	if s.now().Sub(latest.ModTime) > s.maxAge {
		return latest, &StaleError{Path: latest.Path, ModTime: latest.ModTime}
	}
	return latest, nil
}

// Load locates the newest fresh export and parses it.
func (s *Source) Load() (models.Extract, FileInfo, error) {
	info, err := s.Latest()
	if err != nil {
		return nil, info, err
	}
	data, err := ReadFile(info.Path)
	if err != nil {
		return nil, info, err
	}
	s.logger.Info("extract loaded", zap.String("file", info.Name()), zap.Int("codes", len(data)))
	return data, info, nil
}

// Import validates an uploaded workbook and moves it into the directory
// under its own name. Invalid uploads never touch the existing files.
func (s *Source) Import(name string, body []byte) (FileInfo, models.Extract, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if !isWorkbook(name) || strings.HasPrefix(name, "~$") {
		return FileInfo{}, nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
	}

	data, err := Parse(bytes.NewReader(body))
	if err != nil {
		return FileInfo{}, nil, err
	}

	path := filepath.Join(s.dir, name)
	if err := s.writeAtomic(path, body); err != nil {
		return FileInfo{}, nil, fmt.Errorf("store extract %s: %w", name, err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, nil, fmt.Errorf("stat extract %s: %w", name, err)
	}

	s.logger.Info("extract imported", zap.String("file", name), zap.Int("codes", len(data)))
	return FileInfo{Path: path, ModTime: stat.ModTime(), Candidates: 1}, data, nil
}

// writeAtomic stages body in a .tmp file, which Latest never picks, and
// renames it over path.
func (s *Source) writeAtomic(path string, body []byte) error {
	tmp, err := os.CreateTemp(s.dir, "upload-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func isWorkbook(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}
