package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-zones/internal/ingest"
	"github.com/miradorstack/mirador-zones/internal/models"
	"github.com/miradorstack/mirador-zones/internal/report"
)

// FileStore persists the derived transitions table as a delimited file.
type FileStore struct {
	path   string
	cols   ingest.Columns
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileStore constructs a store writing to path.
func NewFileStore(path string, cols ingest.Columns, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, cols: cols, logger: logger}
}

// Path returns the location of the derived file.
func (s *FileStore) Path() string { return s.path }

// Save overwrites the derived file atomically. Readers see either the old
// table or the new one, never a partial write.
func (s *FileStore) Save(ctx context.Context, dataset *models.Dataset) error {
	if dataset == nil {
		return errors.New("dataset is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := report.WriteTransitions(&buf, s.cols, dataset.Events); err != nil {
		return fmt.Errorf("encode transitions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	s.logger.Debug("derived table written", "path", s.path, "events", len(dataset.Events))
	return nil
}

// Load reads the derived file back. Only events are available after a restore;
// raw records are not part of the derived table.
func (s *FileStore) Load(ctx context.Context) (*models.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.ErrNoDataset
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}

	events, err := report.ReadTransitions(ctx, f, s.cols)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	return &models.Dataset{
		ID:       uuid.NewString(),
		Source:   s.path,
		LoadedAt: info.ModTime().UTC().Truncate(time.Second),
		Events:   events,
	}, nil
}

// Clear removes the derived file. A missing file is not an error.
func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}
