package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"courier/internal/logging"
)

// Markers adapts the ledger to the marker store interface.
type Markers struct {
	store  *Store
	logger *slog.Logger
}

// Markers returns a marker store backed by this ledger.
func (s *Store) Markers(logger *slog.Logger) *Markers {
	return &Markers{store: s, logger: logging.NewComponentLogger(logger, "marker")}
}

// IsMarked reports whether path has a marker row. A file that can't be
// inspected and a failed query both count as marked.
func (m *Markers) IsMarked(path string) bool {
	if _, err := os.Lstat(path); err != nil {
		m.readFailed(path, err)
		return true
	}
	marked, err := m.store.IsMarked(context.Background(), path)
	if err != nil {
		m.readFailed(path, err)
		return true
	}
	return marked
}

func (m *Markers) readFailed(path string, err error) {
	m.logger.Debug("marker read failed; treating file as uploaded",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldEventType, "marker_read_failed"),
	)
}

func (m *Markers) Mark(path string) error {
	return m.store.Mark(context.Background(), path)
}

// IsMarked reports whether path has been marked.
func (s *Store) IsMarked(ctx context.Context, path string) (bool, error) {
	ctx = ensureContext(ctx)
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM markers WHERE path = ?", path).Scan(&count); err != nil {
		return false, fmt.Errorf("query marker: %w", err)
	}
	return count > 0, nil
}

// Mark records path as uploaded. Marking twice keeps the first timestamp.
func (s *Store) Mark(ctx context.Context, path string) error {
	if err := s.exec(ctx,
		"INSERT INTO markers (path, marked_at) VALUES (?, ?) ON CONFLICT(path) DO NOTHING",
		path, formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("mark %s: %w", path, err)
	}
	return nil
}
