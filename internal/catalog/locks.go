package catalog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"courier/internal/logging"
	"courier/internal/session"
)

// ClearLocksResult contains the outcome of a stale lock sweep.
type ClearLocksResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a path with the error encountered while sweeping it.
type SweepError struct {
	Path  string
	Error error
}

// ClearLocks removes *.lock entries left in session directories by a recorder
// that died mid-write. It runs once at startup, before the first scan, so the
// sessions they guarded become eligible for upload. Directories up to maxDepth
// levels below root are swept.
func ClearLocks(ctx context.Context, root string, maxDepth int, logger *slog.Logger) ClearLocksResult {
	result := ClearLocksResult{}

	root = strings.TrimSpace(root)
	if root == "" {
		return result
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var sweep func(dir string, depth int)
	sweep = func(dir string, depth int) {
		if ctx.Err() != nil {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				result.Errors = append(result.Errors, SweepError{Path: dir, Error: err})
			}
			return
		}
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				if depth < maxDepth {
					sweep(full, depth+1)
				}
				continue
			}
			if depth == 0 || !session.IsLockName(entry.Name()) {
				continue
			}
			if err := os.Remove(full); err != nil {
				result.Errors = append(result.Errors, SweepError{Path: full, Error: err})
				logging.WarnWithContext(logger, "failed to remove stale session lock", "lock_clear_failed",
					logging.String("path", full),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check paths.root_dir permissions"),
					logging.String(logging.FieldImpact, "session stays locked and will not upload"),
				)
				continue
			}
			result.Removed = append(result.Removed, full)
		}
	}
	sweep(root, 0)

	if logger != nil && len(result.Removed) > 0 {
		logger.Info("cleared stale session locks",
			logging.Int("count", len(result.Removed)),
			logging.String(logging.FieldEventType, "locks_cleared"),
		)
	}
	return result
}
