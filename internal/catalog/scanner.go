package catalog

import (
	"cmp"
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"courier/internal/logging"
	"courier/internal/marker"
	"courier/internal/session"
)

// DefaultMaxDepth scans root/<session> and one nested level such as
// root/crash/<session>.
const DefaultMaxDepth = 2

// Scanner enumerates upload candidates under a session root.
type Scanner struct {
	root       string
	priorities session.Priorities
	marker     marker.Store
	artifacts  marker.ArtifactFilter
	maxDepth   int
	logger     *slog.Logger

	immediateBytes int64
	immediateCount int
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithMaxDepth bounds how many directory levels below the root are scanned.
func WithMaxDepth(depth int) Option {
	return func(s *Scanner) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithLogger attaches a logger for scan diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logging.NewComponentLogger(logger, "catalog")
	}
}

// NewScanner constructs a scanner over root.
func NewScanner(root string, priorities session.Priorities, store marker.Store, opts ...Option) *Scanner {
	s := &Scanner{
		root:       root,
		priorities: priorities,
		marker:     store,
		maxDepth:   DefaultMaxDepth,
		logger:     logging.NewNop(),
	}
	if filter, ok := store.(marker.ArtifactFilter); ok {
		s.artifacts = filter
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan returns every unmarked candidate in upload-discovery order: session
// directories chronologically, and within a directory by (rank, name) with
// nested sessions following the directory's own files. The immediate-queue
// counters are recomputed on every call. Filesystem errors never fail a scan;
// the affected directory or file is skipped.
func (s *Scanner) Scan(ctx context.Context) []session.File {
	s.immediateBytes = 0
	s.immediateCount = 0

	info, err := os.Stat(s.root)
	if err != nil || !info.IsDir() {
		s.logger.Debug("session root unavailable",
			logging.String("root", s.root),
			logging.String(logging.FieldEventType, "scan_root_missing"),
		)
		return nil
	}

	var files []session.File
	for _, name := range s.listSubdirs(s.root) {
		if ctx.Err() != nil {
			break
		}
		files = s.scanDir(ctx, session.Directory{Key: name, Path: filepath.Join(s.root, name)}, 1, files)
	}
	return files
}

// Counters reports the size and count of unmarked Immediate-File candidates
// seen by the most recent Scan.
func (s *Scanner) Counters() (int64, int) {
	return s.immediateBytes, s.immediateCount
}

func (s *Scanner) scanDir(ctx context.Context, sd session.Directory, depth int, out []session.File) []session.File {
	entries, err := os.ReadDir(sd.Path)
	if err != nil {
		return out
	}
	if slices.ContainsFunc(entries, func(e os.DirEntry) bool { return session.IsLockName(e.Name()) }) {
		s.logger.Debug("session locked; skipping",
			logging.String("session", sd.Key),
			logging.String(logging.FieldEventType, "session_locked"),
		)
		return out
	}

	var subdirs []string
	batch := make([]session.File, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			subdirs = append(subdirs, name)
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if s.artifacts != nil && s.artifacts.IsArtifact(name) {
			continue
		}
		full := filepath.Join(sd.Path, name)
		if s.marker.IsMarked(full) {
			continue
		}

		class, rank := s.priorities.Classify(sd.Key, name)
		file := session.File{
			SessionKey: sd.Key,
			Name:       name,
			Path:       full,
			Class:      class,
			Rank:       rank,
		}
		if fi, err := entry.Info(); err == nil {
			file.Size = fi.Size()
		}
		if nameClass, _ := s.priorities.Rank(name); nameClass == session.ClassImmediateFile {
			s.immediateCount++
			s.immediateBytes += file.Size
		}
		batch = append(batch, file)
	}

	slices.SortFunc(batch, func(a, b session.File) int {
		return cmp.Or(cmp.Compare(a.Rank, b.Rank), strings.Compare(a.Name, b.Name))
	})
	out = append(out, batch...)

	if depth >= s.maxDepth {
		return out
	}
	slices.SortFunc(subdirs, session.CompareNames)
	for _, name := range subdirs {
		if ctx.Err() != nil {
			break
		}
		out = s.scanDir(ctx, session.Directory{Key: path.Join(sd.Key, name), Path: filepath.Join(sd.Path, name)}, depth+1, out)
	}
	return out
}

func (s *Scanner) listSubdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Debug("list session directory failed",
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldEventType, "scan_list_failed"),
		)
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	slices.SortFunc(names, session.CompareNames)
	return names
}
