package session

import (
	"path"
	"slices"
	"strings"
	"time"
)

// LockSuffix marks an entry that signals a session directory is still being written.
const LockSuffix = ".lock"

// Directory is a session directory discovered under the root.
type Directory struct {
	// Key is the path relative to the root using forward slashes, e.g.
	// "2024-03-01--12-00-00--3" or "crash/2024-03-01--12-00-00".
	Key  string
	Path string
}

// File is a candidate for upload.
type File struct {
	SessionKey string
	Name       string
	Path       string
	Size       int64
	Class      Class
	Rank       int
}

// Key identifies the file relative to the root: "<session>/<name>".
func (f File) Key() string {
	return path.Join(f.SessionKey, f.Name)
}

// SortKey returns the chronological sort key for a directory name. The name is
// split at the last "--" and each part is left-padded with zeros to width 10
// so numeric segment counters order correctly ("x--9" before "x--10").
func SortKey(name string) []string {
	var parts []string
	if idx := strings.LastIndex(name, "--"); idx >= 0 {
		parts = []string{name[:idx], name[idx+2:]}
	} else {
		parts = []string{name}
	}
	for i, p := range parts {
		if len(p) < 10 {
			parts[i] = strings.Repeat("0", 10-len(p)) + p
		}
	}
	return parts
}

// CompareNames orders directory names chronologically.
func CompareNames(a, b string) int {
	if c := slices.Compare(SortKey(a), SortKey(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// IsLockName reports whether an entry name marks its directory as in progress.
func IsLockName(name string) bool {
	return strings.HasSuffix(name, LockSuffix)
}

// OutcomeKind classifies the result of one upload attempt.
type OutcomeKind int

const (
	// OutcomeSuccess means the remote accepted the file (or it was empty).
	OutcomeSuccess OutcomeKind = iota
	// OutcomePermanent means the remote refused the file with a terminal status.
	// The file is marked so it is never retried.
	OutcomePermanent
	// OutcomeRetryable means the file stays unmarked and will be selected again.
	OutcomeRetryable
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomePermanent:
		return "permanent"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

// Outcome is the result of uploading one file.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Bytes      int64
	Duration   time.Duration
	Err        error
}

// Terminal reports whether the file was marked and will not be retried.
func (o Outcome) Terminal() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomePermanent
}

// Stats is the daemon's running view of upload progress. It is owned by the
// upload loop and mutated from that goroutine only.
type Stats struct {
	LastDuration   time.Duration
	LastSpeed      float64
	LastFilename   string
	ImmediateBytes int64
	ImmediateCount int

	State               string
	Network             string
	Backoff             time.Duration
	ConsecutiveFailures int
	UploadedFiles       int64
	UploadedBytes       int64
	UpdatedAt           time.Time
}

// RecordTransfer updates the last-transfer figures after a terminal outcome.
// Speed is expressed in MB/s (10^6 bytes per second).
func (s *Stats) RecordTransfer(name string, bytes int64, elapsed time.Duration) {
	s.LastDuration = elapsed
	s.LastFilename = name
	if elapsed > 0 {
		s.LastSpeed = (float64(bytes) / 1e6) / elapsed.Seconds()
	} else {
		s.LastSpeed = 0
	}
	s.UploadedFiles++
	s.UploadedBytes += bytes
}
