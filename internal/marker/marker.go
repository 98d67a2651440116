package marker

import (
	"fmt"
	"log/slog"

	"courier/internal/logging"
)

// Store records which files have reached a terminal upload outcome.
//
// IsMarked must never report false for a file it could not inspect: any read
// failure counts as marked so a vanished or unreadable file is skipped rather
// than retried forever.
type Store interface {
	IsMarked(path string) bool
	Mark(path string) error
}

// ArtifactFilter is implemented by stores that leave their own files beside
// the entries they mark. Scanners use it to keep those files out of the
// candidate list.
type ArtifactFilter interface {
	IsArtifact(name string) bool
}

// Backend names accepted by New.
const (
	BackendXattr   = "xattr"
	BackendSidecar = "sidecar"
	BackendLedger  = "ledger"
)

// New returns the filesystem-backed store named by backend. The ledger backend
// lives in the ledger package because it needs an open database.
func New(backend string, logger *slog.Logger) (Store, error) {
	logger = logging.NewComponentLogger(logger, "marker")
	switch backend {
	case BackendXattr, "":
		return NewXattr(logger), nil
	case BackendSidecar:
		return NewSidecar(logger), nil
	case BackendLedger:
		return nil, fmt.Errorf("marker: backend %q needs an open ledger", backend)
	default:
		return nil, fmt.Errorf("marker: unsupported backend %q", backend)
	}
}

func logReadFailure(logger *slog.Logger, path string, err error) {
	if logger == nil {
		return
	}
	logger.Debug("marker read failed; treating file as uploaded",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldEventType, "marker_read_failed"),
	)
}
