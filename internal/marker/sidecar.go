package marker

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

// SidecarSuffix is appended to a file name to form its marker file.
const SidecarSuffix = ".uploaded"

// Sidecar stores markers as empty files next to the uploaded file, for
// filesystems without extended attribute support.
type Sidecar struct {
	logger *slog.Logger
}

// NewSidecar constructs a sidecar-file marker store.
func NewSidecar(logger *slog.Logger) *Sidecar {
	return &Sidecar{logger: logger}
}

func (s *Sidecar) IsMarked(path string) bool {
	if _, err := os.Lstat(path); err != nil {
		logReadFailure(s.logger, path, err)
		return true
	}
	_, err := os.Lstat(path + SidecarSuffix)
	switch {
	case err == nil:
		return true
	case errors.Is(err, fs.ErrNotExist):
		return false
	default:
		logReadFailure(s.logger, path, err)
		return true
	}
}

func (s *Sidecar) Mark(path string) error {
	file, err := os.OpenFile(path+SidecarSuffix, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("mark %s: %w", path, err)
	}
	if _, err := file.Write(attrValue); err != nil {
		file.Close()
		return fmt.Errorf("mark %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("mark %s: %w", path, err)
	}
	return nil
}

// IsArtifact hides marker files from directory scans.
func (s *Sidecar) IsArtifact(name string) bool {
	return strings.HasSuffix(name, SidecarSuffix)
}
