package marker

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// AttrName is the extended attribute that flags an uploaded file.
const AttrName = "user.upload"

var attrValue = []byte("1")

// Xattr stores markers as an extended attribute on the file itself, so the
// marker disappears together with the file.
type Xattr struct {
	logger *slog.Logger
}

// NewXattr constructs an extended-attribute marker store.
func NewXattr(logger *slog.Logger) *Xattr {
	return &Xattr{logger: logger}
}

func (x *Xattr) IsMarked(path string) bool {
	buf := make([]byte, 16)
	n, err := unix.Getxattr(path, AttrName, buf)
	if err != nil {
		if errors.Is(err, unix.ENODATA) {
			return false
		}
		logReadFailure(x.logger, path, err)
		return true
	}
	return n > 0
}

func (x *Xattr) Mark(path string) error {
	if err := unix.Setxattr(path, AttrName, attrValue, 0); err != nil {
		return fmt.Errorf("mark %s: %w", path, err)
	}
	return nil
}

// Probe reports whether dir's filesystem supports user extended attributes.
func Probe(dir string) error {
	_, err := unix.Getxattr(dir, AttrName, make([]byte, 1))
	switch {
	case err == nil, errors.Is(err, unix.ENODATA), errors.Is(err, unix.ERANGE):
		return nil
	default:
		return err
	}
}
