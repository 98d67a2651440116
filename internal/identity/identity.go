// Package identity resolves the device identifier used to namespace uploads.
package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"courier/internal/config"
)

// ErrMissing means no device identifier is configured. The daemon refuses to
// start without one.
var ErrMissing = errors.New("device identifier is not set")

// Source names where an identifier came from.
type Source string

const (
	SourceConfig Source = "config"
	SourceFile   Source = "id_file"
)

// Resolve returns the device identifier and where it came from. device.id
// (or COURIER_DEVICE_ID) wins; otherwise the first non-comment line of
// device.id_path is used.
func Resolve(cfg *config.Config) (string, Source, error) {
	if cfg == nil {
		return "", "", ErrMissing
	}
	if id := Sanitize(cfg.Device.ID); id != "" {
		return id, SourceConfig, nil
	}

	path := strings.TrimSpace(cfg.Device.IDPath)
	if path == "" {
		return "", "", ErrMissing
	}
	id, err := readIDFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", fmt.Errorf("%w: %s does not exist", ErrMissing, path)
		}
		return "", "", fmt.Errorf("read device id from %s: %w", path, err)
	}
	if id == "" {
		return "", "", fmt.Errorf("%w: %s is empty", ErrMissing, path)
	}
	return id, SourceFile, nil
}

func readIDFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return Sanitize(line), nil
	}
	return "", nil
}

// Sanitize keeps an identifier path-safe for remote keys: whitespace and
// path separators become underscores.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
