package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A negative size writes an empty file.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// SessionTree writes files relative to root. Keys are slash-separated
// "<session>/<name>" paths and values are file sizes in bytes.
func SessionTree(t testing.TB, root string, files map[string]int64) {
	t.Helper()
	for key, size := range files {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(key)), size)
	}
}

// LockSession drops a recorder lock file into the session directory.
func LockSession(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "rlog.lock")
	WriteFile(t, path, 0)
	return path
}
