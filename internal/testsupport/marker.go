package testsupport

import (
	"errors"
	"sync"
)

// MemoryMarker is an in-memory marker store for tests.
type MemoryMarker struct {
	mu       sync.Mutex
	marked   map[string]bool
	unread   map[string]bool
	failMark bool
	marks    []string
}

// NewMemoryMarker returns an empty MemoryMarker.
func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{marked: map[string]bool{}, unread: map[string]bool{}}
}

func (m *MemoryMarker) IsMarked(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marked[path] || m.unread[path]
}

func (m *MemoryMarker) Mark(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks = append(m.marks, path)
	if m.failMark {
		return errors.New("marker unavailable")
	}
	m.marked[path] = true
	return nil
}

// Preset marks paths without recording them as Mark calls.
func (m *MemoryMarker) Preset(paths ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		m.marked[p] = true
	}
}

// Unreadable simulates a marker read failure for the given paths.
func (m *MemoryMarker) Unreadable(paths ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		m.unread[p] = true
	}
}

// FailMarks makes every subsequent Mark call return an error.
func (m *MemoryMarker) FailMarks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failMark = true
}

// Marks returns every path passed to Mark, in call order.
func (m *MemoryMarker) Marks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.marks...)
}

// Marked reports whether Mark succeeded for path.
func (m *MemoryMarker) Marked(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marked[path]
}
