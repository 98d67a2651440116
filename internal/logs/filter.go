package logs

import (
	"encoding/json"
	"strings"

	"courier/internal/logging"
)

// EventFilter selects JSON event lines. Empty fields match anything.
type EventFilter struct {
	EventType string
	Level     string
}

// Empty reports whether the filter accepts every line.
func (f EventFilter) Empty() bool {
	return strings.TrimSpace(f.EventType) == "" && strings.TrimSpace(f.Level) == ""
}

// Match reports whether line is a JSON event accepted by the filter. Lines
// that are not JSON objects only match an empty filter.
func (f EventFilter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	var event map[string]any
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		return false
	}
	if want := strings.TrimSpace(f.EventType); want != "" {
		got, _ := event[logging.FieldEventType].(string)
		if got != want {
			return false
		}
	}
	if want := strings.TrimSpace(f.Level); want != "" {
		got, _ := event["level"].(string)
		if !strings.EqualFold(got, want) {
			return false
		}
	}
	return true
}
