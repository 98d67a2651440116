package netgate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// deviceStateDocument is written by the device manager. Unknown fields are
// ignored so the manager can add its own.
type deviceStateDocument struct {
	NetworkType string `json:"network_type"`
	Metered     *bool  `json:"metered"`
	Offroad     bool   `json:"offroad"`
}

// FileProvider reads the device state from a JSON document and an optional
// offroad flag file.
type FileProvider struct {
	statePath   string
	offroadPath string
}

// NewFileProvider returns a provider backed by statePath. offroadPath may be
// empty.
func NewFileProvider(statePath, offroadPath string) *FileProvider {
	return &FileProvider{statePath: statePath, offroadPath: offroadPath}
}

// State reads the state document. A missing document reports no network
// without error; an unreadable or garbled one reports no network and the
// cause.
func (p *FileProvider) State(context.Context) (State, error) {
	state := State{Network: NetworkNone, Offroad: readFlag(p.offroadPath)}

	data, err := os.ReadFile(p.statePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state, nil
		}
		return state, fmt.Errorf("read device state: %w", err)
	}

	var doc deviceStateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return state, fmt.Errorf("parse device state %s: %w", p.statePath, err)
	}
	network, err := ParseNetworkType(doc.NetworkType)
	if err != nil {
		return state, fmt.Errorf("parse device state %s: %w", p.statePath, err)
	}

	state.Network = network
	if doc.Metered != nil {
		state.Metered = *doc.Metered
	} else {
		state.Metered = network == NetworkCellular
	}
	state.Offroad = state.Offroad || doc.Offroad
	return state, nil
}

// readFlag reports whether a params-style flag file holds a true value.
func readFlag(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(string(data))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
