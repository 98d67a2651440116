package deps

import (
	"strings"

	"courier/internal/config"
)

// TransportRequirements lists the binaries the configured transport runs.
// Only the rsync transport shells out; simulated uploads need nothing.
func TransportRequirements(cfg *config.Config) []Requirement {
	if cfg == nil || cfg.Uploader.SimulateUpload {
		return nil
	}
	if !strings.EqualFold(strings.TrimSpace(cfg.Transport.Kind), "rsync") {
		return nil
	}
	binary := strings.TrimSpace(cfg.Transport.Rsync.Binary)
	if binary == "" {
		binary = "rsync"
	}
	reqs := []Requirement{{
		Name:        "rsync",
		Command:     binary,
		Description: "Required for the rsync transport",
	}}
	if fields := strings.Fields(cfg.Transport.Rsync.SSHCommand); len(fields) > 0 {
		reqs = append(reqs, Requirement{
			Name:        "ssh",
			Command:     fields[0],
			Description: "Remote shell used by rsync",
		})
	}
	return reqs
}
