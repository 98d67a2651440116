package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"courier/internal/config"
)

var commandContext = exec.CommandContext

// waitDelay bounds how long Send waits for rsync's ssh child to release
// stderr after rsync itself has been killed.
const waitDelay = 5 * time.Second

// Rsync copies files over ssh with resumable appends.
type Rsync struct {
	binary      string
	destination string
	sshCommand  string
	timeout     time.Duration
}

// NewRsync constructs an rsync transport.
func NewRsync(cfg config.Rsync, timeout time.Duration) *Rsync {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = "rsync"
	}
	return &Rsync{
		binary:      binary,
		destination: strings.TrimRight(strings.TrimSpace(cfg.Destination), "/"),
		sshCommand:  strings.TrimSpace(cfg.SSHCommand),
		timeout:     timeout,
	}
}

// Args returns the rsync argument list for one file.
func (r *Rsync) Args(localPath, remoteKey string) []string {
	args := []string{"--append", "--mkpath", "-azhP"}
	if r.sshCommand != "" {
		args = append(args, "-e", r.sshCommand)
	}
	return append(args, localPath, r.destination+"/"+strings.TrimLeft(remoteKey, "/"))
}

// Send runs rsync. A zero exit is reported as 200; anything else, including
// the timeout firing, is an error with the tail of rsync's stderr.
func (r *Rsync) Send(ctx context.Context, localPath, remoteKey string) (int, error) {
	ctx, cancel := boundContext(ctx, r.timeout)
	defer cancel()

	cmd := commandContext(ctx, r.binary, r.Args(localPath, remoteKey)...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("rsync timed out after %s: %w", r.timeout, ctx.Err())
		}
		detail := lastLine(stderr.String())
		if detail != "" {
			return 0, fmt.Errorf("rsync %s: %w: %s", localPath, err, detail)
		}
		return 0, fmt.Errorf("rsync %s: %w", localPath, err)
	}
	return StatusOK, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
