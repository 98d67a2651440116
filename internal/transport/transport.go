// Package transport moves one local file to remote storage and reports the
// remote's verdict as an HTTP-style status code.
//
// Every backend maps its own notion of success and refusal onto status
// codes so the uploader can apply a single terminal/retryable policy:
// 200 or 201 means stored, 4xx codes mean the remote refused the file, and a
// non-nil error means the attempt did not reach a verdict.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"courier/internal/config"
	"courier/internal/logging"
)

// Transport sends a single file. Implementations bound their own runtime;
// callers do not impose a deadline.
type Transport interface {
	Send(ctx context.Context, localPath, remoteKey string) (int, error)
}

const (
	KindRsync = "rsync"
	KindHTTP  = "http"
	KindGCS   = "gcs"
	KindSwift = "swift"
)

// Status codes reported by backends that have no native status of their own.
const (
	StatusOK      = 200
	StatusCreated = 201
)

// New builds the transport selected by cfg. Simulated uploads bypass the
// configured backend entirely.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Transport, error) {
	if cfg == nil {
		return nil, fmt.Errorf("transport: config is required")
	}
	logger = logging.NewComponentLogger(logger, "transport")
	if cfg.Uploader.SimulateUpload {
		logger.Info("upload simulation enabled; files are marked without transfer",
			logging.String(logging.FieldEventType, "upload_simulation_enabled"),
		)
		return NewSimulated(logger), nil
	}

	timeout := time.Duration(cfg.Transport.TimeoutSeconds) * time.Second
	switch strings.ToLower(strings.TrimSpace(cfg.Transport.Kind)) {
	case KindRsync:
		return NewRsync(cfg.Transport.Rsync, timeout), nil
	case KindHTTP:
		return NewHTTP(cfg.Transport.HTTP, timeout), nil
	case KindGCS:
		return NewGCS(ctx, cfg.Transport.GCS, timeout)
	case KindSwift:
		return NewSwift(ctx, cfg.Transport.Swift, timeout)
	default:
		return nil, fmt.Errorf("transport: unknown kind %q", cfg.Transport.Kind)
	}
}

// boundContext applies the adapter timeout when one is configured.
func boundContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func joinKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
