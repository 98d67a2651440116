package transport

import (
	"context"
	"log/slog"

	"courier/internal/logging"
)

// Simulated accepts every file without moving it.
type Simulated struct {
	logger *slog.Logger
}

// NewSimulated returns a transport that reports success for every send.
func NewSimulated(logger *slog.Logger) *Simulated {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Simulated{logger: logger}
}

func (s *Simulated) Send(_ context.Context, localPath, remoteKey string) (int, error) {
	s.logger.Debug("simulated upload",
		logging.String("path", localPath),
		logging.String("remote_key", remoteKey),
	)
	return StatusOK, nil
}
