package status

import (
	"context"
	"fmt"
	"log/slog"

	"courier/internal/fileutil"
	"courier/internal/logging"
)

// FileSink writes each snapshot to a JSON file that `courier status` reads.
type FileSink struct {
	path string
}

// NewFileSink returns a sink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Path returns the status file location.
func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) Publish(_ context.Context, snap Snapshot) error {
	if err := fileutil.WriteJSONAtomic(s.path, snap, 0o644); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	return nil
}

// ReadFile loads the snapshot last written by a FileSink.
func ReadFile(path string) (Snapshot, error) {
	var snap Snapshot
	if err := fileutil.ReadJSON(path, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// LogSink emits each snapshot as a debug log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging through logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logging.NewComponentLogger(logger, "status")}
}

func (s *LogSink) Publish(_ context.Context, snap Snapshot) error {
	s.logger.Debug("upload status",
		logging.String(logging.FieldEventType, "upload_status"),
		logging.String("state", snap.State),
		logging.String("network", snap.Network),
		logging.Int64("immediate_queue_size", snap.ImmediateQueueSize),
		logging.Int("immediate_queue_count", snap.ImmediateQueueCount),
		logging.Float64("last_speed", snap.LastSpeed),
		logging.String("last_filename", snap.LastFilename),
		logging.Int("consecutive_failures", snap.ConsecutiveFailures),
	)
	return nil
}
