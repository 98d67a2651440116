// Package status publishes the upload loop's progress snapshot.
//
// The loop hands its Stats to Publisher.Snapshot after every iteration and
// passes the result to Publish. Sinks receive the snapshot fire-and-forget:
// a failing sink is logged and ignored so status reporting never stalls
// uploads.
package status

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"courier/internal/logging"
	"courier/internal/session"
)

// Snapshot is the published view of upload progress.
type Snapshot struct {
	DeviceID            string    `json:"device_id"`
	State               string    `json:"state"`
	Network             string    `json:"network"`
	LastTimeSeconds     float64   `json:"last_time"`
	LastSpeed           float64   `json:"last_speed"`
	LastFilename        string    `json:"last_filename"`
	ImmediateQueueSize  int64     `json:"immediate_queue_size"`
	ImmediateQueueCount int       `json:"immediate_queue_count"`
	BackoffSeconds      float64   `json:"backoff_seconds"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	UploadedFiles       int64     `json:"uploaded_files"`
	UploadedBytes       int64     `json:"uploaded_bytes"`
	PID                 int       `json:"pid,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Sink receives snapshots.
type Sink interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Publisher builds snapshots and forwards them to a sink.
type Publisher struct {
	sink     Sink
	deviceID string
	pid      int
	logger   *slog.Logger
	now      func() time.Time
}

// PublisherOption customises a Publisher.
type PublisherOption func(*Publisher)

// WithPID stamps snapshots with the daemon's process id.
func WithPID(pid int) PublisherOption {
	return func(p *Publisher) {
		p.pid = pid
	}
}

// WithClock replaces the snapshot timestamp source.
func WithClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPublisher returns a publisher writing to sink. A nil sink discards
// snapshots.
func NewPublisher(sink Sink, deviceID string, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		sink:     sink,
		deviceID: deviceID,
		logger:   logging.NewComponentLogger(logger, "status"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot converts stats into a Snapshot without side effects. The
// immediate queue size is reported in whole megabytes (10^6 bytes).
func (p *Publisher) Snapshot(stats session.Stats) Snapshot {
	updated := stats.UpdatedAt
	if updated.IsZero() {
		updated = p.now()
	}
	return Snapshot{
		DeviceID:            p.deviceID,
		State:               stats.State,
		Network:             stats.Network,
		LastTimeSeconds:     stats.LastDuration.Seconds(),
		LastSpeed:           stats.LastSpeed,
		LastFilename:        stats.LastFilename,
		ImmediateQueueSize:  stats.ImmediateBytes / 1_000_000,
		ImmediateQueueCount: stats.ImmediateCount,
		BackoffSeconds:      stats.Backoff.Seconds(),
		ConsecutiveFailures: stats.ConsecutiveFailures,
		UploadedFiles:       stats.UploadedFiles,
		UploadedBytes:       stats.UploadedBytes,
		PID:                 p.pid,
		UpdatedAt:           updated.UTC(),
	}
}

// Publish forwards snap to the sink. Errors are logged at debug and dropped.
func (p *Publisher) Publish(ctx context.Context, snap Snapshot) {
	if p == nil || p.sink == nil {
		return
	}
	if err := p.sink.Publish(ctx, snap); err != nil {
		p.logger.Debug("status publish failed",
			logging.String(logging.FieldEventType, "status_publish_failed"),
			logging.Error(err),
		)
	}
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, snap Snapshot) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, snap Snapshot) error

func (f SinkFunc) Publish(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}
