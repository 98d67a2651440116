package notifications

import (
	"context"
	"log/slog"
	"sync"

	"courier/internal/logging"
	"courier/internal/status"
)

// streakBacklog bounds alerts waiting on a slow ntfy server. Publish drops
// alerts once it is full.
const streakBacklog = 8

type streakAlert struct {
	ctx      context.Context
	stalled  bool
	failures int
	filename string
}

// StreakSink watches published snapshots for runs of failed uploads. It
// alerts once when the failure count reaches the threshold and once more when
// the count drops back to zero. Alerts are sent from a background goroutine so
// Publish never waits on the network; Close drains it.
type StreakSink struct {
	svc       Service
	threshold int
	logger    *slog.Logger

	mu      sync.Mutex
	alerted bool
	peak    int
	closed  bool

	pending chan streakAlert
	done    chan struct{}
}

// NewStreakSink returns a status sink driving svc. A non-positive threshold
// disables alerts.
func NewStreakSink(svc Service, threshold int, logger *slog.Logger) *StreakSink {
	s := &StreakSink{
		svc:       svc,
		threshold: threshold,
		logger:    logging.NewComponentLogger(logger, "notifications"),
		pending:   make(chan streakAlert, streakBacklog),
		done:      make(chan struct{}),
	}
	go s.deliver()
	return s
}

func (s *StreakSink) Publish(ctx context.Context, snap status.Snapshot) error {
	if s == nil || s.svc == nil || s.threshold <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	failures := snap.ConsecutiveFailures
	if failures > s.peak {
		s.peak = failures
	}

	switch {
	case !s.alerted && failures >= s.threshold:
		s.alerted = true
		s.logger.Info("upload failure streak reached alert threshold",
			logging.String(logging.FieldEventType, "upload_stalled"),
			logging.Int("consecutive_failures", failures),
		)
		s.enqueue(streakAlert{ctx: ctx, stalled: true, failures: failures, filename: snap.LastFilename})
	case s.alerted && failures == 0:
		peak := s.peak
		s.alerted = false
		s.peak = 0
		s.logger.Info("uploads recovered after failure streak",
			logging.String(logging.FieldEventType, "upload_recovered"),
			logging.Int("failures", peak),
		)
		s.enqueue(streakAlert{ctx: ctx, failures: peak})
	case failures == 0:
		s.peak = 0
	}
	return nil
}

// Close stops accepting alerts and waits until queued ones are sent.
func (s *StreakSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.pending)
	}
	s.mu.Unlock()
	<-s.done
	return nil
}

func (s *StreakSink) enqueue(alert streakAlert) {
	alert.ctx = context.WithoutCancel(alert.ctx)
	select {
	case s.pending <- alert:
	default:
		logging.WarnWithContext(s.logger, "notification backlog full; alert dropped", "notification_dropped",
			logging.String(logging.FieldImpact, "ntfy subscribers miss this alert"),
			logging.Bool("stalled", alert.stalled),
			logging.Int("failures", alert.failures),
		)
	}
}

func (s *StreakSink) deliver() {
	defer close(s.done)
	for alert := range s.pending {
		var err error
		if alert.stalled {
			err = s.svc.NotifyUploadStalled(alert.ctx, alert.failures, alert.filename)
		} else {
			err = s.svc.NotifyUploadRecovered(alert.ctx, alert.failures)
		}
		if err != nil {
			logging.WarnWithContext(s.logger, "streak notification failed", "notification_failed",
				logging.String(logging.FieldErrorHint, "check the ntfy topic URL and network reachability"),
				logging.Error(err),
			)
		}
	}
}
