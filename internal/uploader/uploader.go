// Package uploader performs a single upload attempt and applies its outcome:
// it calls the transport, marks files that reached a terminal status, and
// keeps the transfer statistics current. It is the only writer of markers and
// transfer stats.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"slices"
	"time"

	"courier/internal/ledger"
	"courier/internal/logging"
	"courier/internal/marker"
	"courier/internal/session"
	"courier/internal/transport"
)

// DefaultPermanentCodes are remote refusals that are never retried.
var DefaultPermanentCodes = []int{401, 403, 412}

const statusPreconditionFailed = 412

// Recorder persists upload attempts for later inspection.
type Recorder interface {
	Record(ctx context.Context, attempt ledger.Attempt) error
}

// Executor uploads one file at a time.
type Executor struct {
	transport transport.Transport
	markers   marker.Store
	deviceID  string
	stats     *session.Stats
	permanent []int
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option customises an Executor.
type Option func(*Executor)

// WithRecorder appends every attempt to rec.
func WithRecorder(rec Recorder) Option {
	return func(e *Executor) {
		e.recorder = rec
	}
}

// WithPermanentCodes replaces the refusal codes that mark a file.
func WithPermanentCodes(codes []int) Option {
	return func(e *Executor) {
		if codes != nil {
			e.permanent = slices.Clone(codes)
		}
	}
}

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithClock replaces the time source used to measure transfers.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds an executor. stats must be the loop's Stats value; the executor
// updates its transfer fields after terminal outcomes.
func New(tr transport.Transport, markers marker.Store, deviceID string, stats *session.Stats, opts ...Option) *Executor {
	e := &Executor{
		transport: tr,
		markers:   markers,
		deviceID:  deviceID,
		stats:     stats,
		permanent: slices.Clone(DefaultPermanentCodes),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "uploader")
	if e.stats == nil {
		e.stats = &session.Stats{}
	}
	return e
}

// RemoteKey is the destination key for file: "<device>/<session>/<name>".
func (e *Executor) RemoteKey(file session.File) string {
	return path.Join(e.deviceID, file.SessionKey, file.Name)
}

// Upload attempts file once. Terminal outcomes leave the file marked; a
// retryable outcome leaves it untouched so a later scan selects it again.
func (e *Executor) Upload(ctx context.Context, file session.File) session.Outcome {
	ctx = logging.WithFileKey(ctx, file.Key())
	logger := logging.WithContext(ctx, e.logger)

	info, err := os.Stat(file.Path)
	if err != nil {
		outcome := session.Outcome{Kind: session.OutcomeRetryable, Err: fmt.Errorf("stat %s: %w", file.Path, err)}
		logging.WarnWithContext(logger, "upload candidate unreadable", "upload_failed",
			logging.Error(outcome.Err),
			logging.String(logging.FieldErrorHint, "file may have been removed by the recorder; it is skipped if it stays missing"),
			logging.String(logging.FieldImpact, "upload retried after backoff"),
		)
		e.record(ctx, file, outcome)
		return outcome
	}
	size := info.Size()

	if size == 0 {
		e.mark(logger, file)
		logger.Debug("empty file marked without transfer",
			logging.String(logging.FieldEventType, "upload_skipped_empty"),
		)
		outcome := session.Outcome{Kind: session.OutcomeSuccess}
		e.record(ctx, file, outcome)
		return outcome
	}

	remoteKey := e.RemoteKey(file)
	logger.Debug("upload started",
		logging.String(logging.FieldEventType, "upload_start"),
		logging.String("remote_key", remoteKey),
		logging.Int64("size_bytes", size),
		logging.String("tier", file.Class.String()),
	)

	start := e.now()
	code, sendErr := e.transport.Send(ctx, file.Path, remoteKey)
	elapsed := e.now().Sub(start)

	outcome := session.Outcome{StatusCode: code, Bytes: size, Duration: elapsed, Err: sendErr}
	switch {
	case sendErr != nil:
		outcome.Kind = session.OutcomeRetryable
	case code == transport.StatusOK || code == transport.StatusCreated:
		outcome.Kind = session.OutcomeSuccess
	case slices.Contains(e.permanent, code):
		outcome.Kind = session.OutcomePermanent
	default:
		outcome.Kind = session.OutcomeRetryable
		outcome.Err = fmt.Errorf("remote returned status %d", code)
	}

	if outcome.Terminal() {
		e.mark(logger, file)
		e.stats.RecordTransfer(file.Path, size, elapsed)
	}
	e.logOutcome(logger, outcome)
	e.record(ctx, file, outcome)
	return outcome
}

func (e *Executor) mark(logger *slog.Logger, file session.File) {
	if err := e.markers.Mark(file.Path); err != nil {
		logging.WarnWithContext(logger, "failed to mark file as uploaded", "marker_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the filesystem supports the configured marker backend"),
			logging.String(logging.FieldImpact, "file may be uploaded again"),
		)
	}
}

func (e *Executor) logOutcome(logger *slog.Logger, outcome session.Outcome) {
	switch outcome.Kind {
	case session.OutcomeSuccess:
		logger.Info("upload complete",
			logging.String(logging.FieldEventType, "upload_success"),
			logging.Int("status_code", outcome.StatusCode),
			logging.Int64("size_bytes", outcome.Bytes),
			logging.Duration("duration", outcome.Duration),
			logging.Float64("speed_mbps", e.stats.LastSpeed),
		)
	case session.OutcomePermanent:
		if outcome.StatusCode == statusPreconditionFailed {
			logger.Info("upload ignored by remote",
				logging.String(logging.FieldEventType, "upload_ignored"),
				logging.Int("status_code", outcome.StatusCode),
			)
			return
		}
		attrs := []logging.Attr{
			logging.Int("status_code", outcome.StatusCode),
			logging.String(logging.FieldImpact, "file marked and will not be retried"),
		}
		if outcome.StatusCode == 401 || outcome.StatusCode == 403 {
			attrs = append(attrs, logging.String(logging.FieldErrorHint, "check upload credentials"))
		} else {
			attrs = append(attrs, logging.String(logging.FieldErrorHint, "remote refused the file; see status code"))
		}
		logging.WarnWithContext(logger, "upload refused by remote", "upload_refused", attrs...)
	default:
		attrs := []logging.Attr{
			logging.String(logging.FieldImpact, "upload retried after backoff"),
			logging.String(logging.FieldErrorHint, transportHint(outcome.Err)),
		}
		if outcome.StatusCode != 0 {
			attrs = append(attrs, logging.Int("status_code", outcome.StatusCode))
		}
		if outcome.Err != nil {
			attrs = append(attrs, logging.Error(outcome.Err))
		}
		logging.WarnWithContext(logger, "upload failed", "upload_failed", attrs...)
	}
}

func transportHint(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "transfer timed out; check link quality or raise transport.timeout_seconds"
	case errors.Is(err, context.Canceled):
		return "transfer interrupted by shutdown"
	default:
		return "check network connectivity and transport configuration"
	}
}

func (e *Executor) record(ctx context.Context, file session.File, outcome session.Outcome) {
	if e.recorder == nil {
		return
	}
	attempt := ledger.Attempt{
		Key:         file.Key(),
		Path:        file.Path,
		Size:        outcome.Bytes,
		StatusCode:  outcome.StatusCode,
		Outcome:     outcome.Kind.String(),
		Duration:    outcome.Duration,
		AttemptedAt: e.now(),
	}
	if outcome.Err != nil {
		attempt.Error = outcome.Err.Error()
	}
	if err := e.recorder.Record(context.WithoutCancel(ctx), attempt); err != nil {
		e.logger.Debug("ledger write failed",
			logging.String(logging.FieldFileKey, file.Key()),
			logging.Error(err),
		)
	}
}
