package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"courier/internal/backoff"
	"courier/internal/catalog"
	"courier/internal/config"
	"courier/internal/daemon"
	"courier/internal/ledger"
	"courier/internal/logging"
	"courier/internal/marker"
	"courier/internal/netgate"
	"courier/internal/notifications"
	"courier/internal/session"
	"courier/internal/status"
	"courier/internal/transport"
	"courier/internal/uploader"
)

// components holds everything the upload loop needs plus the resources that
// must be released on shutdown.
type components struct {
	deviceID  string
	ledger    *ledger.Store
	markers   marker.Store
	transport transport.Transport
	notifier  notifications.Service
	streak    *notifications.StreakSink
	watcher   *netgate.Watcher
	loop      *daemon.Loop
}

// buildComponents wires the loop for deviceID. On error every resource opened
// so far is released.
func buildComponents(ctx context.Context, cfg *config.Config, deviceID string, logger *slog.Logger) (_ *components, err error) {
	c := &components{deviceID: deviceID}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if cfg.Ledger.Enabled {
		c.ledger, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		pruneLedger(ctx, c.ledger, cfg.Logging.RetentionDays, logger)
	}

	c.markers, err = selectMarkers(cfg.Uploader.MarkerBackend, c.ledger, logger)
	if err != nil {
		return nil, err
	}

	c.transport, err = transport.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build transport: %w", err)
	}

	provider, err := netgate.NewProvider(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("device state provider: %w", err)
	}
	gate, err := netgate.NewGate(cfg.Uploader)
	if err != nil {
		return nil, err
	}

	c.notifier = notifications.NewService(cfg)
	sinks := status.Fanout{
		status.NewFileSink(cfg.StatusPath()),
		status.NewLogSink(logger),
	}
	if notifications.Enabled(c.notifier) {
		c.streak = notifications.NewStreakSink(c.notifier, cfg.Notifications.FailureStreak, logger)
		sinks = append(sinks, c.streak)
	}
	publisher := status.NewPublisher(sinks, deviceID, logger, status.WithPID(os.Getpid()))

	stats := &session.Stats{}
	execOpts := []uploader.Option{
		uploader.WithLogger(logger),
		uploader.WithPermanentCodes(cfg.Uploader.PermanentStatusCodes),
	}
	if c.ledger != nil {
		execOpts = append(execOpts, uploader.WithRecorder(c.ledger))
	}
	executor := uploader.New(c.transport, c.markers, deviceID, stats, execOpts...)

	scanner := catalog.NewScanner(cfg.Paths.RootDir, Priorities(cfg.Priority), c.markers,
		catalog.WithMaxDepth(cfg.Uploader.MaxSessionDepth),
		catalog.WithLogger(logger),
	)

	loopOpts := []daemon.LoopOption{daemon.WithLoopLogger(logger)}
	if cfg.Uploader.WatchNetwork {
		c.watcher = netgate.NewWatcher(logger)
		loopOpts = append(loopOpts, daemon.WithWake(c.watcher.Wake()))
	}

	c.loop = daemon.NewLoop(daemon.LoopDeps{
		Provider:   provider,
		Gate:       gate,
		Scanner:    scanner,
		Uploader:   executor,
		Backoff:    backoff.New(time.Duration(cfg.Uploader.BackoffBaseMillis)*time.Millisecond, time.Duration(cfg.Uploader.BackoffMaxSeconds)*time.Second),
		Publisher:  publisher,
		Stats:      stats,
		AllowSleep: cfg.Uploader.AllowSleep,
	}, loopOpts...)
	return c, nil
}

// Close stops the watcher, flushes pending streak alerts, then releases the
// transport and the ledger.
func (c *components) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.watcher != nil {
		c.watcher.Stop()
	}
	if c.streak != nil {
		errs = append(errs, c.streak.Close())
	}
	if closer, ok := c.transport.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if c.ledger != nil {
		errs = append(errs, c.ledger.Close())
	}
	return errors.Join(errs...)
}

// selectMarkers returns the marker store named by backend. The ledger backend
// requires an open ledger.
func selectMarkers(backend string, store *ledger.Store, logger *slog.Logger) (marker.Store, error) {
	if backend == marker.BackendLedger {
		if store == nil {
			return nil, errors.New("marker backend \"ledger\" requires ledger.enabled")
		}
		return store.Markers(logging.NewComponentLogger(logger, "marker")), nil
	}
	markers, err := marker.New(backend, logger)
	if err != nil {
		return nil, err
	}
	return markers, nil
}

// OpenMarkers returns the marker store configured for cfg for one-off use
// outside the daemon. The returned close function releases the ledger when the
// ledger backend is selected.
func OpenMarkers(cfg *config.Config, logger *slog.Logger) (marker.Store, func() error, error) {
	noop := func() error { return nil }
	if cfg.Uploader.MarkerBackend != marker.BackendLedger {
		markers, err := selectMarkers(cfg.Uploader.MarkerBackend, nil, logger)
		return markers, noop, err
	}
	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, noop, fmt.Errorf("open ledger: %w", err)
	}
	markers, err := selectMarkers(marker.BackendLedger, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, noop, err
	}
	return markers, store.Close, nil
}

// Priorities converts the configured tier tables.
func Priorities(cfg config.Priority) session.Priorities {
	return session.Priorities{
		ImmediateFolders: cfg.ImmediateFolders,
		ImmediateFiles:   cfg.ImmediateFiles,
		HighFiles:        cfg.HighFiles,
		NormalFiles:      cfg.NormalFiles,
	}
}

func pruneLedger(ctx context.Context, store *ledger.Store, retentionDays int, logger *slog.Logger) {
	if retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed, err := store.Prune(ctx, cutoff)
	if err != nil {
		logging.WarnWithContext(logger, "ledger prune failed", "ledger_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ledger.path permissions"),
			logging.String(logging.FieldImpact, "upload history keeps growing"),
		)
		return
	}
	if removed > 0 {
		logger.Info("pruned upload history",
			logging.String(logging.FieldEventType, "ledger_pruned"),
			logging.Int64("removed", removed),
			logging.Int("retention_days", retentionDays),
		)
	}
}
