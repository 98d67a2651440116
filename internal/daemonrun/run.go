// Package daemonrun assembles and runs the courier daemon process: logging,
// identity, preflight, the single-instance lock, and the upload loop.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"courier/internal/catalog"
	"courier/internal/config"
	"courier/internal/daemon"
	"courier/internal/identity"
	"courier/internal/logging"
	"courier/internal/logs"
	"courier/internal/notifications"
	"courier/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Quiet drops console output; the run log is still written.
	Quiet bool
}

// Run starts the courier daemon and blocks until a signal arrives, cmdCtx
// ends, or the loop stops on its own.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runStamp := time.Now().UTC().Format("20060102T150405.000Z")
	runID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("courier-%s.log", runStamp))
	eventsPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("courier-%s.events", runStamp))

	logger, closeLogs, err := newRunLogger(cfg, opts, logPath, eventsPath)
	if err != nil {
		return err
	}
	defer closeLogs.Close()
	logger = logger.With(logging.String(logging.FieldRunID, runID))

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logs.CurrentName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "courier-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "courier-*.events", Exclude: []string{eventsPath}},
	)

	deviceID, source, err := identity.Resolve(cfg)
	if err != nil {
		logger.Error("uploader can't start without a device id",
			logging.String(logging.FieldEventType, "device_id_missing"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set device.id or write the id to device.id_path"),
		)
		return err
	}
	logger = logger.With(logging.String(logging.FieldDeviceID, deviceID))
	logger.Info("device identity resolved",
		logging.String(logging.FieldEventType, "device_id_resolved"),
		logging.String("source", string(source)),
	)

	if err := setAffinity(cfg.Uploader.CPUAffinity); err != nil {
		logging.WarnWithContext(logger, "failed to set core affinity", "cpu_affinity_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check uploader.cpu_affinity against the available cores"),
			logging.String(logging.FieldImpact, "uploads may compete with latency sensitive processes"),
		)
	}

	logPreflight(logger, preflight.RunAll(ctx, cfg))

	parts, err := buildComponents(ctx, cfg, deviceID, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "daemon setup failed", "daemon_setup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the [transport] and [ledger] settings"),
		)
		notifyFailure(ctx, notifications.NewService(cfg), "daemon setup", err, logger)
		return err
	}
	defer parts.Close()

	runner := startupRunner{
		before: func(ctx context.Context) {
			if cfg.Uploader.ClearLocksOnStart {
				clearLocks(ctx, cfg, logger)
			}
			if parts.watcher != nil {
				if err := parts.watcher.Start(ctx); err != nil {
					logger.Debug("network watcher unavailable", logging.Error(err))
				}
			}
		},
		loop: parts.loop,
	}

	d, err := daemon.New(cfg, logger, runner)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			logger.Error("daemon already running",
				logging.String(logging.FieldEventType, "daemon_already_running"),
				logging.String("lock", cfg.LockPath()),
			)
		}
		return err
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		logging.WarnWithContext(logger, "failed to write pid file", "pid_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "courier status cannot report the daemon pid"),
		)
	}
	defer os.Remove(pidPath)

	if err := parts.notifier.NotifyDaemonStarted(ctx, deviceID); err != nil {
		logger.Debug("start notification failed", logging.Error(err))
	}

	select {
	case <-ctx.Done():
		logger.Info("courier daemon shutting down",
			logging.String(logging.FieldEventType, "daemon_shutdown"),
		)
	case <-d.Done():
		if err := d.Err(); err != nil {
			notifyFailure(ctx, parts.notifier, "upload loop", err, logger)
			return err
		}
	}
	return nil
}

func notifyFailure(ctx context.Context, notifier notifications.Service, label string, err error, logger *slog.Logger) {
	if notifier == nil {
		return
	}
	if nerr := notifier.NotifyError(context.WithoutCancel(ctx), err, label); nerr != nil {
		logger.Debug("error notification failed", logging.Error(nerr))
	}
}

// startupRunner performs the one-time startup work under the daemon lock
// before handing over to the loop.
type startupRunner struct {
	before func(ctx context.Context)
	loop   daemon.Runner
}

func (r startupRunner) Run(ctx context.Context) error {
	if r.before != nil {
		r.before(ctx)
	}
	return r.loop.Run(ctx)
}

func newRunLogger(cfg *config.Config, opts Options, logPath, eventsPath string) (*slog.Logger, io.Closer, error) {
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	outputs := []string{"stdout", logPath}
	errOutputs := []string{"stderr", logPath}
	if opts.Quiet {
		outputs = []string{logPath}
		errOutputs = []string{logPath}
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: errOutputs,
		Development:      opts.Development,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	events, closer, err := logging.OpenJSONFile(eventsPath, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to open event log: %v\n", err)
		return logger, io.NopCloser(nil), nil
	}
	return logging.TeeLogger(logger, events), closer, nil
}

func clearLocks(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	result := catalog.ClearLocks(ctx, cfg.Paths.RootDir, cfg.Uploader.MaxSessionDepth, logger)
	for _, sweepErr := range result.Errors {
		logging.WarnWithContext(logger, "failed to remove stale lock", "lock_clear_failed",
			logging.String("path", sweepErr.Path),
			logging.Error(sweepErr.Error),
			logging.String(logging.FieldImpact, "session stays locked and is not uploaded"),
		)
	}
}

func logPreflight(logger *slog.Logger, results []preflight.Result) {
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight check passed",
				logging.String(logging.FieldEventType, "preflight_passed"),
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "uploads may fail until this is fixed"),
		)
	}
}
