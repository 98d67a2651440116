package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"courier/internal/config"
	"courier/internal/logging"
)

// ErrAlreadyRunning reports that another daemon holds the lock.
var ErrAlreadyRunning = errors.New("another courier daemon instance is already running")

// Runner is the work a Daemon supervises.
type Runner interface {
	Run(ctx context.Context) error
}

// Daemon runs the upload loop under a single-instance lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	loop   Runner

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	LockFilePath string
	StatusPath   string
}

// New constructs a daemon around loop.
func New(cfg *config.Config, logger *slog.Logger, loop Runner) (*Daemon, error) {
	if cfg == nil || logger == nil || loop == nil {
		return nil, errors.New("daemon requires config, logger, and loop")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		loop:     loop,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the loop in the background.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.err = nil
	d.running.Store(true)

	go func(done chan struct{}) {
		defer close(done)
		if err := d.loop.Run(runCtx); err != nil {
			d.mu.Lock()
			d.err = err
			d.mu.Unlock()
			d.logger.Error("upload loop stopped",
				logging.String(logging.FieldEventType, "loop_failed"),
				logging.Error(err),
			)
		}
	}(d.done)

	d.logger.Info("courier daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Done is closed when the loop returns. It is nil before Start.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Err returns the error the loop stopped with, if any.
func (d *Daemon) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Stop cancels the loop, waits for the current iteration to finish, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return
	}
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("courier daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
		StatusPath:   d.cfg.StatusPath(),
	}
}

// LockHeld reports whether some process holds the daemon lock at path. It
// briefly takes the lock itself when nobody else does.
func LockHeld(path string) (bool, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock: %w", err)
	}
	if !ok {
		return true, nil
	}
	if err := lock.Unlock(); err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}
	return false, nil
}
