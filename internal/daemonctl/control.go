package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"courier/internal/config"
	"courier/internal/daemon"
	"courier/internal/daemonrun"
)

const pollInterval = 100 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// ErrDaemonNotRunning indicates no process holds the daemon lock.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Launch starts "<executable> run" in its own session, detached from the
// caller's terminal.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	var args []string
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	args = append(args, "run", "--quiet")
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// EnsureStarted launches the daemon unless one already holds the lock, then
// waits up to waitTimeout for the new process to take it.
func EnsureStarted(cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	running, pid, err := ProcessInfo(cfg)
	if err != nil {
		return StartResult{}, err
	}
	if running {
		return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	if err := waitForLock(cfg.LockPath(), true, waitTimeout); err != nil {
		return StartResult{}, fmt.Errorf("daemon did not start (see logs in %s): %w", cfg.Paths.LogDir, err)
	}
	_, pid, _ = ProcessInfo(cfg)
	return StartResult{State: StartStateStarted, PID: pid}, nil
}

// WaitForShutdown waits until no process holds the daemon lock.
func WaitForShutdown(lockPath string, timeout time.Duration) error {
	if err := waitForLock(lockPath, false, timeout); err != nil {
		return fmt.Errorf("daemon did not stop: %w", err)
	}
	return nil
}

func waitForLock(lockPath string, wantHeld bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		held, err := daemon.LockHeld(lockPath)
		if err != nil {
			return err
		}
		if held == wantHeld {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout after %s", timeout)
		}
		time.Sleep(pollInterval)
	}
}

// ProcessInfo reports whether a daemon holds the lock and, when the pid file
// is readable, its pid.
func ProcessInfo(cfg *config.Config) (bool, int, error) {
	held, err := daemon.LockHeld(cfg.LockPath())
	if err != nil || !held {
		return false, 0, err
	}
	pid, err := daemonrun.ReadPIDFile(cfg.PIDPath())
	if err != nil {
		return true, 0, nil
	}
	return true, pid, nil
}

// ForceKillProcess sends SIGKILL to pid and removes the pid file.
func ForceKillProcess(pidPath string, pid int) (int, error) {
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return pid, nil
}

// StopAndTerminate sends SIGTERM to the daemon and force-kills it if the lock
// is still held after gracePeriod. The daemon finishes an in-flight transfer
// before exiting, so gracePeriod should cover one upload.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	running, pid, err := ProcessInfo(cfg)
	if err != nil {
		return StopResult{}, err
	}
	if !running {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("daemon holds %s but pid file %s is unreadable", cfg.LockPath(), cfg.PIDPath())
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if err := WaitForShutdown(cfg.LockPath(), gracePeriod); err == nil {
		return result, nil
	}

	if _, err := ForceKillProcess(cfg.PIDPath(), pid); err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	result.ForcedKill = true
	return result, nil
}
