package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/daemon"
	"courier/internal/daemonctl"
	"courier/internal/ledger"
	"courier/internal/preflight"
	"courier/internal/status"
)

type statusReport struct {
	Running  bool               `json:"running"`
	PID      int                `json:"pid,omitempty"`
	Snapshot *status.Snapshot   `json:"snapshot,omitempty"`
	Checks   []preflight.Result `json:"checks"`
	History  *ledger.Summary    `json:"history,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, upload, and readiness status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report, err := collectStatus(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			for _, line := range statusLines(report, time.Now(), shouldColorize(out)) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func collectStatus(ctx context.Context, cfg *config.Config) (statusReport, error) {
	report := statusReport{}

	running, pid, err := daemonctl.ProcessInfo(cfg)
	if err != nil {
		return report, err
	}
	report.Running = running
	report.PID = pid

	snap, err := status.ReadFile(cfg.StatusPath())
	switch {
	case err == nil:
		report.Snapshot = &snap
	case errors.Is(err, fs.ErrNotExist):
	default:
		return report, fmt.Errorf("read status: %w", err)
	}

	report.Checks = preflight.RunAll(ctx, cfg)

	if cfg.Ledger.Enabled {
		if _, err := os.Stat(cfg.Ledger.Path); err == nil {
			store, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				return report, err
			}
			defer store.Close()
			summary, err := store.Summary(ctx)
			if err != nil {
				return report, fmt.Errorf("ledger summary: %w", err)
			}
			report.History = &summary
		}
	}
	return report, nil
}

func statusLines(report statusReport, now time.Time, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	if report.Running {
		msg := "Running"
		if report.PID > 0 {
			msg = fmt.Sprintf("Running (pid %d)", report.PID)
		}
		lines = append(lines, renderStatusLine("Courier", statusOK, msg, colorize))
	} else {
		lines = append(lines, renderStatusLine("Courier", statusError, "Not running", colorize))
	}

	if snap := report.Snapshot; snap != nil {
		lines = append(lines, renderValueLine("Device", snap.DeviceID))
		lines = append(lines, renderStatusLine("State", stateKind(snap.State, report.Running), snap.State, colorize))
		lines = append(lines, renderValueLine("Network", snap.Network))
		lines = append(lines, renderValueLine("Immediate queue",
			fmt.Sprintf("%d MB in %d files", snap.ImmediateQueueSize, snap.ImmediateQueueCount)))
		if snap.LastFilename != "" {
			lines = append(lines, renderValueLine("Last upload",
				fmt.Sprintf("%s (%.2f MB/s, %.1fs)", snap.LastFilename, snap.LastSpeed, snap.LastTimeSeconds)))
		}
		lines = append(lines, renderValueLine("Uploaded",
			fmt.Sprintf("%s files, %s", humanize.Comma(snap.UploadedFiles), humanize.Bytes(uint64(max(snap.UploadedBytes, 0))))))
		failureKind := statusOK
		if snap.ConsecutiveFailures > 0 {
			failureKind = statusWarn
		}
		lines = append(lines, renderStatusLine("Failures", failureKind,
			fmt.Sprintf("%d in a row (backoff %.1fs)", snap.ConsecutiveFailures, snap.BackoffSeconds), colorize))
		lines = append(lines, renderValueLine("Updated", humanize.RelTime(snap.UpdatedAt, now, "ago", "from now")))
	} else {
		lines = append(lines, renderStatusLine("State", statusInfo, "no status published yet", colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	for _, check := range report.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}

	if h := report.History; h != nil {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("History", colorize)...)
		lines = append(lines, renderValueLine("Attempts", humanize.Comma(h.Total)))
		outcomes := make([]string, 0, len(h.ByOutcome))
		for name := range h.ByOutcome {
			outcomes = append(outcomes, name)
		}
		slices.Sort(outcomes)
		parts := make([]string, 0, len(outcomes))
		for _, name := range outcomes {
			parts = append(parts, fmt.Sprintf("%s %d", name, h.ByOutcome[name]))
		}
		if len(parts) > 0 {
			lines = append(lines, renderValueLine("Outcomes", strings.Join(parts, ", ")))
		}
		lines = append(lines, renderValueLine("Bytes uploaded", humanize.Bytes(uint64(max(h.UploadedBytes, 0)))))
		if !h.LastSuccess.IsZero() {
			lines = append(lines, renderValueLine("Last success", humanize.RelTime(h.LastSuccess, now, "ago", "from now")))
		}
	}
	return lines
}

func stateKind(state string, running bool) statusKind {
	if !running {
		return statusInfo
	}
	switch state {
	case daemon.StateUploading, daemon.StateIdle:
		return statusOK
	case daemon.StateGated, daemon.StateBackoff:
		return statusWarn
	default:
		return statusInfo
	}
}
