package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var events bool
	var filter logs.EventFilter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon's current log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !events && !filter.Empty() {
				return fmt.Errorf("--event and --level require --events")
			}

			var path string
			if events {
				path, err = logs.Latest(cfg.Paths.LogDir, "courier-*.events")
			} else {
				path, err = logs.Current(cfg.Paths.LogDir)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tail, offset, err := logs.Tail(path, lines, filter.Match)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return logs.Follow(followCtx, path, offset, 500*time.Millisecond, func(line string) {
				if filter.Match(line) {
					fmt.Fprintln(out, line)
				}
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().BoolVar(&events, "events", false, "Read the JSON events file instead of the text log")
	cmd.Flags().StringVar(&filter.EventType, "event", "", "Only show events with this event_type")
	cmd.Flags().StringVar(&filter.Level, "level", "", "Only show events at this level")
	return cmd
}
