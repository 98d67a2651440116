package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"courier/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var limit int
	var key string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent upload attempts from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Ledger.Enabled {
				return errors.New("upload ledger is disabled (set ledger.enabled = true)")
			}
			if _, err := os.Stat(cfg.Ledger.Path); err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "No uploads recorded yet")
					return nil
				}
				return err
			}
			store, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			var attempts []ledger.Attempt
			if key != "" {
				attempts, err = store.History(cmd.Context(), key)
			} else {
				attempts, err = store.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, attempts)
			}

			out := cmd.OutOrStdout()
			if len(attempts) == 0 {
				fmt.Fprintln(out, "No uploads recorded yet")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(attempts))
			for _, a := range attempts {
				code := ""
				if a.StatusCode != 0 {
					code = strconv.Itoa(a.StatusCode)
				}
				rows = append(rows, []string{
					humanize.RelTime(a.AttemptedAt, now, "ago", "from now"),
					a.Key,
					a.Outcome,
					code,
					humanize.Bytes(uint64(max(a.Size, 0))),
					a.Duration.Round(time.Millisecond).String(),
					a.Error,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"When", "File", "Outcome", "Code", "Size", "Took", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of attempts to show")
	cmd.Flags().StringVar(&key, "file", "", "Show every attempt for one file key (<session>/<name>)")
	return cmd
}
