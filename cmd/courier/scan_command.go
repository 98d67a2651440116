package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"courier/internal/catalog"
	"courier/internal/daemonrun"
	"courier/internal/logging"
	"courier/internal/scheduler"
)

type scanEntry struct {
	Position int    `json:"position"`
	Key      string `json:"key"`
	Path     string `json:"path"`
	Tier     string `json:"tier"`
	Size     int64  `json:"size"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var fullFidelity bool
	var limit int

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List pending files in the order they would be uploaded",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			markers, closeMarkers, err := daemonrun.OpenMarkers(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			defer closeMarkers()

			scanner := catalog.NewScanner(cfg.Paths.RootDir, daemonrun.Priorities(cfg.Priority), markers,
				catalog.WithMaxDepth(cfg.Uploader.MaxSessionDepth))
			files := scanner.Scan(cmd.Context())
			order := scheduler.Order(files, fullFidelity)
			if limit > 0 && len(order) > limit {
				order = order[:limit]
			}

			entries := make([]scanEntry, 0, len(order))
			for i, f := range order {
				entries = append(entries, scanEntry{
					Position: i + 1,
					Key:      f.Key(),
					Path:     f.Path,
					Tier:     f.Class.String(),
					Size:     f.Size,
				})
			}
			if jsonOut {
				return writeJSON(cmd, entries)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Nothing to upload")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{strconv.Itoa(e.Position), e.Key, e.Tier, humanize.Bytes(uint64(e.Size))})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "File", "Tier", "Size"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight}))
			bytes, count := scanner.Counters()
			fmt.Fprintf(out, "%d pending, immediate queue %d MB in %d files\n", len(entries), bytes/1_000_000, count)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&fullFidelity, "full-fidelity", true, "Include full-fidelity logs and camera files")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many files")
	return cmd
}
