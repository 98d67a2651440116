package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"courier/internal/daemonrun"
	"courier/internal/logging"
)

func newMarkCommand(ctx *commandContext) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "mark <path>...",
		Short: "Mark files as uploaded so the daemon skips them",
		Args:  cobra.MinimumNArgs(1),
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

			out := cmd.OutOrStdout()
			var failed int
			for _, arg := range args {
				path, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", arg, err)
				}
				if check {
					fmt.Fprintf(out, "%s: marked=%s\n", path, yesNo(markers.IsMarked(path)))
					continue
				}
				info, err := os.Stat(path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed++
					continue
				}
				if info.IsDir() {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: is a directory\n", path)
					failed++
					continue
				}
				if err := markers.Mark(path); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "Marked %s\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d paths could not be marked", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Report whether each path is marked without changing it")
	return cmd
}
