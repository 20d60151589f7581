package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/pra-edge/internal/models"
)

func newCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect sync watermarks",
	}
	cmd.AddCommand(newCheckpointListCmd(), newCheckpointShowCmd())
	return cmd
}

func newCheckpointListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the watermark of every source",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.ephemeral {
				log.Warn("In-memory checkpoints are empty until a sync runs in this process")
			}

			wms, err := a.checkpoints.Sources(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tWATERMARK\tUPDATED")
			for _, wm := range wms {
				fmt.Fprintf(w, "%s\t%s\t%s\n", wm.Source, wm.Watermark.UTC().Format(time.RFC3339Nano), wm.UpdatedAt.UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func newCheckpointShowCmd() *cobra.Command {
	var player, team string

	cmd := &cobra.Command{
		Use:   "show <source>",
		Short: "Show one source watermark, or one player's with --player and --team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			source := args[0]
			var (
				wm time.Time
				ok bool
			)
			if player != "" || team != "" {
				if player == "" || team == "" {
					return fmt.Errorf("--player and --team must be given together")
				}
				key := models.NewIdentityKey(player, team)
				wm, ok, err = a.checkpoints.EntityWatermark(ctx, source, key)
				source = source + " " + key.String()
			} else {
				wm, ok, err = a.checkpoints.Watermark(ctx, source)
			}
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("%s: no watermark (next sync is a full fetch)\n", source)
				return nil
			}
			fmt.Printf("%s: %s\n", source, wm.UTC().Format(time.RFC3339Nano))
			return nil
		},
	}

	cmd.Flags().StringVar(&player, "player", "", "Player name for an entity watermark")
	cmd.Flags().StringVar(&team, "team", "", "Team abbreviation for an entity watermark")
	return cmd
}
