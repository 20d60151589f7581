package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/pra-edge/internal/models"
)

func newPredictCmd() *cobra.Command {
	var noSync bool

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score upcoming lines and store high-confidence picks",
		Long: `Pulls every source, then scores each line scheduled within the prediction
horizon using only data available now. Picks whose confidence clears
predict.min_confidence are stored as open predictions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.ephemeral {
				if err := a.hydrate(ctx); err != nil {
					return err
				}
			} else if !noSync {
				srcs, err := a.sources()
				if err != nil {
					return err
				}
				if _, err := a.sync.PullAll(ctx, srcs); err != nil {
					log.WithError(err).Warn("Some sources failed to sync, predicting on existing data")
				}
			}

			p, err := a.predictor()
			if err != nil {
				return err
			}
			summary, err := p.Predict(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Candidates %d, scored %d, below threshold %d, duplicates %d\n",
				summary.Candidates, summary.Scored, summary.BelowThreshold, summary.Duplicates)
			printPredictions(summary.Predictions)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSync, "no-sync", false, "Skip the pre-prediction source pull")
	return cmd
}

func newResolveCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Settle open predictions and print the recent record",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.hydrate(ctx); err != nil {
				return err
			}

			p, err := a.predictor()
			if err != nil {
				return err
			}
			summary, err := p.Resolve(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Resolved %d (%d correct), pending %d, conflicts %d\n",
				summary.Resolved, summary.Correct, summary.Pending, summary.Conflict)

			today := time.Now().UTC().Truncate(24 * time.Hour)
			records, err := p.Results(ctx, today.AddDate(0, 0, -days), today.AddDate(0, 0, 1))
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tWINS\tLOSSES\tWIN%")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\n", r.Date, r.Wins, r.Losses, r.WinPct*100)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&days, "days", 14, "Days of history to show")
	return cmd
}

func printPredictions(preds []*models.Prediction) {
	if len(preds) == 0 {
		return
	}
	sorted := append([]*models.Prediction(nil), preds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLAYER\tTEAM\tEVENT\tBOOK\tLINE\tPICK\tCONF\tALT LINE")
	for _, p := range sorted {
		alt := "-"
		if p.AlternateLine != nil {
			alt = fmt.Sprintf("%.1f", *p.AlternateLine)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t%s\t%.3f\t%s\n",
			p.Key.Name, p.Key.Team, p.EventID, p.Bookmaker, p.Line, p.Label, p.Confidence, alt)
	}
	w.Flush()
}
