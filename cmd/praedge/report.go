package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/pra-edge/internal/backtest"
)

func newReportCmd() *cobra.Command {
	var (
		latest bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "report [file.json]",
		Short: "Re-render a stored backtest report",
		Long: `Reads a JSON backtest report written by "praedge backtest" and prints it as
text, csv, json or yaml. With --latest the newest report in the configured
output directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			switch {
			case len(args) == 1:
				path = args[0]
			case latest:
				p, err := latestReport(cfg.Report.OutputDir)
				if err != nil {
					return err
				}
				path = p
			default:
				return fmt.Errorf("a report file or --latest is required")
			}

			r, err := readResult(path)
			if err != nil {
				return err
			}
			out, err := renderResult(r, format)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}

	cmd.Flags().BoolVar(&latest, "latest", false, "Use the newest report in the output directory")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, csv, json, yaml")
	return cmd
}

func readResult(path string) (*backtest.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r backtest.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}

// latestReport picks the lexically greatest backtest_*.json; the names embed
// a UTC timestamp.
func latestReport(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "backtest_*.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no reports found in %s", dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

func renderResult(r *backtest.Result, format string) ([]byte, error) {
	switch format {
	case "text":
		return []byte(backtest.RenderText(r)), nil
	case "csv":
		return backtest.RenderCSV(r)
	case "json":
		return backtest.RenderJSON(r)
	case "yaml":
		// round-trip through JSON so yaml keys match the json tags
		data, err := backtest.RenderJSON(r)
		if err != nil {
			return nil, err
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
