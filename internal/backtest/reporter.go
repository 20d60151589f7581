package backtest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/pra-edge/internal/calibration"
	"github.com/yourusername/pra-edge/internal/metrics"
)

// ReportError is a failed artifact write. It never invalidates the Result.
type ReportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("failed to write %s report %s: %v", e.Format, e.Path, e.Err)
}

func (e *ReportError) Unwrap() error { return e.Err }

// Artifacts lists the files a Write produced.
type Artifacts struct {
	JSON string `json:"json,omitempty"`
	Text string `json:"text,omitempty"`
	CSV  string `json:"csv,omitempty"`
}

// Paths returns the non-empty artifact paths.
func (a Artifacts) Paths() []string {
	var out []string
	for _, p := range []string{a.JSON, a.Text, a.CSV} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RenderText formats a result for terminal output
func RenderText(r *Result) string {
	m := r.Metrics
	var b strings.Builder

	b.WriteString("Backtest Report\n")
	b.WriteString("===============\n")
	fmt.Fprintf(&b, "Run:            %s\n", r.RunID)
	fmt.Fprintf(&b, "Model:          %s\n", r.ModelVersion)
	fmt.Fprintf(&b, "Range:          %s to %s\n", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Recommendation: %s\n", r.Verdict.Recommendation)
	for _, reason := range r.Verdict.Reasons {
		fmt.Fprintf(&b, "  - %s\n", reason)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Tuples:         %d (resolved %d, skipped %d)\n", m.Tuples, m.Resolved, m.Skipped)
	fmt.Fprintf(&b, "Record:         %s\n", m.Record())
	fmt.Fprintf(&b, "Accuracy:       %s\n", pct(m.Accuracy))
	fmt.Fprintf(&b, "HC accuracy:    %s (%d picks at >= %.2f)\n", pct(m.HighConfidenceAccuracy), m.HighConfidencePicks, m.HighConfidenceThreshold)
	fmt.Fprintf(&b, "HC picks/day:   min %d, max %d, mean %.2f, %.0f%% of %d days in %d-%d\n",
		m.PicksPerDay.Min, m.PicksPerDay.Max, m.PicksPerDay.Mean,
		m.PicksPerDay.InBandFraction*100, m.PicksPerDay.Days, m.PicksPerDay.BandMin, m.PicksPerDay.BandMax)
	fmt.Fprintf(&b, "Brier:          %s\n", num(m.Brier))
	fmt.Fprintf(&b, "Log loss:       %s\n", num(m.LogLoss))
	fmt.Fprintf(&b, "ECE:            %s\n", num(r.Calibration.ECE))

	if m.Skipped > 0 {
		b.WriteString("\nSkipped by reason\n")
		for _, reason := range SkipReasons {
			if n := m.SkippedByReason[string(reason)]; n > 0 {
				fmt.Fprintf(&b, "  %-20s %d\n", reason, n)
			}
		}
	}

	if len(m.BySeason) > 0 {
		b.WriteString("\nBy season\n")
		for _, s := range m.BySeason {
			fmt.Fprintf(&b, "  %s  %d-%d  acc %s  hc %s (%d)\n",
				s.Season, s.Wins, s.Resolved-s.Wins, pct(s.Accuracy), pct(s.HighConfidenceAccuracy), s.HighConfidencePicks)
		}
	}

	cal := r.Calibration
	fmt.Fprintf(&b, "\nCalibration (tolerance %.2f, min samples %d, well calibrated: %t)\n",
		cal.Tolerance, cal.MinSamples, cal.WellCalibrated)
	fmt.Fprintf(&b, "  %-13s %6s %6s %9s %9s %7s  %s\n", "bucket", "n", "wins", "win rate", "midpoint", "gap", "status")
	for _, bk := range cal.Buckets {
		status := "insufficient"
		switch {
		case bk.Calibrated:
			status = "calibrated"
		case bk.Definitive:
			status = "miscalibrated"
		}
		fmt.Fprintf(&b, "  [%.2f,%.2f%s %6d %6d %9s %9.2f %7s  %s\n",
			bk.Lower, bk.Upper, closer(bk.Upper), bk.Count, bk.Wins, pct(bk.WinRate), bk.Midpoint, num(bk.Gap), status)
	}
	return b.String()
}

// RenderWalkForwardText summarizes a windowed run, one line per window.
func RenderWalkForwardText(wf *WalkForwardResult) string {
	var b strings.Builder

	b.WriteString("Walk-Forward Report\n")
	b.WriteString("===================\n")
	fmt.Fprintf(&b, "Run:   %s\n", wf.RunID)
	fmt.Fprintf(&b, "Model: %s\n", wf.ModelVersion)
	fmt.Fprintf(&b, "Range: %s to %s\n", wf.StartDate.Format("2006-01-02"), wf.EndDate.Format("2006-01-02"))
	for _, w := range wf.Windows {
		m := w.Result.Metrics
		fmt.Fprintf(&b, "  #%-3d %s to %s  %-7s acc %-7s hc %s (%d)\n",
			w.WindowID, w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"),
			m.Record(), pct(m.Accuracy), pct(m.HighConfidenceAccuracy), m.HighConfidencePicks)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Pooled accuracy:    %s\n", pct(wf.Accuracy))
	fmt.Fprintf(&b, "Pooled HC accuracy: %s\n", pct(wf.HCAccuracy))
	fmt.Fprintf(&b, "Consistency:        %.2f\n", wf.ConsistencyScore)
	fmt.Fprintf(&b, "Accuracy std dev:   %.4f\n", wf.AccuracyStdDev)
	fmt.Fprintf(&b, "ECE:                %s\n", num(wf.Calibration.ECE))
	fmt.Fprintf(&b, "Pooled verdict:     %s\n", wf.Verdict.Recommendation)
	for _, reason := range wf.Verdict.Reasons {
		fmt.Fprintf(&b, "  - %s\n", reason)
	}
	fmt.Fprintf(&b, "Recommendation:     %s\n", wf.Recommendation)
	return b.String()
}

// RenderJSON is the machine-readable artifact.
func RenderJSON(r *Result) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// RenderCSV exports the calibration bucket table for spreadsheets
func RenderCSV(r *Result) ([]byte, error) {
	return renderBucketsCSV(r.Calibration)
}

// RenderWalkForwardJSON is the pooled walk-forward artifact, windows included.
func RenderWalkForwardJSON(wf *WalkForwardResult) ([]byte, error) {
	return json.MarshalIndent(wf, "", "  ")
}

func renderBucketsCSV(report calibration.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"lower", "upper", "count", "wins", "win_rate", "midpoint", "mean_confidence", "gap", "definitive", "calibrated"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, bk := range report.Buckets {
		row := []string{
			strconv.FormatFloat(bk.Lower, 'f', 2, 64),
			strconv.FormatFloat(bk.Upper, 'f', 2, 64),
			strconv.Itoa(bk.Count),
			strconv.Itoa(bk.Wins),
			csvFloat(bk.WinRate),
			strconv.FormatFloat(bk.Midpoint, 'f', 2, 64),
			csvFloat(bk.MeanConfidence),
			csvFloat(bk.Gap),
			strconv.FormatBool(bk.Definitive),
			strconv.FormatBool(bk.Calibrated),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Reporter persists report artifacts.
type Reporter struct {
	dir    string
	logger *logrus.Entry
}

// NewReporter creates a reporter writing under dir
func NewReporter(dir string, logger *logrus.Logger) *Reporter {
	return &Reporter{dir: dir, logger: logger.WithField("component", "reporter")}
}

// ReportBaseName is backtest_<UTC stamp>_<first 8 of run id>.
func ReportBaseName(r *Result, now time.Time) string {
	return fmt.Sprintf("backtest_%s_%s", now.UTC().Format("20060102T150405Z"), r.RunID.String()[:8])
}

// WalkForwardBaseName is walkforward_<UTC stamp>_<first 8 of run id>.
func WalkForwardBaseName(wf *WalkForwardResult, now time.Time) string {
	return fmt.Sprintf("walkforward_%s_%s", now.UTC().Format("20060102T150405Z"), wf.RunID.String()[:8])
}

// Write renders and writes all three artifacts. Each file is created
// exclusively; an existing file is an error, never overwritten. Failures
// are returned as joined *ReportError values after attempting every format.
func (rp *Reporter) Write(r *Result, now time.Time) (Artifacts, error) {
	return rp.writeSet(ReportBaseName(r, now),
		func() ([]byte, error) { return RenderJSON(r) },
		func() ([]byte, error) { return []byte(RenderText(r)), nil },
		func() ([]byte, error) { return RenderCSV(r) },
	)
}

// WriteWalkForward persists the pooled walk-forward result the same way:
// JSON with every window, the text summary and the pooled bucket table.
func (rp *Reporter) WriteWalkForward(wf *WalkForwardResult, now time.Time) (Artifacts, error) {
	return rp.writeSet(WalkForwardBaseName(wf, now),
		func() ([]byte, error) { return RenderWalkForwardJSON(wf) },
		func() ([]byte, error) { return []byte(RenderWalkForwardText(wf)), nil },
		func() ([]byte, error) { return renderBucketsCSV(wf.Calibration) },
	)
}

func (rp *Reporter) writeSet(name string, renderJSON, renderText, renderCSV func() ([]byte, error)) (Artifacts, error) {
	if err := os.MkdirAll(rp.dir, 0o755); err != nil {
		return Artifacts{}, &ReportError{Format: "dir", Path: rp.dir, Err: err}
	}
	base := filepath.Join(rp.dir, name)

	var (
		out  Artifacts
		errs []error
	)
	write := func(format, path string, render func() ([]byte, error)) string {
		data, err := render()
		if err == nil {
			err = writeExclusive(path, data)
		}
		if err != nil {
			metrics.RecordReportArtifact(format, "error")
			rp.logger.WithError(err).WithField("path", path).Error("Report write failed")
			errs = append(errs, &ReportError{Format: format, Path: path, Err: err})
			return ""
		}
		metrics.RecordReportArtifact(format, "success")
		return path
	}

	out.JSON = write("json", base+".json", renderJSON)
	out.Text = write("text", base+".txt", renderText)
	out.CSV = write("csv", base+".csv", renderCSV)

	if len(errs) == 0 {
		rp.logger.WithField("base", base).Info("Report written")
	}
	return out, errors.Join(errs...)
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func pct(f *float64) string {
	if f == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *f*100)
}

func num(f *float64) string {
	if f == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *f)
}

func csvFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 6, 64)
}

func closer(upper float64) string {
	if upper >= 1 {
		return "]"
	}
	return ")"
}
