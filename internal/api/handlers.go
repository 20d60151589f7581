package api

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/yourusername/pra-edge/internal/models"
)

const dateLayout = "2006-01-02"

// ReportFile describes one artifact in the report directory.
type ReportFile struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

var reportTypes = map[string]string{
	".json":    "application/json",
	".txt":     "text/plain; charset=utf-8",
	".csv":     "text/csv",
	".parquet": "application/octet-stream",
}

func (s *Server) getCheckpoints(w http.ResponseWriter, r *http.Request) {
	wms, err := s.cfg.Checkpoints.Sources(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to list checkpoints")
		writeError(w, http.StatusInternalServerError, "failed to list checkpoints")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checkpoints": wms, "count": len(wms)})
}

func (s *Server) getOpenPredictions(w http.ResponseWriter, r *http.Request) {
	preds, err := s.cfg.Predictions.ListOpen(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to list open predictions")
		writeError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}
	writePredictions(w, preds)
}

func (s *Server) getResolvedPredictions(w http.ResponseWriter, r *http.Request) {
	start, end, ok := dateRange(w, r)
	if !ok {
		return
	}
	preds, err := s.cfg.Predictions.ListResolved(r.Context(), start, end)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list resolved predictions")
		writeError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}
	writePredictions(w, preds)
}

func writePredictions(w http.ResponseWriter, preds []*models.Prediction) {
	if preds == nil {
		preds = []*models.Prediction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": preds, "count": len(preds)})
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	start, end, ok := dateRange(w, r)
	if !ok {
		return
	}
	days, err := s.cfg.Results.Results(r.Context(), start, end)
	if err != nil {
		s.logger.WithError(err).Error("Failed to compute results")
		writeError(w, http.StatusInternalServerError, "failed to compute results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "count": len(days)})
}

// dateRange parses ?start=&end= as inclusive UTC days, defaulting to the
// last 30 days.
func dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start, end := today.AddDate(0, 0, -30), today

	q := r.URL.Query()
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
		start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
		end = t
	}
	if start.After(end) {
		writeError(w, http.StatusBadRequest, "start is after end")
		return time.Time{}, time.Time{}, false
	}
	return start, end.AddDate(0, 0, 1), true
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.cfg.ReportDir)
	if err != nil && !os.IsNotExist(err) {
		s.logger.WithError(err).Error("Failed to read report directory")
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	files := make([]ReportFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || reportTypes[filepath.Ext(e.Name())] == "" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, ReportFile{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime().UTC()})
	}
	// newest first; names embed the UTC timestamp
	sort.Slice(files, func(i, j int) bool { return files[i].Name > files[j].Name })
	writeJSON(w, http.StatusOK, map[string]any{"reports": files, "count": len(files)})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		writeError(w, http.StatusBadRequest, "invalid report name")
		return
	}
	contentType := reportTypes[filepath.Ext(name)]
	if contentType == "" {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	data, err := os.ReadFile(filepath.Join(s.cfg.ReportDir, name))
	if os.IsNotExist(err) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("report", name).Error("Failed to read report")
		writeError(w, http.StatusInternalServerError, "failed to read report")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
