package backtest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
	"github.com/yourusername/pra-edge/internal/models"
)

// predictionRecord is the parquet row for one resolved prediction.
type predictionRecord struct {
	ID           string  `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Player       string  `parquet:"name=player, type=BYTE_ARRAY, convertedtype=UTF8"`
	Team         string  `parquet:"name=team, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventID      string  `parquet:"name=event_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Bookmaker    string  `parquet:"name=bookmaker, type=BYTE_ARRAY, convertedtype=UTF8"`
	AsOf         int64   `parquet:"name=as_of, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Line         float64 `parquet:"name=line, type=DOUBLE"`
	Probability  float64 `parquet:"name=probability, type=DOUBLE"`
	Label        string  `parquet:"name=label, type=BYTE_ARRAY, convertedtype=UTF8"`
	Confidence   float64 `parquet:"name=confidence, type=DOUBLE"`
	ModelVersion string  `parquet:"name=model_version, type=BYTE_ARRAY, convertedtype=UTF8"`
	Actual       float64 `parquet:"name=actual, type=DOUBLE"`
	ActualLabel  string  `parquet:"name=actual_label, type=BYTE_ARRAY, convertedtype=UTF8"`
	Correct      bool    `parquet:"name=correct, type=BOOLEAN"`
}

type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }

// EncodePredictionsParquet encodes resolved predictions as snappy parquet.
// Open predictions are rejected.
func EncodePredictionsParquet(preds []*models.Prediction) ([]byte, error) {
	records := make([]predictionRecord, 0, len(preds))
	for _, p := range preds {
		if !p.IsResolved() || p.ActualValue == nil || p.ActualLabel == nil {
			return nil, fmt.Errorf("%w: %s", models.ErrUnresolved, p.ID)
		}
		records = append(records, predictionRecord{
			ID:           p.ID.String(),
			Player:       p.Key.Name,
			Team:         p.Key.Team,
			EventID:      p.EventID,
			Bookmaker:    p.Bookmaker,
			AsOf:         p.AsOf.UnixMilli(),
			Line:         p.Line,
			Probability:  p.Probability,
			Label:        string(p.Label),
			Confidence:   p.Confidence,
			ModelVersion: p.ModelVersion,
			Actual:       *p.ActualValue,
			ActualLabel:  string(*p.ActualLabel),
			Correct:      p.IsCorrect(),
		})
	}

	mem := newMemFile()
	pw, err := writer.NewParquetWriter(mem, new(predictionRecord), 1)
	if err != nil {
		return nil, fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range records {
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write prediction record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize predictions parquet: %w", err)
	}
	return mem.buffer.Bytes(), nil
}

// ExportPredictionsParquet writes the run's resolved predictions next to the
// other artifacts as <base>.parquet, created exclusively like the reports.
func ExportPredictionsParquet(r *Result, dir, base string) (string, error) {
	data, err := EncodePredictionsParquet(r.Predictions)
	if err != nil {
		return "", &ReportError{Format: "parquet", Path: dir, Err: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &ReportError{Format: "parquet", Path: dir, Err: err}
	}
	path := filepath.Join(dir, base+".parquet")
	if err := writeExclusive(path, data); err != nil {
		return "", &ReportError{Format: "parquet", Path: path, Err: err}
	}
	return path, nil
}
