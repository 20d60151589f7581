package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/yourusername/pra-edge/internal/models"
)

// FileSource reads JSON-encoded models.Batch documents from disk. Path may
// be a glob; matching files are read in name order and concatenated.
type FileSource struct {
	name string
	path string
}

// NewFileSource creates a file-backed source
func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

func (s *FileSource) Name() string { return s.name }

// Fetch ignores since; files are small backfills and the synchronizer dedups.
func (s *FileSource) Fetch(ctx context.Context, _ time.Time) (models.Batch, error) {
	paths, err := filepath.Glob(s.path)
	if err != nil {
		return models.Batch{}, fmt.Errorf("invalid path pattern %q: %w", s.path, err)
	}
	if len(paths) == 0 {
		return models.Batch{}, NewDataSourceError(s.name, ErrCodeNotFound, s.path, ErrNotFound)
	}
	sort.Strings(paths)

	var out models.Batch
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return models.Batch{}, err
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return models.Batch{}, fmt.Errorf("failed to read %s: %w", p, err)
		}
		var b models.Batch
		if err := json.Unmarshal(data, &b); err != nil {
			return models.Batch{}, NewDataSourceError(s.name, ErrCodeInvalidData, p, err)
		}

		for _, g := range b.Games {
			g.Key = models.NewIdentityKey(g.Key.Name, g.Key.Team)
			out.Games = append(out.Games, g)
		}
		for _, l := range b.Lines {
			l.Key = models.NewIdentityKey(l.Key.Name, l.Key.Team)
			out.Lines = append(out.Lines, l)
		}
		for _, o := range b.Outcomes {
			o.Key = models.NewIdentityKey(o.Key.Name, o.Key.Team)
			out.Outcomes = append(out.Outcomes, o)
		}
	}
	return out, nil
}
