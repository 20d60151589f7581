package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/pra-edge/internal/models"
	"gopkg.in/yaml.v3"
)

// fileRecord is the on-disk layout of <dir>/<source>.yaml.
type fileRecord struct {
	Source    string            `yaml:"source"`
	Watermark string            `yaml:"watermark,omitempty"`
	UpdatedAt string            `yaml:"updated_at,omitempty"`
	Entities  map[string]string `yaml:"entities,omitempty"`
}

// FileStore keeps one small YAML document per source. Writes go to a temp
// file that is fsynced and renamed over the old one, so a crash leaves either
// the previous or the new checkpoint, never a torn one.
type FileStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) Watermark(_ context.Context, source string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(source)
	if err != nil {
		return time.Time{}, false, err
	}
	return parseStamp(rec.Watermark)
}

func (s *FileStore) Advance(ctx context.Context, source string, wm time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(source)
	if err != nil {
		return err
	}
	current, ok, err := parseStamp(rec.Watermark)
	if err != nil {
		return err
	}
	if err := checkAdvance(source, "", current, ok, wm); err != nil {
		return err
	}

	rec.Watermark = formatStamp(wm)
	rec.UpdatedAt = formatStamp(s.now())
	return s.write(rec)
}

func (s *FileStore) EntityWatermark(_ context.Context, source string, key models.IdentityKey) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(source)
	if err != nil {
		return time.Time{}, false, err
	}
	return parseStamp(rec.Entities[key.String()])
}

func (s *FileStore) AdvanceEntity(ctx context.Context, source string, key models.IdentityKey, wm time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(source)
	if err != nil {
		return err
	}
	entity := key.String()
	current, ok, err := parseStamp(rec.Entities[entity])
	if err != nil {
		return err
	}
	if err := checkAdvance(source, entity, current, ok, wm); err != nil {
		return err
	}

	if rec.Entities == nil {
		rec.Entities = make(map[string]string)
	}
	rec.Entities[entity] = formatStamp(wm)
	rec.UpdatedAt = formatStamp(s.now())
	return s.write(rec)
}

func (s *FileStore) Sources(_ context.Context) ([]Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoint files: %w", err)
	}

	var out []Watermark
	for _, p := range paths {
		source := strings.TrimSuffix(filepath.Base(p), ".yaml")
		rec, err := s.read(source)
		if err != nil {
			return nil, err
		}
		wm, ok, err := parseStamp(rec.Watermark)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		updated, _, _ := parseStamp(rec.UpdatedAt)
		out = append(out, Watermark{Source: source, Watermark: wm, UpdatedAt: updated})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

func (s *FileStore) path(source string) (string, error) {
	if source == "" || strings.ContainsAny(source, `/\`) || source == "." || source == ".." {
		return "", fmt.Errorf("invalid checkpoint source name %q", source)
	}
	return filepath.Join(s.dir, source+".yaml"), nil
}

func (s *FileStore) read(source string) (*fileRecord, error) {
	p, err := s.path(source)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return &fileRecord{Source: source}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", source, err)
	}

	rec := &fileRecord{}
	if err := yaml.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", source, err)
	}
	rec.Source = source
	return rec, nil
}

func (s *FileStore) write(rec *fileRecord) error {
	p, err := s.path(rec.Source)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, rec.Source+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

func formatStamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseStamp(s string) (time.Time, bool, error) {
	if s == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse checkpoint timestamp %q: %w", s, err)
	}
	return t, true, nil
}
