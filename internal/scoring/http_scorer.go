package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/yourusername/pra-edge/internal/datasource"
	"github.com/yourusername/pra-edge/internal/features"
)

// ScoreRequest represents the remote scoring payload
type ScoreRequest struct {
	ModelVersion string             `json:"model_version,omitempty"`
	Features     map[string]float64 `json:"features"`
}

// ScoreResponse represents the remote scoring response
type ScoreResponse struct {
	Probability  float64 `json:"probability"`
	ModelVersion string  `json:"model_version"`
}

// HTTPScorer delegates to an external model service over JSON.
type HTTPScorer struct {
	client  *datasource.RateLimitedHTTPClient
	baseURL string
	version string

	mu     sync.RWMutex
	served string
}

// NewHTTPScorer creates a remote scorer. A non-empty version pins the model:
// any other served version is rejected. An unpinned scorer accepts whatever
// the service runs and reports the last version it served.
func NewHTTPScorer(client *datasource.RateLimitedHTTPClient, baseURL, version string) *HTTPScorer {
	return &HTTPScorer{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
	}
}

// Pinned reports whether a model version was configured. Unpinned scores can
// change under the same Version after a redeploy and must not be cached.
func (s *HTTPScorer) Pinned() bool { return s.version != "" }

func (s *HTTPScorer) Version() string {
	if s.Pinned() {
		return s.version
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.served == "" {
		return "remote"
	}
	return "remote@" + s.served
}

func (s *HTTPScorer) Score(ctx context.Context, fv features.FeatureVector) (float64, error) {
	names := features.Names()
	values := fv.Values()
	payload := ScoreRequest{ModelVersion: s.version, Features: make(map[string]float64, len(names))}
	for i, n := range names {
		payload.Features[n] = values[i]
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := s.client.Post(ctx, s.baseURL+"/api/v1/score", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("%w: status %d: %s", ErrRemoteUnavailable, resp.StatusCode, string(msg))
	}

	var out ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if s.Pinned() && out.ModelVersion != "" && out.ModelVersion != s.version {
		return 0, fmt.Errorf("%w: served version %s, expected %s", ErrInvalidResponse, out.ModelVersion, s.version)
	}
	if err := CheckProbability(out.Probability); err != nil {
		return 0, err
	}
	if !s.Pinned() && out.ModelVersion != "" {
		s.mu.Lock()
		s.served = out.ModelVersion
		s.mu.Unlock()
	}
	return out.Probability, nil
}
