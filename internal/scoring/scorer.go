// Package scoring turns point-in-time feature vectors into the probability
// that a player finishes OVER the line.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/pra-edge/internal/config"
	"github.com/yourusername/pra-edge/internal/datasource"
	"github.com/yourusername/pra-edge/internal/features"
	"github.com/yourusername/pra-edge/internal/models"
)

// Scorer is deterministic for a fixed Version.
type Scorer interface {
	Score(ctx context.Context, fv features.FeatureVector) (float64, error)
	Version() string
}

var (
	// ErrScoringFailed wraps any scorer-internal failure
	ErrScoringFailed = errors.New("scoring failed")

	// ErrRemoteUnavailable indicates the remote scoring service is unreachable
	ErrRemoteUnavailable = errors.New("remote scorer unavailable")

	// ErrInvalidResponse indicates a malformed or mismatched remote response
	ErrInvalidResponse = errors.New("invalid response from remote scorer")
)

// CheckProbability rejects NaN, infinities and values outside [0,1].
func CheckProbability(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
		return fmt.Errorf("%w: %v", models.ErrInvalidProbability, p)
	}
	return nil
}

// New builds the configured scorer. A positive cache TTL wraps it in a
// CachedScorer; otherwise it is only instrumented.
func New(cfg config.ScoringConfig, logger *logrus.Logger) (Scorer, error) {
	var (
		s   Scorer
		err error
	)

	switch cfg.Model {
	case "logistic":
		s, err = NewLogisticScorer(cfg.Weights)
	case "margin":
		s = NewMarginScorer()
	case "ensemble":
		s, err = defaultEnsemble(cfg.Weights)
	case "remote":
		client := datasource.NewRateLimitedHTTPClient(datasource.HTTPClientConfig{
			Name:              "scorer",
			Timeout:           10 * time.Second,
			MaxRetries:        2,
			RetryWaitMin:      100 * time.Millisecond,
			RetryWaitMax:      2 * time.Second,
			RateLimit:         50,
			CircuitBreakerMax: 5,
			CooldownPeriod:    30 * time.Second,
		}, logger)
		s = NewHTTPScorer(client, cfg.RemoteURL, cfg.RemoteVersion)
	default:
		return nil, fmt.Errorf("unknown scoring model: %s", cfg.Model)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s scorer: %w", cfg.Model, err)
	}

	if cfg.CacheTTLSeconds > 0 {
		if pin, ok := s.(pinner); ok && !pin.Pinned() && logger != nil {
			logger.WithField("model", cfg.Model).Warn("Remote model version not pinned, score cache disabled")
		}
		cache := NewScoreCache(time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.CacheMaxSize)
		return NewCachedScorer(s, cache, logger), nil
	}
	return Instrument(s), nil
}

// defaultEnsemble blends the logistic and margin scorers. Weights may carry
// "logistic_weight" and "margin_weight"; the remaining entries configure
// the logistic coefficients.
func defaultEnsemble(weights map[string]float64) (*Ensemble, error) {
	coef := make(map[string]float64, len(weights))
	lw, mw := 0.5, 0.5
	for k, v := range weights {
		switch k {
		case "logistic_weight":
			lw = v
		case "margin_weight":
			mw = v
		default:
			coef[k] = v
		}
	}

	logistic, err := NewLogisticScorer(coef)
	if err != nil {
		return nil, err
	}
	return NewEnsemble(
		Member{Scorer: logistic, Weight: lw},
		Member{Scorer: NewMarginScorer(), Weight: mw},
	)
}
