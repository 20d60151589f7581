package scoring

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/pra-edge/internal/features"
	"github.com/yourusername/pra-edge/internal/metrics"
)

// CacheKey identifies a score by model version and exact feature values.
type CacheKey struct {
	ModelVersion string
	Features     features.FeatureVector
}

// String returns string representation of cache key
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(k.ModelVersion)
	for _, v := range k.Features.Values() {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}

// ScoreCache provides in-memory caching for probabilities
type ScoreCache struct {
	cache   *cache.Cache
	ttl     time.Duration
	maxSize int

	mu        sync.Mutex
	hitCount  uint64
	missCount uint64
}

// NewScoreCache creates a new score cache. maxSize <= 0 means unbounded.
func NewScoreCache(ttl time.Duration, maxSize int) *ScoreCache {
	return &ScoreCache{
		cache:   cache.New(ttl, ttl*2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves a cached probability
func (sc *ScoreCache) Get(key CacheKey) (float64, bool) {
	v, found := sc.cache.Get(key.String())
	p, ok := v.(float64)

	sc.mu.Lock()
	if found && ok {
		sc.hitCount++
	} else {
		sc.missCount++
	}
	ratio := sc.ratioLocked()
	sc.mu.Unlock()

	metrics.UpdateScoreCacheHitRatio(ratio)
	return p, found && ok
}

// Set stores a probability. When full, expired entries are evicted first and
// the write is dropped if that frees nothing.
func (sc *ScoreCache) Set(key CacheKey, p float64) {
	if sc.maxSize > 0 && sc.cache.ItemCount() >= sc.maxSize {
		sc.cache.DeleteExpired()
		if sc.cache.ItemCount() >= sc.maxSize {
			return
		}
	}
	sc.cache.Set(key.String(), p, sc.ttl)
}

// Clear flushes the entire cache
func (sc *ScoreCache) Clear() {
	sc.cache.Flush()

	sc.mu.Lock()
	sc.hitCount = 0
	sc.missCount = 0
	sc.mu.Unlock()
}

// Stats returns cache statistics
func (sc *ScoreCache) Stats() (hits, misses uint64, ratio float64) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.hitCount, sc.missCount, sc.ratioLocked()
}

func (sc *ScoreCache) ratioLocked() float64 {
	total := sc.hitCount + sc.missCount
	if total == 0 {
		return 0
	}
	return float64(sc.hitCount) / float64(total)
}

// ItemCount returns the number of items in cache
func (sc *ScoreCache) ItemCount() int {
	return sc.cache.ItemCount()
}

// pinner is implemented by scorers whose Version does not fix the model, such
// as an unpinned remote service.
type pinner interface {
	Pinned() bool
}

// CachedScorer memoizes an inner scorer. Scorers are deterministic per
// version, so a hit is always equal to a fresh call. Inner scorers that
// report Pinned() == false bypass the cache.
type CachedScorer struct {
	inner  Scorer
	cache  *ScoreCache
	logger *logrus.Logger
}

// NewCachedScorer wraps inner with cache
func NewCachedScorer(inner Scorer, c *ScoreCache, logger *logrus.Logger) *CachedScorer {
	return &CachedScorer{inner: inner, cache: c, logger: logger}
}

func (c *CachedScorer) Version() string { return c.inner.Version() }

// Cache exposes the underlying cache for stats.
func (c *CachedScorer) Cache() *ScoreCache { return c.cache }

func (c *CachedScorer) Score(ctx context.Context, fv features.FeatureVector) (float64, error) {
	if pin, ok := c.inner.(pinner); ok && !pin.Pinned() {
		return Instrument(c.inner).Score(ctx, fv)
	}

	start := time.Now()
	version := c.inner.Version()
	key := CacheKey{ModelVersion: version, Features: fv}

	if p, ok := c.cache.Get(key); ok {
		metrics.RecordScore(version, true, time.Since(start))
		return p, nil
	}

	p, err := c.inner.Score(ctx, fv)
	if err != nil {
		metrics.RecordScoreError(version)
		if c.logger != nil {
			c.logger.WithError(err).WithField("model_version", version).Debug("Scorer failed")
		}
		return 0, err
	}

	c.cache.Set(key, p)
	metrics.RecordScore(version, false, time.Since(start))
	return p, nil
}

// instrumented records metrics around a scorer without caching.
type instrumented struct {
	Scorer
}

// Instrument wraps s with score counters and latency.
func Instrument(s Scorer) Scorer {
	return instrumented{Scorer: s}
}

func (s instrumented) Score(ctx context.Context, fv features.FeatureVector) (float64, error) {
	start := time.Now()
	p, err := s.Scorer.Score(ctx, fv)
	if err != nil {
		metrics.RecordScoreError(s.Version())
		return 0, err
	}
	metrics.RecordScore(s.Version(), false, time.Since(start))
	return p, nil
}
