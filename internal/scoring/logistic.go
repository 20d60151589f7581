package scoring

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"

	"github.com/yourusername/pra-edge/internal/features"
)

// Intercept is the reserved coefficient name for the bias term.
const Intercept = "intercept"

// DefaultLogisticWeights leans on the season margin over the line with a
// small adjustment for recent form and venue.
var DefaultLogisticWeights = map[string]float64{
	Intercept:    -0.05,
	"margin":     0.15,
	"recent_avg": 0.04,
	"season_avg": -0.04,
	"home":       0.10,
}

// LogisticScorer is sigmoid(intercept + sum(coef * feature)).
type LogisticScorer struct {
	intercept float64
	coef      []float64
	version   string
}

// NewLogisticScorer validates coefficient names against the feature schema.
// An empty map selects DefaultLogisticWeights.
func NewLogisticScorer(weights map[string]float64) (*LogisticScorer, error) {
	if len(weights) == 0 {
		weights = DefaultLogisticWeights
	}

	names := features.Names()
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}

	s := &LogisticScorer{coef: make([]float64, len(names))}
	for name, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("coefficient %s is not finite", name)
		}
		if name == Intercept {
			s.intercept = w
			continue
		}
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		s.coef[i] = w
	}
	s.version = "logistic-" + weightsHash(weights)
	return s, nil
}

func (s *LogisticScorer) Version() string { return s.version }

func (s *LogisticScorer) Score(ctx context.Context, fv features.FeatureVector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	z := s.intercept
	for i, v := range fv.Values() {
		z += s.coef[i] * v
	}
	p := 1 / (1 + math.Exp(-z))
	if err := CheckProbability(p); err != nil {
		return 0, err
	}
	return p, nil
}

// weightsHash gives a stable short digest so different coefficient sets get
// different versions.
func weightsHash(weights map[string]float64) string {
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := fnv.New32a()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(strconv.FormatFloat(weights[k], 'g', -1, 64)))
		h.Write([]byte{';'})
	}
	return fmt.Sprintf("%08x", h.Sum32())
}
