package scoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/pra-edge/internal/features"
)

// Member is one weighted scorer in an ensemble.
type Member struct {
	Scorer Scorer
	Weight float64
}

// Ensemble is a normalized weighted average of member probabilities.
type Ensemble struct {
	members []Member
	version string
}

// NewEnsemble requires at least one member and positive weights.
func NewEnsemble(members ...Member) (*Ensemble, error) {
	if len(members) == 0 {
		return nil, errors.New("ensemble needs at least one member")
	}

	var total float64
	for _, m := range members {
		if m.Scorer == nil {
			return nil, errors.New("ensemble member has no scorer")
		}
		if !(m.Weight > 0) {
			return nil, fmt.Errorf("ensemble weight for %s must be positive, got %v", m.Scorer.Version(), m.Weight)
		}
		total += m.Weight
	}

	e := &Ensemble{members: make([]Member, len(members))}
	parts := make([]string, len(members))
	for i, m := range members {
		e.members[i] = Member{Scorer: m.Scorer, Weight: m.Weight / total}
		parts[i] = m.Scorer.Version() + ":" + strconv.FormatFloat(e.members[i].Weight, 'f', 3, 64)
	}
	e.version = "ensemble(" + strings.Join(parts, ",") + ")"
	return e, nil
}

func (e *Ensemble) Version() string { return e.version }

func (e *Ensemble) Score(ctx context.Context, fv features.FeatureVector) (float64, error) {
	var p float64
	for _, m := range e.members {
		mp, err := m.Scorer.Score(ctx, fv)
		if err != nil {
			return 0, fmt.Errorf("member %s: %w", m.Scorer.Version(), err)
		}
		p += m.Weight * mp
	}
	if err := CheckProbability(p); err != nil {
		return 0, err
	}
	return p, nil
}
