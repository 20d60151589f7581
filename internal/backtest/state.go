package backtest

import (
	"fmt"
	"time"

	"github.com/yourusername/pra-edge/internal/features"
	"github.com/yourusername/pra-edge/internal/models"
)

// TupleState is the lifecycle position of one simulated pick.
type TupleState string

const (
	StatePending    TupleState = "pending"
	StateFeaturized TupleState = "featurized"
	StateScored     TupleState = "scored"
	StateResolved   TupleState = "resolved"
	StateSkipped    TupleState = "skipped"
)

// SkipReason explains why a tuple left the pipeline early.
type SkipReason string

const (
	SkipInsufficientData   SkipReason = "insufficient_data"
	SkipFeatureFailed      SkipReason = "feature_failed"
	SkipScoringFailed      SkipReason = "scoring_failed"
	SkipInvalidProbability SkipReason = "invalid_probability"
	SkipResolveFailed      SkipReason = "resolve_failed"
)

// SkipReasons lists every reason in report order.
var SkipReasons = []SkipReason{
	SkipInsufficientData,
	SkipFeatureFailed,
	SkipScoringFailed,
	SkipInvalidProbability,
	SkipResolveFailed,
}

var transitions = map[TupleState][]TupleState{
	StatePending:    {StateFeaturized, StateSkipped},
	StateFeaturized: {StateScored, StateSkipped},
	StateScored:     {StateResolved, StateSkipped},
}

// Tuple is one (player, event, bookmaker) pick with its decision line and outcome.
type Tuple struct {
	Day     time.Time
	Line    models.PropLine
	Outcome models.Outcome
}

// TupleResult carries a tuple through the state machine.
type TupleResult struct {
	Tuple      Tuple
	State      TupleState
	Reason     SkipReason
	Err        error
	Features   features.FeatureVector
	Prediction *models.Prediction
}

func newTupleResult(t Tuple) *TupleResult {
	return &TupleResult{Tuple: t, State: StatePending}
}

// advance moves to next, rejecting transitions the lifecycle does not allow.
func (r *TupleResult) advance(next TupleState) error {
	for _, allowed := range transitions[r.State] {
		if allowed == next {
			r.State = next
			return nil
		}
	}
	return fmt.Errorf("invalid tuple transition %s -> %s", r.State, next)
}

func (r *TupleResult) skip(reason SkipReason, err error) {
	if advErr := r.advance(StateSkipped); advErr != nil {
		// already terminal; keep the first outcome
		return
	}
	r.Reason = reason
	r.Err = err
}

// Terminal reports whether the tuple reached Resolved or Skipped.
func (r *TupleResult) Terminal() bool {
	return r.State == StateResolved || r.State == StateSkipped
}
