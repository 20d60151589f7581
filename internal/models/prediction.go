package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Label is the binary side of a prop.
type Label string

const (
	LabelOver  Label = "OVER"
	LabelUnder Label = "UNDER"
)

// PredictionStatus tracks the open -> resolved lifecycle.
type PredictionStatus string

const (
	PredictionOpen     PredictionStatus = "open"
	PredictionResolved PredictionStatus = "resolved"
)

// Prediction is a scored prop. It is created open and resolved exactly once
// when the matching outcome arrives.
type Prediction struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	Key           IdentityKey      `json:"key"`
	EventID       string           `db:"event_id" json:"event_id"`
	Bookmaker     string           `db:"bookmaker" json:"bookmaker,omitempty"`
	Line          float64          `db:"line" json:"line"`
	AsOf          time.Time        `db:"as_of" json:"as_of"`
	Probability   float64          `db:"probability" json:"probability"`
	Label         Label            `db:"label" json:"label"`
	Confidence    float64          `db:"confidence" json:"confidence"`
	ModelVersion  string           `db:"model_version" json:"model_version"`
	AlternateLine *float64         `db:"alternate_line" json:"alternate_line,omitempty"`
	Status        PredictionStatus `db:"status" json:"status"`
	ActualValue   *float64         `db:"actual_value" json:"actual_value,omitempty"`
	ActualLabel   *Label           `db:"actual_label" json:"actual_label,omitempty"`
	Correct       *bool            `db:"correct" json:"correct,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	ResolvedAt    *time.Time       `db:"resolved_at" json:"resolved_at,omitempty"`
}

// NewPrediction creates an open prediction from a scorer probability.
func NewPrediction(key IdentityKey, eventID string, line float64, asOf time.Time, probability float64, modelVersion string) (*Prediction, error) {
	if math.IsNaN(probability) || probability < 0 || probability > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProbability, probability)
	}
	return &Prediction{
		ID:           uuid.New(),
		Key:          key,
		EventID:      eventID,
		Line:         line,
		AsOf:         asOf,
		Probability:  probability,
		Label:        LabelFor(probability),
		Confidence:   ConfidenceFor(probability),
		ModelVersion: modelVersion,
		Status:       PredictionOpen,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// LabelFor thresholds the OVER probability at 0.5.
func LabelFor(probability float64) Label {
	if probability >= 0.5 {
		return LabelOver
	}
	return LabelUnder
}

// ConfidenceFor is the probability assigned to the predicted side.
func ConfidenceFor(probability float64) float64 {
	return math.Max(probability, 1-probability)
}

// ActualLabelFor compares exactly so that 35.5 lines are never misread as
// 35.49999 after float parsing. A push (actual == line) settles UNDER.
func ActualLabelFor(actual, line float64) Label {
	if decimal.NewFromFloat(actual).GreaterThan(decimal.NewFromFloat(line)) {
		return LabelOver
	}
	return LabelUnder
}

// Resolve attaches the outcome. It fails if the prediction was already resolved.
func (p *Prediction) Resolve(outcome Outcome, at time.Time) error {
	if p.Status == PredictionResolved {
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, p.ID)
	}
	if outcome.Key != p.Key || outcome.EventID != p.EventID {
		return fmt.Errorf("%w: prediction %s/%s, outcome %s/%s",
			ErrOutcomeMismatch, p.Key, p.EventID, outcome.Key, outcome.EventID)
	}

	actual := outcome.Actual
	label := ActualLabelFor(actual, p.Line)
	correct := label == p.Label
	resolvedAt := at.UTC()

	p.ActualValue = &actual
	p.ActualLabel = &label
	p.Correct = &correct
	p.ResolvedAt = &resolvedAt
	p.Status = PredictionResolved
	return nil
}

// IsResolved reports whether an outcome has been attached.
func (p *Prediction) IsResolved() bool {
	return p.Status == PredictionResolved
}

// IsCorrect is false for open predictions.
func (p *Prediction) IsCorrect() bool {
	return p.Correct != nil && *p.Correct
}

// MeetsThreshold checks if the confidence meets the given threshold
func (p *Prediction) MeetsThreshold(threshold float64) bool {
	return p.Confidence >= threshold
}
