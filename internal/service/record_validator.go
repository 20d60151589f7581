package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/yourusername/pra-edge/internal/models"
)

// Record kinds used in logs, metrics and DataQualityError.Kind.
const (
	KindGame    = "game"
	KindLine    = "line"
	KindOutcome = "outcome"
)

// maxFutureSkew bounds how far ahead of the sync clock an observation
// timestamp may be before it is treated as corrupt.
const maxFutureSkew = 24 * time.Hour

// RecordValidator checks ingested records against the model constraints.
type RecordValidator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewRecordValidator creates a new record validator
func NewRecordValidator() *RecordValidator {
	return &RecordValidator{
		validate: validator.New(),
		now:      time.Now,
	}
}

// ValidateGame validates a box-score row
func (v *RecordValidator) ValidateGame(source string, g *models.PlayerGame) error {
	record := g.RecordKey()
	if err := v.checkStruct(source, KindGame, record, g); err != nil {
		return err
	}

	stats := map[string]float64{
		"points":   g.Points,
		"rebounds": g.Rebounds,
		"assists":  g.Assists,
		"minutes":  g.Minutes,
		"fga":      g.FieldGoalAttempts,
		"fta":      g.FreeThrowAttempts,
		"tov":      g.Turnovers,
	}
	for field, value := range stats {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return dataQuality(source, KindGame, record, field, "must be finite")
		}
	}

	if g.GameDate.After(g.ObservedAt.Add(maxFutureSkew)) {
		return dataQuality(source, KindGame, record, "game_date", "is after the observation time")
	}
	return v.checkNotFuture(source, KindGame, record, "observed_at", g.ObservedAt)
}

// ValidateLine validates a sportsbook line observation
func (v *RecordValidator) ValidateLine(source string, l *models.PropLine) error {
	record := l.RecordKey()
	if err := v.checkStruct(source, KindLine, record, l); err != nil {
		return err
	}

	if math.IsNaN(l.Line) || math.IsInf(l.Line, 0) {
		return dataQuality(source, KindLine, record, "line", "must be finite")
	}
	if l.OverPrice != 0 && !(l.OverPrice > 1) {
		return dataQuality(source, KindLine, record, "over_price", fmt.Sprintf("decimal price must exceed 1, got %v", l.OverPrice))
	}
	if l.UnderPrice != 0 && !(l.UnderPrice > 1) {
		return dataQuality(source, KindLine, record, "under_price", fmt.Sprintf("decimal price must exceed 1, got %v", l.UnderPrice))
	}
	return v.checkNotFuture(source, KindLine, record, "fetched_at", l.FetchedAt)
}

// ValidateOutcome validates a settled outcome
func (v *RecordValidator) ValidateOutcome(source string, o *models.Outcome) error {
	record := o.RecordKey()
	if err := v.checkStruct(source, KindOutcome, record, o); err != nil {
		return err
	}
	if math.IsNaN(o.Actual) || math.IsInf(o.Actual, 0) {
		return dataQuality(source, KindOutcome, record, "actual", "must be finite")
	}
	return v.checkNotFuture(source, KindOutcome, record, "settled_at", o.SettledAt)
}

func (v *RecordValidator) checkStruct(source, kind, record string, s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := fmt.Sprintf("failed %q", fe.Tag())
		if fe.Param() != "" {
			reason = fmt.Sprintf("failed %q (%s), got %v", fe.Tag(), fe.Param(), fe.Value())
		}
		return dataQuality(source, kind, record, fe.Namespace(), reason)
	}
	return dataQuality(source, kind, record, "", err.Error())
}

func (v *RecordValidator) checkNotFuture(source, kind, record, field string, ts time.Time) error {
	if ts.After(v.now().Add(maxFutureSkew)) {
		return dataQuality(source, kind, record, field, "is in the future")
	}
	return nil
}

func dataQuality(source, kind, record, field, reason string) *models.DataQualityError {
	return &models.DataQualityError{
		Source: source,
		Kind:   kind,
		Record: record,
		Field:  field,
		Reason: reason,
	}
}
