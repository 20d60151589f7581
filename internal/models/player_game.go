package models

import "time"

// PlayerGame is one box-score row for a player in one game. Rows are unique
// per Key and Period; ObservedAt orders competing versions of the same row.
type PlayerGame struct {
	Key               IdentityKey `json:"key"`
	Period            string      `db:"period" json:"period" validate:"required"`
	GameDate          time.Time   `db:"game_date" json:"game_date" validate:"required"`
	Season            string      `db:"season" json:"season" validate:"required"`
	Opponent          string      `db:"opponent" json:"opponent,omitempty"`
	Home              bool        `db:"home" json:"home"`
	Points            float64     `db:"points" json:"points" validate:"gte=0,lte=100"`
	Rebounds          float64     `db:"rebounds" json:"rebounds" validate:"gte=0,lte=60"`
	Assists           float64     `db:"assists" json:"assists" validate:"gte=0,lte=40"`
	Minutes           float64     `db:"minutes" json:"minutes" validate:"gte=0,lte=72"`
	FieldGoalPct      float64     `db:"fg_pct" json:"fg_pct" validate:"gte=0,lte=1"`
	ThreePointPct     float64     `db:"fg3_pct" json:"fg3_pct" validate:"gte=0,lte=1"`
	FreeThrowPct      float64     `db:"ft_pct" json:"ft_pct" validate:"gte=0,lte=1"`
	FieldGoalAttempts float64     `db:"fga" json:"fga" validate:"gte=0"`
	FreeThrowAttempts float64     `db:"fta" json:"fta" validate:"gte=0"`
	Turnovers         float64     `db:"turnovers" json:"turnovers" validate:"gte=0"`
	ObservedAt        time.Time   `db:"observed_at" json:"observed_at" validate:"required"`
}

// PRA returns points + rebounds + assists.
func (g PlayerGame) PRA() float64 {
	return g.Points + g.Rebounds + g.Assists
}

// RecordKey is the dedup key: identity plus period.
func (g PlayerGame) RecordKey() string {
	return g.Key.String() + "|" + g.Period
}

// NewerThan reports whether g should replace other in the ledger.
func (g PlayerGame) NewerThan(other PlayerGame) bool {
	return g.ObservedAt.After(other.ObservedAt)
}
