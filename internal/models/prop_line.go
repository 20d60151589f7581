package models

import (
	"time"
	_ "time/tzdata"
)

// MarketPRA is the odds-provider market key for points+rebounds+assists props.
const MarketPRA = "player_points_rebounds_assists"

// PropLine is one observed sportsbook threshold. Lines are append-only:
// a later fetch adds a row, it never replaces one.
type PropLine struct {
	Key         IdentityKey `json:"key"`
	EventID     string      `db:"event_id" json:"event_id" validate:"required"`
	Line        float64     `db:"line" json:"line" validate:"gt=0,lte=150"`
	Market      string      `db:"market" json:"market" validate:"required"`
	Bookmaker   string      `db:"bookmaker" json:"bookmaker" validate:"required"`
	OverPrice   float64     `db:"over_price" json:"over_price,omitempty"`
	UnderPrice  float64     `db:"under_price" json:"under_price,omitempty"`
	HomeTeam    string      `db:"home_team" json:"home_team,omitempty"`
	AwayTeam    string      `db:"away_team" json:"away_team,omitempty"`
	FetchedAt   time.Time   `db:"fetched_at" json:"fetched_at" validate:"required"`
	ScheduledAt time.Time   `db:"scheduled_at" json:"scheduled_at" validate:"required"`
}

// gameZone is the league's scheduling zone. Box scores are dated by the local
// calendar day in this zone, so a 22:00 ET tip carries the previous UTC date.
var gameZone = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// GameDay returns the local game date of a tip-off as midnight UTC, the same
// representation PlayerGame.GameDate uses.
func GameDay(tip time.Time) time.Time {
	local := tip.In(gameZone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// GameDay is the local date the line's event is played on.
func (l PropLine) GameDay() time.Time {
	return GameDay(l.ScheduledAt)
}

// RecordKey identifies an exact observation. Re-fetching the same snapshot
// yields the same key and is treated as a duplicate.
func (l PropLine) RecordKey() string {
	return l.Key.String() + "|" + l.EventID + "|" + l.Bookmaker + "|" + l.FetchedAt.UTC().Format(time.RFC3339Nano)
}

// SelectionKey groups every observation of one player's line at one book for one event.
func (l PropLine) SelectionKey() string {
	return l.Key.String() + "|" + l.EventID + "|" + l.Bookmaker
}

// OutcomeKey joins a line to its settled outcome.
func (l PropLine) OutcomeKey() string {
	return l.Key.String() + "|" + l.EventID
}

// IsHome reports whether the player's team hosts the event. The second
// return value is false when the event teams are unknown.
func (l PropLine) IsHome() (home bool, known bool) {
	switch l.Key.Team {
	case NormalizeTeam(l.HomeTeam):
		return true, l.HomeTeam != ""
	case NormalizeTeam(l.AwayTeam):
		return false, l.AwayTeam != ""
	}
	return false, false
}
