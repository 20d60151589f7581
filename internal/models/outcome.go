package models

import "time"

// Outcome is the settled PRA value for a player in an event. Outcomes are
// ground truth and never change once stored.
type Outcome struct {
	Key       IdentityKey `json:"key"`
	EventID   string      `db:"event_id" json:"event_id" validate:"required"`
	Actual    float64     `db:"actual" json:"actual" validate:"gte=0,lte=200"`
	SettledAt time.Time   `db:"settled_at" json:"settled_at" validate:"required"`
}

// RecordKey is identity plus event.
func (o Outcome) RecordKey() string {
	return o.Key.String() + "|" + o.EventID
}

// Batch is one delivery from an ingestion source.
type Batch struct {
	Games    []PlayerGame `json:"games"`
	Lines    []PropLine   `json:"lines"`
	Outcomes []Outcome    `json:"outcomes"`
}

// Len returns the total number of records in the batch.
func (b Batch) Len() int {
	return len(b.Games) + len(b.Lines) + len(b.Outcomes)
}
