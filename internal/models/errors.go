package models

import (
	"errors"
	"fmt"
	"time"
)

// Custom errors
var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateKey       = errors.New("duplicate key violation")
	ErrAlreadyResolved    = errors.New("prediction already resolved")
	ErrUnresolved         = errors.New("prediction not resolved")
	ErrInvalidProbability = errors.New("probability outside [0,1]")
	ErrOutcomeMismatch    = errors.New("outcome does not match prediction")
	ErrInvalidIdentityKey = errors.New("invalid identity key")

	ErrDataQuality      = errors.New("data quality error")
	ErrInsufficientData = errors.New("insufficient data")
	ErrStaleWatermark   = errors.New("stale watermark")
	ErrConcurrentSync   = errors.New("concurrent sync")
)

// DataQualityError reports a single malformed record. The record is skipped
// and the rest of the batch continues.
type DataQualityError struct {
	Source string
	Kind   string
	Record string
	Field  string
	Reason string
}

func (e *DataQualityError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("data quality: %s %s %q: %s", e.Source, e.Kind, e.Record, e.Reason)
	}
	return fmt.Sprintf("data quality: %s %s %q: field %s %s", e.Source, e.Kind, e.Record, e.Field, e.Reason)
}

func (e *DataQualityError) Unwrap() error { return ErrDataQuality }

// InsufficientDataError means no feature vector can be built for a player at
// a given date. Callers must skip the tuple rather than impute values.
type InsufficientDataError struct {
	Key  IdentityKey
	AsOf time.Time
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s as of %s: have %d games, need %d",
		e.Key, e.AsOf.Format("2006-01-02"), e.Have, e.Need)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// StaleWatermarkError is returned when a checkpoint advance would not move
// the watermark strictly forward.
type StaleWatermarkError struct {
	Source    string
	Entity    string
	Current   time.Time
	Attempted time.Time
}

func (e *StaleWatermarkError) Error() string {
	scope := e.Source
	if e.Entity != "" {
		scope = e.Source + "/" + e.Entity
	}
	return fmt.Sprintf("stale watermark for %s: attempted %s, current %s",
		scope, e.Attempted.UTC().Format(time.RFC3339Nano), e.Current.UTC().Format(time.RFC3339Nano))
}

func (e *StaleWatermarkError) Unwrap() error { return ErrStaleWatermark }

// ConcurrentSyncError rejects a sync while another sync on the same source is running.
type ConcurrentSyncError struct {
	Source string
}

func (e *ConcurrentSyncError) Error() string {
	return fmt.Sprintf("sync already in progress for source %s", e.Source)
}

func (e *ConcurrentSyncError) Unwrap() error { return ErrConcurrentSync }
