package datasource

import (
	"context"
	"errors"
	"time"

	"github.com/yourusername/pra-edge/internal/models"
)

// Source delivers raw ledger records from an external provider. Sources may
// return duplicates or records older than since; the synchronizer dedups.
type Source interface {
	// Name returns the checkpoint name of the source
	Name() string

	// Fetch retrieves records observed after since. A zero since means a full fetch.
	Fetch(ctx context.Context, since time.Time) (models.Batch, error)
}

// DataSourceError represents errors from data source operations
type DataSourceError struct {
	Source  string // Data source name
	Code    string // Error code (e.g., "rate_limit_exceeded")
	Message string // Error message
	Err     error  // Underlying error
}

func (e DataSourceError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

func (e DataSourceError) Unwrap() error { return e.Err }

// Common error codes
const (
	ErrCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeNotFound             = "not_found"
	ErrCodeInvalidData          = "invalid_data"
	ErrCodeNetworkError         = "network_error"
	ErrCodeServerError          = "server_error"
)

var (
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotFound             = errors.New("data not found")
	ErrInvalidData          = errors.New("invalid data format")
	ErrNetworkError         = errors.New("network error")
	ErrServerError          = errors.New("server error")
)

// NewDataSourceError creates a new data source error
func NewDataSourceError(source, code, message string, err error) DataSourceError {
	return DataSourceError{
		Source:  source,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// statusError maps a non-2xx response to a DataSourceError.
func statusError(source string, status int, body string) error {
	switch {
	case status == 401 || status == 403:
		return NewDataSourceError(source, ErrCodeAuthenticationFailed, body, ErrAuthenticationFailed)
	case status == 404:
		return NewDataSourceError(source, ErrCodeNotFound, body, ErrNotFound)
	case status == 429:
		return NewDataSourceError(source, ErrCodeRateLimitExceeded, body, ErrRateLimitExceeded)
	case status >= 500:
		return NewDataSourceError(source, ErrCodeServerError, body, ErrServerError)
	default:
		return NewDataSourceError(source, ErrCodeInvalidData, body, ErrInvalidData)
	}
}
