package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrOperationInProgress = errors.New("operation already in progress")
	ErrNotFound            = errors.New("entity not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNoJobID             = errors.New("job id is empty")
)

// ErrorKind classifies a failed remote call.
type ErrorKind string

const (
	ErrKindNetwork     ErrorKind = "network"      // no response received
	ErrKindClient      ErrorKind = "client"       // 4xx other than 429
	ErrKindServer      ErrorKind = "server"       // 5xx
	ErrKindRateLimited ErrorKind = "rate_limited" // 429
)

// APIError is the typed error surfaced by the request gateway.
type APIError struct {
	Kind    ErrorKind
	Status  int    // 0 for network errors
	Code    string // machine-readable code from the error body, if any
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Status, e.Message)
}

// Retryable reports whether another attempt can reasonably succeed.
// Client errors are final; everything else is transient.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case ErrKindNetwork, ErrKindServer, ErrKindRateLimited:
		return true
	}
	return false
}

// Retryable reports whether err wraps a transient APIError.
func Retryable(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Retryable()
}

// ValidationError is a local precondition failure (bad file type, size over
// the ceiling). It never reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
