package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrSourceUnreachable indicates that an external database could not be
	// reached or answered with a server error.
	ErrSourceUnreachable = errors.New("source unreachable")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidCredential indicates that a supplied token was rejected.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrSearchTimeout indicates that a connector exceeded its per-call
	// deadline.
	ErrSearchTimeout = errors.New("search timeout")

	// ErrNoConnectors indicates that no connector is configured or enabled.
	ErrNoConnectors = errors.New("no connectors configured")

	// ErrAllConnectorsFailed indicates that every invoked connector failed
	// and no results were gathered.
	ErrAllConnectorsFailed = errors.New("all connectors failed")
)

// ErrorKind classifies connector failures.
type ErrorKind string

const (
	KindUnreachable       ErrorKind = "unreachable"
	KindRateLimited       ErrorKind = "rate_limited"
	KindInvalidCredential ErrorKind = "invalid_credential"
	KindTimeout           ErrorKind = "timeout"
)

// ConnectorError is a per-connector failure. It is non-fatal to the pipeline:
// the coordinator records it and excludes the connector from the result set
// without affecting sibling connectors.
type ConnectorError struct {
	Source     SourceType
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ConnectorError) Error() string {
	msg := fmt.Sprintf("connector %s: %s", e.Source, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the sentinel for the error's kind for use with errors.Is.
func (e *ConnectorError) Unwrap() error {
	switch e.Kind {
	case KindUnreachable:
		return ErrSourceUnreachable
	case KindRateLimited:
		return ErrRateLimited
	case KindInvalidCredential:
		return ErrInvalidCredential
	case KindTimeout:
		return ErrSearchTimeout
	}
	return nil
}

// NewConnectorError creates a ConnectorError of the given kind.
func NewConnectorError(source SourceType, kind ErrorKind, statusCode int, message string, cause error) *ConnectorError {
	return &ConnectorError{
		Source:     source,
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewTimeoutError creates the timeout subtype of ConnectorError.
func NewTimeoutError(source SourceType, elapsed time.Duration) *ConnectorError {
	return &ConnectorError{
		Source:  source,
		Kind:    KindTimeout,
		Message: fmt.Sprintf("no response within %s", elapsed),
	}
}

// KindForStatus classifies an HTTP status code into an error kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindInvalidCredential
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindUnreachable
	}
}

// ClassifyError wraps err as a ConnectorError for source, choosing the kind
// from the error's nature. Existing ConnectorErrors pass through with their
// source filled in when missing.
func ClassifyError(source SourceType, err error) *ConnectorError {
	var connErr *ConnectorError
	if errors.As(err, &connErr) {
		if connErr.Source == "" {
			connErr.Source = source
		}
		return connErr
	}

	kind := KindUnreachable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}

	return &ConnectorError{
		Source: source,
		Kind:   kind,
		Cause:  err,
	}
}

// ConfigurationError is fatal: an invalid connector list or malformed
// credential mapping aborts the whole query before any network call.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Message: message,
	}
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
