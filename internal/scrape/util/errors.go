package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gradscout-engine/internal/domain"
)

var ErrTimeout = errors.New("timeout")

// NetworkError covers transport failures and non-2xx responses.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("GET %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError means the payload did not have the expected shape, usually
// because the site changed its markup. Retrying will not help.
type ParseError struct {
	Source  string
	Reason  string
	Skipped int
	Err     error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s: %s", e.Source, e.Reason)
	if e.Skipped > 0 {
		msg += fmt.Sprintf(" (%d listings skipped)", e.Skipped)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

type ConfigError struct {
	Company string
	Field   string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %q: %s %s", e.Company, e.Field, e.Reason)
}

// IsStatus reports whether err is a NetworkError with the given HTTP status.
func IsStatus(err error, code int) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.StatusCode == code
}

// Classify maps an extraction error onto the result taxonomy.
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrorNone
	}
	var (
		ce *ConfigError
		pe *ParseError
		ne *NetworkError
	)
	switch {
	case errors.As(err, &ce):
		return domain.ErrorConfig
	case errors.As(err, &pe):
		return domain.ErrorParse
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return domain.ErrorTimeout
	case errors.As(err, &ne):
		return domain.ErrorNetwork
	default:
		return domain.ErrorInternal
	}
}
