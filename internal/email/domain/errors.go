package domain

import (
	"errors"
	"fmt"
)

// ConnectionError indicates a socket or transport level failure. Callers
// retry with backoff.
type ConnectionError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection error: %s", e.Provider, e.Message)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError indicates bad or expired credentials. Not retried; the owning
// subscription is marked failed.
type AuthError struct {
	Provider string
	Message  string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth error: %s", e.Provider, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConfigError indicates missing configuration (e.g. no push topic). Fails
// fast, never retried.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return "config error: " + e.Message }

// RateLimitError indicates the external analysis gateway or provider API
// returned a quota/429 response. The current message is skipped; the next
// scheduled pass (or the retry queue) picks it up.
type RateLimitError struct {
	Service string
	Err     error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited", e.Service)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ErrCursorExpired indicates the stored history cursor fell out of the
// provider's retention window and can never be diffed again. Callers
// rebase on a fresh cursor; any other history failure is transient and
// keeps the stored cursor for a later retry.
var ErrCursorExpired = errors.New("history cursor expired")

// StoreError indicates the persistence layer is unavailable. Logged, the
// operation is abandoned for this cycle.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func IsConnectionError(err error) bool {
	var t *ConnectionError
	return errors.As(err, &t)
}

func IsAuthError(err error) bool {
	var t *AuthError
	return errors.As(err, &t)
}

func IsRateLimitError(err error) bool {
	var t *RateLimitError
	return errors.As(err, &t)
}
