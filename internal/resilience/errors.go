package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Kind classifies a pipeline failure for retry and reporting decisions.
type Kind string

const (
	KindSourceUnavailable Kind = "source_unavailable"
	KindSourceTimeout     Kind = "source_timeout"
	KindSynthesisBackend  Kind = "synthesis_backend_failure"
	KindUpdateRetryable   Kind = "update_retryable"
	KindUpdateTerminal    Kind = "update_terminal"
	KindJobDeadline       Kind = "job_deadline_exceeded"
	KindInternal          Kind = "unexpected_internal_error"
)

// RetryableError wraps an error that is safe to retry (transport timeout,
// 5xx-class response, connection failure).
type RetryableError struct {
	Err        error
	StatusCode int
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// NewRetryableError wraps an error as retryable with an optional HTTP status.
func NewRetryableError(err error, statusCode int) *RetryableError {
	return &RetryableError{Err: err, StatusCode: statusCode}
}

// TerminalError wraps an error that will not succeed on replay
// (authentication failure, resource not found). It must never be retried.
type TerminalError struct {
	Err        error
	StatusCode int
}

func (e *TerminalError) Error() string { return e.Err.Error() }
func (e *TerminalError) Unwrap() error { return e.Err }

// NewTerminalError wraps an error as terminal with an optional HTTP status.
func NewTerminalError(err error, statusCode int) *TerminalError {
	return &TerminalError{Err: err, StatusCode: statusCode}
}

// IsTerminal reports whether the chain contains a TerminalError.
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}

// IsRetryable reports whether the error (or any error in its chain) is a
// RetryableError, or matches common transient network failure patterns.
// Terminal errors are never retryable, regardless of what else is in the
// chain.
func IsRetryable(err error) bool {
	if err == nil || IsTerminal(err) {
		return false
	}

	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	patterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsRetryableHTTPStatus reports whether an HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// IsTerminalHTTPStatus reports whether an HTTP status code indicates a
// failure that will not succeed on replay.
func IsTerminalHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 401, 403, 404, 410:
		return true
	default:
		return false
	}
}

// Classify maps an error to its failure kind. Unrecognized errors classify
// as internal.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case IsTerminal(err):
		return KindUpdateTerminal
	case errors.Is(err, ErrJobDeadline):
		return KindJobDeadline
	case IsRetryable(err):
		return KindUpdateRetryable
	default:
		return KindInternal
	}
}

// ErrJobDeadline marks a job that was cancelled by the overall job deadline,
// distinct from any stage-specific error.
var ErrJobDeadline = errors.New("job deadline exceeded")
