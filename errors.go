package flagrelay

import (
	"errors"
	"fmt"
	"time"
)

// Error type identifiers carried by ClientError.Type.
const (
	// ErrorTypeMissingCredential means no credential was set before a request.
	ErrorTypeMissingCredential = "MissingCredential"
	// ErrorTypeConstruction means the request could not be built from the
	// operation and base URL. The underlying builder error is the Cause.
	ErrorTypeConstruction = "Construction"
	// ErrorTypeUnhandled wraps a transport-level failure (timeout,
	// connectivity, TLS, DNS, non-2xx status) without reinterpretation.
	ErrorTypeUnhandled = "Unhandled"
	// ErrorTypeDecode means the response bytes did not match the expected shape.
	ErrorTypeDecode = "Decode"
	// ErrorTypeRateLimit means the dispatch was denied by the local rate limiter.
	ErrorTypeRateLimit = "RateLimit"
	// ErrorTypeStream means the streaming channel failed.
	ErrorTypeStream = "Stream"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrMissingCredential is the cause of MissingCredential failures.
	ErrMissingCredential = errors.New("flagrelay: missing credential")

	// ErrRateLimited is the cause of RateLimit failures.
	ErrRateLimited = errors.New("flagrelay: rate limited")
)

// ClientError represents an error surfaced through a request callback.
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	RequestID  string
	Method     string
	URL        string
	StatusCode int
	Timestamp  time.Time
	Duration   time.Duration
}

// IsTransient determines if an error represents a transient failure that
// might succeed on a caller-driven retry. Returns true for transport errors,
// rate limiting and 5xx responses; false for credential, construction and
// decode failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ErrorTypeRateLimit, ErrorTypeStream:
			return true
		case ErrorTypeUnhandled:
			// 4xx responses (except 429) will not get better on retry.
			if clientErr.StatusCode >= 400 && clientErr.StatusCode < 500 {
				return clientErr.StatusCode == 429
			}
			return true
		default:
			return false
		}
	}

	return false
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var msg string
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Cause)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}
