package ayla

import (
	"errors"
	"fmt"
)

// Kind classifies a cloud failure so callers can branch on it without
// inspecting transport details. No raw transport or JSON error crosses this
// package's boundary unclassified.
type Kind int

// Failure classifications.
const (
	// KindNetworkFailure covers transport-level failures: DNS, connect,
	// TLS, timeouts, cancelled contexts.
	KindNetworkFailure Kind = iota

	// KindUnauthorized is an HTTP 401. Callers treat it specially: a 401
	// on a fetch triggers a token refresh, a 401 on a refresh falls back
	// to a password login.
	KindUnauthorized

	// KindMalformedResponse means the cloud answered but the body could
	// not be decoded, or a token response was missing required fields.
	KindMalformedResponse

	// KindHTTPStatus is any other non-success HTTP status.
	KindHTTPStatus
)

// String returns a short classification name for logs.
func (k Kind) String() string {
	switch k {
	case KindNetworkFailure:
		return "network_failure"
	case KindUnauthorized:
		return "unauthorized"
	case KindMalformedResponse:
		return "malformed_response"
	case KindHTTPStatus:
		return "http_status"
	default:
		return "unknown"
	}
}

// Error is a normalized cloud failure: which operation failed, how it is
// classified, and the HTTP status when one was received.
type Error struct {
	// Op names the failed operation: "sign_in", "refresh_token",
	// "devices", "properties", "datapoint".
	Op string

	Kind Kind

	// Status is the HTTP status code, zero when the request never
	// completed.
	Status int

	// Message is the cloud's error string when the body carried one.
	Message string

	// Err is the underlying transport or decode error, nil for pure
	// HTTP-status failures.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("ayla: %s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is a cloud failure classified as
// HTTP 401.
func IsUnauthorized(err error) bool {
	return errKind(err) == KindUnauthorized
}

// errKind extracts the classification from an error chain. Returns
// KindNetworkFailure for non-cloud errors, matching how unclassifiable
// failures are treated.
func errKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNetworkFailure
}
