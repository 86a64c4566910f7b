package upstream

import (
	"errors"
	"fmt"
)

// Kind classifies upstream failures. Both kinds are fatal for the request
// that hit them; callers treat them the same way and only log the
// difference.
type Kind string

const (
	// KindUnavailable covers transport errors, timeouts and non-2xx statuses.
	KindUnavailable Kind = "upstream_unavailable"
	// KindMalformed covers non-JSON bodies, provider error envelopes and
	// records missing a required field.
	KindMalformed Kind = "malformed_upstream_response"
)

// Error is a failure reaching or interpreting one of the upstream providers.
type Error struct {
	Op         string
	Provider   string
	Kind       Kind
	StatusCode int // zero when no response was received
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s: %s", e.Op, e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err is an upstream Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind == kind
	}
	return false
}

// Malformed builds a KindMalformed error for a decoded response that does
// not match the provider's contract.
func Malformed(op, provider string, format string, args ...any) *Error {
	return &Error{
		Op:       op,
		Provider: provider,
		Kind:     KindMalformed,
		Err:      fmt.Errorf(format, args...),
	}
}
