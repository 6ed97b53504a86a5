package auth

import (
	"errors"
	"fmt"
)

// FlowErrorKind classifies the ways a login attempt can fail. Every kind is
// terminal: a failed attempt is never retried in place because the PKCE
// verifier and state token are single-use.
type FlowErrorKind string

const (
	// KindEndpointConfig indicates a malformed authorization or token endpoint URL.
	KindEndpointConfig FlowErrorKind = "endpoint_config_invalid"
	// KindListenerBind indicates the loopback callback port could not be bound.
	KindListenerBind FlowErrorKind = "listener_bind_failed"
	// KindProviderDenied indicates the provider returned an error parameter
	// on the callback, typically because the user cancelled or denied access.
	KindProviderDenied FlowErrorKind = "provider_denied"
	// KindStateMismatch indicates the callback state did not match the one
	// generated for this attempt, a possible CSRF attempt.
	KindStateMismatch FlowErrorKind = "state_mismatch"
	// KindTimeout indicates no terminal callback arrived within the wait window.
	KindTimeout FlowErrorKind = "timeout"
	// KindTokenExchange indicates the code-for-token exchange failed, either at
	// the transport level or with a protocol error from the token endpoint.
	KindTokenExchange FlowErrorKind = "token_exchange_failed"
	// KindMalformedCallback indicates a connection was accepted but failed
	// mid-read before a recognizable callback could be parsed.
	KindMalformedCallback FlowErrorKind = "malformed_callback"
)

// FlowError is the single error type surfaced by a login flow. The Kind
// distinguishes the failure classes so callers can map them to user-facing
// messages and exit codes without string matching.
type FlowError struct {
	// Kind is the failure classification.
	Kind FlowErrorKind
	// Description is a human-readable detail, e.g. the provider's
	// error_description on a denial.
	Description string
	// Err is the underlying cause, if any.
	Err error
}

// Error returns a string representation of the flow error.
func (e *FlowError) Error() string {
	switch {
	case e.Description != "" && e.Err != nil:
		return fmt.Sprintf("authentication failed (%s): %s: %v", e.Kind, e.Description, e.Err)
	case e.Description != "":
		return fmt.Sprintf("authentication failed (%s): %s", e.Kind, e.Description)
	case e.Err != nil:
		return fmt.Sprintf("authentication failed (%s): %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("authentication failed (%s)", e.Kind)
	}
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *FlowError) Unwrap() error { return e.Err }

func newFlowError(kind FlowErrorKind, description string, err error) *FlowError {
	return &FlowError{Kind: kind, Description: description, Err: err}
}

// IsFlowErrorKind reports whether err is a FlowError of the given kind.
func IsFlowErrorKind(err error, kind FlowErrorKind) bool {
	var flowErr *FlowError
	if !errors.As(err, &flowErr) {
		return false
	}
	return flowErr.Kind == kind
}

// UserFriendlyMessage returns a message suitable for terminal output based on
// the failure kind.
func UserFriendlyMessage(err error) string {
	var flowErr *FlowError
	if !errors.As(err, &flowErr) {
		return "An unexpected error occurred. Please try again."
	}
	switch flowErr.Kind {
	case KindEndpointConfig:
		return "The configured authentication endpoints are invalid. Check your configuration."
	case KindListenerBind:
		return "The local callback port is already in use. Close the application using it and try again."
	case KindProviderDenied:
		if flowErr.Description != "" {
			return fmt.Sprintf("Authentication was denied: %s", flowErr.Description)
		}
		return "Authentication was cancelled or denied."
	case KindStateMismatch:
		return "The authentication response could not be trusted (state mismatch). Please try again."
	case KindTimeout:
		return "Authentication timed out. Please try again."
	case KindTokenExchange:
		return "Exchanging the authorization code failed. Please try again."
	default:
		return "Authentication failed. Please try again."
	}
}
