package nextauth

import (
	"errors"
	"fmt"
)

// ErrorKind tags every failure the engine can produce. Callers and the
// action router match on the kind rather than on concrete error types.
type ErrorKind string

const (
	ErrMissingCSRF        ErrorKind = "MissingCSRF"
	ErrInvalidState       ErrorKind = "InvalidState"
	ErrAccountNotLinked   ErrorKind = "AccountNotLinked"
	ErrAccessDenied       ErrorKind = "AccessDenied"
	ErrOAuthSignIn        ErrorKind = "OAuthSignInError"
	ErrOAuthCallback      ErrorKind = "OAuthCallbackError"
	ErrAuthorizedCallback ErrorKind = "AuthorizedCallbackError"
	ErrSignIn             ErrorKind = "SignInError"
	ErrSignOut            ErrorKind = "SignOutError"
	ErrUnknownAction      ErrorKind = "UnknownAction"
	ErrMissingAdapter     ErrorKind = "MissingAdapter"
	ErrMissingSecret      ErrorKind = "MissingSecret"
	ErrSessionToken       ErrorKind = "SessionTokenError"
	ErrUntrustedHost      ErrorKind = "UntrustedHost"
)

// Error is the tagged error carried across the engine. Meta holds
// non-sensitive context (provider id, action name) for logging; it is never
// written into a response or a redirect URL.
type Error struct {
	Kind     ErrorKind
	Provider string
	Message  string
	Meta     map[string]any
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Provider != "" {
		msg = fmt.Sprintf("%s (provider=%s)", msg, e.Provider)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a tagged error with a short human-readable message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError tags an underlying error with a kind. The cause stays available
// through errors.Unwrap for logging.
func WrapError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the taxonomy kind from err, or "" if err is not a tagged
// engine error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// isConfigError reports whether the kind indicates host misconfiguration
// rather than a per-request failure. These fail fast instead of redirecting.
func isConfigError(kind ErrorKind) bool {
	switch kind {
	case ErrMissingAdapter, ErrMissingSecret, ErrUntrustedHost:
		return true
	}
	return false
}
