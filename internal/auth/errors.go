package auth

import (
	"errors"
	"fmt"
)

// Kind classifies authentication failures
type Kind string

const (
	KindMissingCode      Kind = "missing_code"
	KindProviderRejected Kind = "provider_rejected"
	KindExchangeFailed   Kind = "exchange_failed"
	KindIdentity         Kind = "identity_unavailable"
	KindStorage          Kind = "storage_failed"
	KindNotRefreshable   Kind = "not_refreshable"
	KindRefreshRejected  Kind = "refresh_rejected"
	KindRefreshFailed    Kind = "refresh_failed"
	KindUnauthorized     Kind = "unauthorized"
	KindInvalidState     Kind = "invalid_state"
)

// Retryable reports whether the failure is transient. Everything else
// requires the user to log in again.
func (k Kind) Retryable() bool {
	switch k {
	case KindExchangeFailed, KindRefreshFailed, KindStorage:
		return true
	default:
		return false
	}
}

// Error is returned by every Manager operation. errors.Is matches on Kind,
// so callers compare against the Err* sentinels.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrMissingCode      = &Error{Kind: KindMissingCode, Message: "authorization code is required"}
	ErrProviderRejected = &Error{Kind: KindProviderRejected, Message: "identity provider rejected the authorization code"}
	ErrExchangeFailed   = &Error{Kind: KindExchangeFailed, Message: "authorization code exchange failed"}
	ErrIdentity         = &Error{Kind: KindIdentity, Message: "could not determine account identity"}
	ErrStorage          = &Error{Kind: KindStorage, Message: "failed to persist credentials"}
	ErrNotRefreshable   = &Error{Kind: KindNotRefreshable, Message: "no refresh token available"}
	ErrRefreshRejected  = &Error{Kind: KindRefreshRejected, Message: "identity provider rejected the refresh token"}
	ErrRefreshFailed    = &Error{Kind: KindRefreshFailed, Message: "token refresh failed"}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized, Message: "authentication required"}
	ErrInvalidState     = &Error{Kind: KindInvalidState, Message: "state parameter does not match this session"}
)

func newError(sentinel *Error, err error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: err}
}

// KindOf extracts the Kind from err, or "" when err is not an *Error
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return ""
}
