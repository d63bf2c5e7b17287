// Package autherror defines the tagged error type shared by every authentication component.
//
// Callers branch on Kind with errors.Is against the Err* values, never on message text.
package autherror

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindProcessing Kind = iota
	KindInvalidCredential
	KindMissingCredential
	KindInvalidSession
	KindSessionExpired
	KindIdentityUnavailable
	KindConfiguration
	KindCollision
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredential:
		return "invalid_credential"
	case KindMissingCredential:
		return "missing_credential"
	case KindInvalidSession:
		return "invalid_session"
	case KindSessionExpired:
		return "session_expired"
	case KindIdentityUnavailable:
		return "identity_unavailable"
	case KindConfiguration:
		return "configuration"
	case KindCollision:
		return "collision"
	default:
		return "processing"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

var (
	ErrInvalidCredential   = &Error{Kind: KindInvalidCredential, Message: "invalid credentials"}
	ErrMissingCredential   = &Error{Kind: KindMissingCredential, Message: "missing credentials"}
	ErrInvalidSession      = &Error{Kind: KindInvalidSession, Message: "invalid session"}
	ErrSessionExpired      = &Error{Kind: KindSessionExpired, Message: "session expired"}
	ErrIdentityUnavailable = &Error{Kind: KindIdentityUnavailable, Message: "identity unavailable"}
	ErrConfiguration       = &Error{Kind: KindConfiguration, Message: "invalid configuration"}
	ErrCollision           = &Error{Kind: KindCollision, Message: "token collision"}
	ErrProcessing          = &Error{Kind: KindProcessing, Message: "authentication processing failed"}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind. An expired session also counts as an invalid session.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindSessionExpired && t.Kind == KindInvalidSession
}

// KindOf returns the kind of the first *Error in err's chain, or KindProcessing.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProcessing
}

func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}

	switch e.Kind {
	case KindInvalidCredential, KindMissingCredential, KindInvalidSession,
		KindSessionExpired, KindIdentityUnavailable:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
