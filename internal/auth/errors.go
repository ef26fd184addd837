package auth

import (
	"errors"
	"net/http"
)

// Kind classifies authorization and authentication failures. Every failure
// propagates to the direct caller as an *Error carrying one of these.
type Kind int

const (
	KindInvalidRequest Kind = iota
	KindChannelNotRestricted
	KindMissingPresenceData
	KindAccessDenied
	KindInvalidCredential
	KindInvalidSignature
	KindInternalInconsistency
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindChannelNotRestricted:
		return "channel_not_restricted"
	case KindMissingPresenceData:
		return "missing_presence_data"
	case KindAccessDenied:
		return "access_denied"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindInvalidSignature:
		return "invalid_signature"
	default:
		return "internal_inconsistency"
	}
}

// HTTPStatus maps a kind to the status the authorization endpoint answers
// with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidRequest, KindChannelNotRestricted, KindMissingPresenceData:
		return http.StatusBadRequest
	case KindAccessDenied:
		return http.StatusForbidden
	case KindInvalidCredential, KindInvalidSignature:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func WrapError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the failure kind, defaulting to internal inconsistency
// for errors that did not originate here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternalInconsistency
}
