// Package apperr defines the tagged error taxonomy shared by the repository,
// the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and status mapping.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation covers malformed input, self-binding and unauthenticated calls.
	KindValidation
	// KindConflict covers uniqueness collisions and state that forbids the action.
	KindConflict
	// KindNotFound covers missing partners, entities and rating targets.
	KindNotFound
	// KindTransient covers remote failures that may succeed on retry.
	KindTransient
	// KindFatal covers an unavailable local store.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a tagged error. Two errors match under errors.Is when their codes
// are equal.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on code so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// With returns a copy of the sentinel carrying cause.
func (e *Error) With(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

// Withf returns a copy of the sentinel with a more specific message.
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidCode        = &Error{Kind: KindValidation, Code: "invalid_code", Message: "invite code is invalid"}
	ErrSelfBind           = &Error{Kind: KindValidation, Code: "self_bind", Message: "cannot bind to yourself"}
	ErrUnauthenticated    = &Error{Kind: KindValidation, Code: "unauthenticated", Message: "user is not signed in"}
	ErrInvalidInput       = &Error{Kind: KindValidation, Code: "invalid_input", Message: "invalid input"}
	ErrCheckInClosed      = &Error{Kind: KindValidation, Code: "check_in_closed", Message: "check-in is only allowed for today"}
	ErrRatingExpired      = &Error{Kind: KindValidation, Code: "rating_expired", Message: "rating window has closed"}
	ErrInviteCodeConflict = &Error{Kind: KindConflict, Code: "invite_code_conflict", Message: "invite code collision"}
	ErrAlreadyBound       = &Error{Kind: KindConflict, Code: "already_bound", Message: "user is already bound to a partner"}
	ErrRateLimited        = &Error{Kind: KindConflict, Code: "rate_limited", Message: "too many requests"}
	ErrNoPartner          = &Error{Kind: KindNotFound, Code: "no_partner", Message: "no bound partner"}
	ErrNoPendingRating    = &Error{Kind: KindNotFound, Code: "no_pending_rating", Message: "no check-in is waiting for a rating"}
	ErrNotFound           = &Error{Kind: KindNotFound, Code: "not_found", Message: "not found"}
)

// Transient tags err as a retryable remote failure.
func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Code: "transient", Message: op, Err: err}
}

// Fatal tags err as an unrecoverable local storage failure.
func Fatal(op string, err error) error {
	return &Error{Kind: KindFatal, Code: "fatal", Message: op, Err: err}
}

// KindOf returns the kind of the first tagged error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTransient reports whether err is tagged as transient.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
