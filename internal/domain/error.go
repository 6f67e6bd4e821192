package domain

import (
	"errors"
	"fmt"
)

// Kind roots. Every error the core returns wraps exactly one of these, or is
// treated as internal.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidArgument = errors.New("invalid argument")
)

var (
	ErrInvalidToken    = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	ErrInvalidLogin    = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	ErrAccountInactive = fmt.Errorf("%w: account is deactivated", ErrUnauthenticated)

	ErrNotParticipant   = fmt.Errorf("%w: session not accessible to caller", ErrForbidden)
	ErrWrongAccountKind = fmt.Errorf("%w: action not permitted for this account kind", ErrForbidden)

	ErrSessionNotFound   = fmt.Errorf("%w: session not found", ErrNotFound)
	ErrCounselorNotFound = fmt.Errorf("%w: counselor not found", ErrNotFound)

	ErrActiveSessionExists = fmt.Errorf("%w: you already have an active chat session", ErrInvalidState)
	ErrSessionNotActive    = fmt.Errorf("%w: cannot send messages in inactive session", ErrInvalidState)
	ErrCounselorNotActive  = fmt.Errorf("%w: counselor may only act on active sessions", ErrInvalidState)
	ErrSessionClosed       = fmt.Errorf("%w: session already closed", ErrInvalidState)
	ErrSessionNotClosed    = fmt.Errorf("%w: can only rate closed sessions", ErrInvalidState)
	ErrAlreadyRated        = fmt.Errorf("%w: session already rated", ErrInvalidState)
	ErrAlreadyEscalated    = fmt.Errorf("%w: session already escalated", ErrInvalidState)
	ErrSessionNotWaiting   = fmt.Errorf("%w: session is not waiting for a counselor", ErrInvalidState)

	ErrInvalidExecContext = errors.New("invalid execution context")
)

// ActiveSessionError reports the open session that blocked a create request.
type ActiveSessionError struct {
	SessionID string
}

func (e *ActiveSessionError) Error() string { return ErrActiveSessionExists.Error() }
func (e *ActiveSessionError) Unwrap() error { return ErrActiveSessionExists }

// ValidationError carries field-level problems for a rejected payload.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return ErrInvalidArgument.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidArgument.Error(), e.Details[0])
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// Kind is the caller-facing error category.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindInvalidState    Kind = "invalid_state"
	KindValidation      Kind = "validation"
	KindInternal        Kind = "internal"
)

// KindOf classifies err by the root it wraps.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrInvalidArgument):
		return KindValidation
	default:
		return KindInternal
	}
}
