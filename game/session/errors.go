package session

import "errors"

// Kind tags an Error with the failure category so transports can map it
// without parsing messages.
type Kind int

const (
	KindInvalidInput Kind = iota
	KindNotRegistered
	KindAlreadyInGame
	KindNotAvailable
	KindFull
	KindNotFound
	KindNotInGame
	KindNotInProgress
	KindNotYourTurn
	KindIllegalCell
)

// Error is a game-rule violation reported back to the caller as a structured
// reply, never as a crash.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the Kind from an error returned by the engine.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}
