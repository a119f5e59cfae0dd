package models

import (
	"errors"
	"fmt"
	"time"
)

// Call discriminators, used to tag results and timeouts
const (
	CallOnline   = "online"
	CallLocation = "location"
	CallShip     = "ship"
	CallNames    = "names"
)

// ResultKind tags a Result
type ResultKind int

const (
	KindOK ResultKind = iota
	KindTimedOut
	KindFailed
)

func (k ResultKind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindTimedOut:
		return "timed_out"
	default:
		return "failed"
	}
}

// ErrTimedOut is matched by every TimeoutError
var ErrTimedOut = errors.New("upstream call timed out")

// TimeoutError identifies the abandoned call
type TimeoutError struct {
	CharacterID int64
	Call        string
	After       time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s call for character %d timed out after %s", e.Call, e.CharacterID, e.After)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimedOut
}

// Result is the outcome of one upstream call: OK(value), TimedOut or Failed(err).
// Every result carries the character id and call discriminator it belongs to.
type Result[T any] struct {
	Kind        ResultKind
	Value       T
	Err         error
	CharacterID int64
	Call        string
}

// OK wraps a value the call produced
func OK[T any](characterID int64, call string, value T) Result[T] {
	return Result[T]{Kind: KindOK, Value: value, CharacterID: characterID, Call: call}
}

// TimedOut marks a call abandoned after the deadline. Its Err matches ErrTimedOut.
func TimedOut[T any](characterID int64, call string, after time.Duration) Result[T] {
	return Result[T]{
		Kind:        KindTimedOut,
		Err:         &TimeoutError{CharacterID: characterID, Call: call, After: after},
		CharacterID: characterID,
		Call:        call,
	}
}

// Failed wraps an upstream error
func Failed[T any](characterID int64, call string, err error) Result[T] {
	return Result[T]{Kind: KindFailed, Err: err, CharacterID: characterID, Call: call}
}

// IsOK reports whether the call produced a value
func (r Result[T]) IsOK() bool {
	return r.Kind == KindOK
}
