package wager

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	StateExistenceError      Kind = "StateExistenceError"
	StateActivityError       Kind = "StateActivityError"
	OpponentStateError       Kind = "OpponentStateError"
	RequirementMismatchError Kind = "RequirementMismatchError"
	OutcomeStateError        Kind = "OutcomeStateError"
	AlreadyClaimedError      Kind = "AlreadyClaimedError"
	AuthorizationError       Kind = "AuthorizationError"
	InputShapeError          Kind = "InputShapeError"
)

// Code is a stable, transport-independent error identifier.
type Code struct {
	Name   string
	Kind   Kind
	Status int
}

var (
	CodeRecordExists       = Code{"record-exists", StateExistenceError, http.StatusConflict}
	CodeRecordMissing      = Code{"record-missing", StateExistenceError, http.StatusNotFound}
	CodeRecordActive       = Code{"record-active", StateActivityError, http.StatusConflict}
	CodeRecordInactive     = Code{"record-inactive", StateActivityError, http.StatusConflict}
	CodeOpponentPresent    = Code{"opponent-present", OpponentStateError, http.StatusConflict}
	CodeOpponentAbsent     = Code{"opponent-absent", OpponentStateError, http.StatusConflict}
	CodeRequirementUnmet   = Code{"join-requirement-unmet", RequirementMismatchError, http.StatusUnprocessableEntity}
	CodeOutcomeUnset       = Code{"outcome-unset", OutcomeStateError, http.StatusConflict}
	CodeAlreadyClaimed     = Code{"already-claimed", AlreadyClaimedError, http.StatusConflict}
	CodeNotAPlayer         = Code{"not-a-player", AuthorizationError, http.StatusForbidden}
	CodeInputArityMismatch = Code{"input-arity-mismatch", InputShapeError, http.StatusBadRequest}
)

func (c Code) New(msg string, args ...any) *Error {
	return &Error{
		code:  c,
		cause: fmt.Errorf(msg, args...),
	}
}

func (c Code) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Kind)
}

// Sentinels for errors.Is; any *Error with the same code matches.
var (
	ErrRecordExists       = CodeRecordExists.New("game already exists")
	ErrRecordMissing      = CodeRecordMissing.New("game not found")
	ErrRecordActive       = CodeRecordActive.New("game is still active")
	ErrRecordInactive     = CodeRecordInactive.New("game is no longer active")
	ErrOpponentPresent    = CodeOpponentPresent.New("game already has an opponent")
	ErrOpponentAbsent     = CodeOpponentAbsent.New("game has no opponent")
	ErrRequirementUnmet   = CodeRequirementUnmet.New("stake does not match join requirement")
	ErrOutcomeUnset       = CodeOutcomeUnset.New("outcome not declared")
	ErrAlreadyClaimed     = CodeAlreadyClaimed.New("game already claimed")
	ErrNotAPlayer         = CodeNotAPlayer.New("caller is not a player")
	ErrInputArityMismatch = CodeInputArityMismatch.New("descriptor sequences differ in length")
)

type Error struct {
	code  Code
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.code.Name, e.cause.Error())
}

func (e *Error) Code() Code {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}

	return other.code == e.code
}
