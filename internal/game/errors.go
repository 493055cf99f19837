// internal/game/errors.go
package game

import "errors"

// ErrorClass buckets a GameError for adapter mapping. Validation and
// conflict errors are reported back to the acting user with no state
// mutation; not-found errors usually mean the session was evicted.
type ErrorClass int

const (
	ClassValidation ErrorClass = iota
	ClassConflict
	ClassNotFound
)

// GameError is the only error type the engine and registry return to the
// adapter. There are no fatal errors: internal inconsistencies degrade to
// not-found so one session's fault never takes the process down.
type GameError struct {
	Code    string
	Class   ErrorClass
	Message string
}

func (e *GameError) Error() string { return e.Message }

func validation(code, msg string) *GameError {
	return &GameError{Code: code, Class: ClassValidation, Message: msg}
}

func conflict(code, msg string) *GameError {
	return &GameError{Code: code, Class: ClassConflict, Message: msg}
}

func notFound(code, msg string) *GameError {
	return &GameError{Code: code, Class: ClassNotFound, Message: msg}
}

var (
	// Validation: the command itself was malformed for the current state.
	ErrNotYourTurn     = validation("not_your_turn", "it's not your turn")
	ErrIllegalCard     = validation("illegal_card", "that card cannot be played on the current card")
	ErrNotInHand       = validation("not_in_hand", "that card is no longer at that position in your hand")
	ErrWildNeedsColor  = validation("wild_needs_color", "a wild card needs a color before it can be played")
	ErrNoPendingWild   = validation("no_pending_wild", "there is no wild card waiting for a color")
	ErrIndexOutOfRange = validation("index_out_of_range", "that card position does not exist")
	ErrTooLate         = validation("too_late", "you were too late, the call-out was already resolved")

	// Conflict: the command collided with a business-level consistency rule.
	ErrChannelBusy      = conflict("channel_busy", "there is already an active game in this channel")
	ErrHostBusy         = conflict("host_busy", "you are already hosting or playing another game")
	ErrAlreadyStarted   = conflict("already_started", "this game has already started")
	ErrAlreadyJoined    = conflict("already_joined", "you are already in a game")
	ErrIsHost           = conflict("is_host", "the host cannot join or leave their own lobby; cancel the game instead")
	ErrNotHost          = conflict("not_host", "only the host can do that")
	ErrFull             = conflict("full", "this game is full")
	ErrNotJoined        = conflict("not_joined", "you are not in this game")
	ErrNotEnoughPlayers = conflict("not_enough_players", "at least two players are needed to start")
	ErrGameOver         = conflict("game_over", "this game is already over")

	// Not found: the session was evicted, never existed, or the caller is
	// not a member of it.
	ErrNoSuchSession = notFound("no_such_session", "there is no game here; start one with a new session")
	ErrNotAMember    = notFound("not_a_member", "you are not in the game going on here")
	ErrNotStarted    = notFound("not_started", "the game has not started yet")
)

// classOf extracts the class of a GameError, defaulting to not-found so an
// unexpected internal error is treated as a recoverable lookup failure.
func classOf(err error) ErrorClass {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Class
	}
	return ClassNotFound
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return err != nil && classOf(err) == ClassValidation }

// IsConflict reports whether err is a state-conflict error.
func IsConflict(err error) bool { return err != nil && classOf(err) == ClassConflict }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return err != nil && classOf(err) == ClassNotFound }

// CodeOf returns the machine code of a GameError, or "internal" otherwise.
func CodeOf(err error) string {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return "internal"
}
