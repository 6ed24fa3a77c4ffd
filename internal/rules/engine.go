package rules

import (
	"errors"
	"fmt"

	"github.com/rickgao/paco-sync/internal/protocol"
)

// ErrIllegalMove is returned when an engine rejects an action.
var ErrIllegalMove = errors.New("illegal move")

// Position is an engine-owned, immutable board value.
type Position any

// Engine is the board rules collaborator.
type Engine interface {
	// Initial returns the starting position of a match.
	Initial() Position

	// Apply returns the position after the action, or an error wrapping
	// ErrIllegalMove.
	Apply(pos Position, action protocol.Action) (Position, error)

	// LegalActions lists the actions permitted in pos.
	LegalActions(pos Position) []protocol.Action
}

// TurnEngine is an Engine that can also tell whose turn it is and whether a
// move is in progress. The dev server needs it to compute rollbacks.
type TurnEngine interface {
	Engine
	ControllingPlayer(pos Position) protocol.PlayerColor
	Settled(pos Position) bool
}

// StepError reports which action of a sequence an engine rejected.
type StepError struct {
	Index  int
	Action protocol.Action
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("action %d (%s): %v", e.Index, e.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ApplyAll applies actions in order starting at pos. The index reported in a
// StepError is relative to actions.
func ApplyAll(e Engine, pos Position, actions []protocol.Action) (Position, error) {
	for i, action := range actions {
		next, err := e.Apply(pos, action)
		if err != nil {
			return pos, &StepError{Index: i, Action: action, Err: err}
		}
		pos = next
	}
	return pos, nil
}

// Replay projects a full history from the initial position.
func Replay(e Engine, history []protocol.Action) (Position, error) {
	return ApplyAll(e, e.Initial(), history)
}

// IsLegal reports whether action is in the engine's legal set for pos.
func IsLegal(e Engine, pos Position, action protocol.Action) bool {
	for _, a := range e.LegalActions(pos) {
		if a == action {
			return true
		}
	}
	return false
}
