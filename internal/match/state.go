package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/rickgao/paco-sync/internal/protocol"
	"github.com/rickgao/paco-sync/internal/rules"
)

// Errors
var (
	ErrLegalActionsNotLoaded = errors.New("legal actions not loaded")
	ErrActionNotLegal        = errors.New("action not in legal set")
	ErrNoState               = errors.New("no match state received yet")
	ErrReplayFailed          = errors.New("replay failed")
	ErrViewFailed            = errors.New("match view failed")
)

// LegalActions is either NotLoaded (stale, waiting for the server to
// recompute) or Loaded with a set of actions.
type LegalActions struct {
	loaded bool
	list   []protocol.Action
}

// NotLoaded returns the stale marker.
func NotLoaded() LegalActions { return LegalActions{} }

// Loaded wraps a fresh legal set. A nil slice is treated as an empty set.
func Loaded(actions []protocol.Action) LegalActions {
	return LegalActions{loaded: true, list: slices.Clone(actions)}
}

// IsLoaded reports whether the set is fresh.
func (l LegalActions) IsLoaded() bool { return l.loaded }

// Contains reports whether action is in a loaded set.
func (l LegalActions) Contains(action protocol.Action) bool {
	return l.loaded && slices.Contains(l.list, action)
}

// Actions returns a copy of the set, nil when not loaded.
func (l LegalActions) Actions() []protocol.Action {
	if !l.loaded {
		return nil
	}
	return slices.Clone(l.list)
}

func (l LegalActions) String() string {
	if !l.loaded {
		return "NotLoaded"
	}
	return fmt.Sprintf("Loaded(%d)", len(l.list))
}

// State is the current match state as held by this client.
type State struct {
	Key               string
	History           []protocol.StampedAction
	LegalActions      LegalActions
	ControllingPlayer protocol.PlayerColor
	Timer             *protocol.Timer
	VictoryState      protocol.VictoryState
	Seq               uint64

	SetupOptions json.RawMessage
	WhitePlayer  json.RawMessage
	BlackPlayer  json.RawMessage
	WhiteControl string
	BlackControl string
}

// Actions returns the history without timestamps.
func (s State) Actions() []protocol.Action {
	return protocol.Actions(s.History)
}

func (s State) clone() State {
	out := s
	out.History = slices.Clone(s.History)
	if s.Timer != nil {
		t := *s.Timer
		out.Timer = &t
	}
	return out
}

// stateFromServer converts a push into the stored form.
func stateFromServer(msg protocol.CurrentMatchState) State {
	legal := NotLoaded()
	if msg.LegalActions != nil {
		legal = Loaded(msg.LegalActions)
	}
	s := State{
		Key:               msg.Key,
		History:           slices.Clone(msg.Actions),
		LegalActions:      legal,
		ControllingPlayer: msg.ControllingPlayer,
		VictoryState:      msg.VictoryState,
		Seq:               msg.Seq,
		SetupOptions:      msg.SetupOptions,
		WhitePlayer:       msg.WhitePlayer,
		BlackPlayer:       msg.BlackPlayer,
		WhiteControl:      msg.WhiteControl,
		BlackControl:      msg.BlackControl,
	}
	if msg.Timer != nil {
		t := *msg.Timer
		s.Timer = &t
	}
	return s
}

// Phase is the lifecycle of a match view.
type Phase int

const (
	// PhaseWaiting: opened, no state received yet.
	PhaseWaiting Phase = iota
	// PhaseLive: receiving and rendering state.
	PhaseLive
	// PhaseFailed: a full replay was rejected; the board can no longer be trusted.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseLive:
		return "live"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ReplayError is the fatal "replay failed" condition of a match view.
type ReplayError struct {
	Key  string
	Step *rules.StepError
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay of match %s failed at %v", e.Key, e.Step)
}

// Unwrap exposes both ErrReplayFailed and the engine error.
func (e *ReplayError) Unwrap() []error {
	return []error{ErrReplayFailed, e.Step}
}
