package match

import (
	"sync"

	"github.com/rickgao/paco-sync/internal/protocol"
	"github.com/rickgao/paco-sync/internal/rules"
)

// View is a consistent snapshot of a match view.
type View struct {
	Key      string
	Phase    Phase
	State    State
	Position rules.Position
	Err      error
}

// Legal reports whether action may be submitted in this snapshot.
func (v View) Legal(action protocol.Action) bool {
	return v.Phase == PhaseLive && v.State.LegalActions.Contains(action)
}

// Store owns the state of one match view. All mutations go through a
// Reconciler or an Applier built on the same Store.
type Store struct {
	mu       sync.RWMutex
	key      string
	engine   rules.Engine
	phase    Phase
	state    State
	position rules.Position
	failure  error

	// pending counts optimistic actions applied since the last server state.
	pending int
}

// NewStore creates a store for the match key, positioned at the engine's
// initial position.
func NewStore(key string, engine rules.Engine) *Store {
	return &Store{
		key:      key,
		engine:   engine,
		phase:    PhaseWaiting,
		state:    State{LegalActions: NotLoaded()},
		position: engine.Initial(),
	}
}

// Key returns the subscribed match key.
func (s *Store) Key() string { return s.key }

// View returns a snapshot safe to hold after the store moves on.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return View{
		Key:      s.key,
		Phase:    s.phase,
		State:    s.state.clone(),
		Position: s.position,
		Err:      s.failure,
	}
}

// LegalActionsReady reports whether input may be enabled.
func (s *Store) LegalActionsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase == PhaseLive && s.state.LegalActions.IsLoaded()
}

// Phase returns the current lifecycle phase.
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// commit must be called with mu held.
func (s *Store) commit(state State, pos rules.Position) {
	s.state = state
	s.position = pos
	s.phase = PhaseLive
}

// commitServer is commit for authoritative state; it clears pending.
// Must be called with mu held.
func (s *Store) commitServer(state State, pos rules.Position) {
	s.commit(state, pos)
	s.pending = 0
}

// fail must be called with mu held.
func (s *Store) fail(err error) {
	s.phase = PhaseFailed
	s.failure = err
}
