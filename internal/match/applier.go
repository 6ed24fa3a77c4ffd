package match

import (
	"fmt"
	"log/slog"

	"github.com/rickgao/paco-sync/internal/protocol"
)

// Applier applies local actions to a Store before the server confirms them.
type Applier struct {
	store  *Store
	logger *slog.Logger
}

// NewApplier creates an applier for store.
func NewApplier(store *Store, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{
		store:  store,
		logger: logger.With("component", "applier", "match", store.key),
	}
}

// Submit validates action against the loaded legal set, appends it to the
// local history, marks legal actions NotLoaded, and returns the DoAction
// message to send. Nothing is mutated when an error is returned.
func (a *Applier) Submit(action protocol.Action) (protocol.DoAction, error) {
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseFailed:
		return protocol.DoAction{}, ErrViewFailed
	case PhaseWaiting:
		return protocol.DoAction{}, ErrNoState
	}
	if !s.state.LegalActions.IsLoaded() {
		return protocol.DoAction{}, ErrLegalActionsNotLoaded
	}
	if !s.state.LegalActions.Contains(action) {
		return protocol.DoAction{}, fmt.Errorf("%w: %s", ErrActionNotLegal, action)
	}

	pos, err := s.engine.Apply(s.position, action)
	if err != nil {
		return protocol.DoAction{}, fmt.Errorf("apply %s: %w", action, err)
	}

	next := s.state.clone()
	next.History = append(next.History, protocol.StampedAction{Action: action})
	next.LegalActions = NotLoaded()
	s.commit(next, pos)
	s.pending++

	a.logger.Debug("optimistic action applied", "action", action, "history_len", len(next.History))
	return protocol.DoAction{Key: s.key, Action: action}, nil
}

// Rollback returns the rollback request for this match. Local state is left
// alone; the server answers with a CurrentMatchState marked as a rollback.
func (a *Applier) Rollback() protocol.Rollback {
	return protocol.Rollback{Key: a.store.key}
}
