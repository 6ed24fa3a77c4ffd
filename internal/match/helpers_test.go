package match

import (
	"testing"

	"github.com/rickgao/paco-sync/internal/protocol"
	"github.com/rickgao/paco-sync/internal/rules"
)

const testKey = "abc123"

func stamped(actions ...protocol.Action) []protocol.StampedAction {
	out := make([]protocol.StampedAction, len(actions))
	for i, a := range actions {
		out[i] = protocol.StampedAction{Action: a}
	}
	return out
}

// serverState builds the push an honest server would send for history,
// including the engine's legal set.
func serverState(t *testing.T, engine rules.Engine, actions ...protocol.Action) protocol.CurrentMatchState {
	t.Helper()
	pos, err := rules.Replay(engine, actions)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	legal := engine.LegalActions(pos)
	if legal == nil {
		legal = []protocol.Action{}
	}
	return protocol.CurrentMatchState{
		Key:          testKey,
		Actions:      stamped(actions...),
		LegalActions: legal,
		VictoryState: protocol.VictoryState{Kind: protocol.VictoryRunning},
	}
}

func newTestView(t *testing.T) (*Store, *Reconciler, *Applier) {
	t.Helper()
	store := NewStore(testKey, rules.Freeform{})
	return store, NewReconciler(store, nil), NewApplier(store, nil)
}
