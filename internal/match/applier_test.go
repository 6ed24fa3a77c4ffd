package match

import (
	"errors"
	"testing"

	"github.com/rickgao/paco-sync/internal/protocol"
	"github.com/rickgao/paco-sync/internal/rules"
)

func TestApplier_OptimisticThenConfirmed(t *testing.T) {
	store, rec, app := newTestView(t)
	engine := rules.Freeform{}

	if _, err := rec.ApplyConnectionSuccess(protocol.MatchConnectionSuccess{
		Key:   testKey,
		State: serverState(t, engine),
	}); err != nil {
		t.Fatalf("ApplyConnectionSuccess() error = %v", err)
	}

	msg, err := app.Submit(protocol.Lift(12))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if msg.Key != testKey || msg.Action != protocol.Lift(12) {
		t.Errorf("Submit() = %+v, want DoAction{%s Lift(12)}", msg, testKey)
	}

	view := store.View()
	if got := view.State.Actions(); len(got) != 1 || got[0] != protocol.Lift(12) {
		t.Errorf("History = %v, want [Lift(12)]", got)
	}
	if view.State.LegalActions.IsLoaded() {
		t.Errorf("LegalActions = %v, want NotLoaded", view.State.LegalActions)
	}
	if store.LegalActionsReady() {
		t.Errorf("LegalActionsReady() = true, want false")
	}
	optimistic := view.Position

	out, err := rec.ApplyServerUpdate(serverState(t, engine, protocol.Lift(12)))
	if err != nil {
		t.Fatalf("ApplyServerUpdate() error = %v", err)
	}
	if out.Mode != ModeIncremental || len(out.Applied) != 0 {
		t.Errorf("confirmation = %v %v, want incremental with empty suffix", out.Mode, out.Applied)
	}
	if got := store.View().Position; got != optimistic {
		t.Errorf("Position changed on confirmation: %v, want %v", got, optimistic)
	}
	if !store.LegalActionsReady() {
		t.Errorf("LegalActionsReady() = false after confirmation")
	}
}

func TestApplier_Rejections(t *testing.T) {
	engine := rules.Freeform{}

	t.Run("no state", func(t *testing.T) {
		_, _, app := newTestView(t)
		if _, err := app.Submit(protocol.Lift(12)); !errors.Is(err, ErrNoState) {
			t.Errorf("Submit() error = %v, want ErrNoState", err)
		}
	})

	t.Run("not loaded", func(t *testing.T) {
		_, rec, app := newTestView(t)
		state := serverState(t, engine)
		state.LegalActions = nil
		rec.ApplyServerUpdate(state)
		if _, err := app.Submit(protocol.Lift(12)); !errors.Is(err, ErrLegalActionsNotLoaded) {
			t.Errorf("Submit() error = %v, want ErrLegalActionsNotLoaded", err)
		}
	})

	t.Run("second submit before confirmation", func(t *testing.T) {
		_, rec, app := newTestView(t)
		rec.ApplyServerUpdate(serverState(t, engine))
		if _, err := app.Submit(protocol.Lift(12)); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if _, err := app.Submit(protocol.Place(20)); !errors.Is(err, ErrLegalActionsNotLoaded) {
			t.Errorf("Submit() error = %v, want ErrLegalActionsNotLoaded", err)
		}
	})

	t.Run("not legal", func(t *testing.T) {
		store, rec, app := newTestView(t)
		rec.ApplyServerUpdate(serverState(t, engine))
		if _, err := app.Submit(protocol.Lift(50)); !errors.Is(err, ErrActionNotLegal) {
			t.Errorf("Submit() error = %v, want ErrActionNotLegal", err)
		}
		if got := len(store.View().State.History); got != 0 {
			t.Errorf("len(History) = %d, want 0", got)
		}
	})
}

func TestApplier_DivergenceCorrectedByReplay(t *testing.T) {
	store, rec, app := newTestView(t)
	engine := rules.Freeform{}

	rec.ApplyServerUpdate(serverState(t, engine))
	app.Submit(protocol.Lift(12))

	// The server accepted a different lift.
	out, err := rec.ApplyServerUpdate(serverState(t, engine, protocol.Lift(13)))
	if err != nil {
		t.Fatalf("ApplyServerUpdate() error = %v", err)
	}
	if out.Mode != ModeReplay {
		t.Errorf("Mode = %v, want %v", out.Mode, ModeReplay)
	}
	want, _ := rules.Replay(engine, []protocol.Action{protocol.Lift(13)})
	if got := store.View().Position; got != want {
		t.Errorf("Position = %v, want %v", got, want)
	}
}

func TestApplier_RollbackLeavesState(t *testing.T) {
	store, rec, app := newTestView(t)
	rec.ApplyServerUpdate(serverState(t, rules.Freeform{}, protocol.Lift(12)))
	before := store.View()

	msg := app.Rollback()
	if msg.Key != testKey {
		t.Errorf("Rollback().Key = %q, want %q", msg.Key, testKey)
	}
	if after := store.View(); after.Position != before.Position || len(after.State.History) != 1 {
		t.Errorf("Rollback() mutated the store")
	}
}
