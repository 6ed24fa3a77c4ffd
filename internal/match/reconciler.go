package match

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/paco-sync/internal/protocol"
	"github.com/rickgao/paco-sync/internal/rules"
)

// Mode is the path a server push took through the reconciler.
type Mode int

const (
	// ModeIgnored: the push was dropped without touching the store.
	ModeIgnored Mode = iota
	// ModeFresh: the first state for this view, projected by full replay.
	ModeFresh
	// ModeIncremental: the old history was a prefix; only the suffix was applied.
	ModeIncremental
	// ModeReplay: histories diverged; the board was rebuilt from scratch.
	ModeReplay
)

func (m Mode) String() string {
	switch m {
	case ModeIgnored:
		return "ignored"
	case ModeFresh:
		return "fresh"
	case ModeIncremental:
		return "incremental"
	case ModeReplay:
		return "replay"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Outcome describes what a push did to the store.
type Outcome struct {
	Mode Mode
	// Applied is the suffix applied incrementally, for animation. Empty for
	// the other modes.
	Applied []protocol.Action
	// Reason is set when Mode is ModeIgnored.
	Reason string
}

// Reconciler merges server pushes into a Store.
type Reconciler struct {
	store  *Store
	logger *slog.Logger
}

// NewReconciler creates a reconciler for store.
func NewReconciler(store *Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:  store,
		logger: logger.With("component", "reconciler", "match", store.key),
	}
}

// ApplyConnectionSuccess replaces the view wholesale with the state carried by
// a (re)subscription acknowledgement.
func (r *Reconciler) ApplyConnectionSuccess(msg protocol.MatchConnectionSuccess) (Outcome, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseFailed {
		return Outcome{Mode: ModeIgnored, Reason: "view failed"}, ErrViewFailed
	}
	if msg.Key != s.key {
		r.logger.Warn("connection success for other match ignored", "got", msg.Key)
		return Outcome{Mode: ModeIgnored, Reason: "key mismatch"}, nil
	}

	next := stateFromServer(msg.State)
	next.Key = msg.Key
	return r.replace(next, ModeFresh)
}

// ApplyServerUpdate merges a CurrentMatchState push. When the stored history
// is a prefix of the pushed one only the suffix is applied; otherwise the
// pushed history is replayed from the initial position. A push for another
// match, or with a seq older than the last one seen, is ignored. A push
// repeating the last seq is ignored too unless local actions were applied
// since; then it is how the server corrects a rejected move.
func (r *Reconciler) ApplyServerUpdate(msg protocol.CurrentMatchState) (Outcome, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseFailed {
		return Outcome{Mode: ModeIgnored, Reason: "view failed"}, ErrViewFailed
	}
	if msg.Key != s.key {
		r.logger.Debug("update for other match ignored", "got", msg.Key)
		return Outcome{Mode: ModeIgnored, Reason: "key mismatch"}, nil
	}

	next := stateFromServer(msg)

	if s.phase == PhaseWaiting || s.state.Key != msg.Key {
		return r.replace(next, ModeFresh)
	}
	if msg.Seq > 0 && (msg.Seq < s.state.Seq || (msg.Seq == s.state.Seq && s.pending == 0)) {
		r.logger.Debug("stale update ignored", "seq", msg.Seq, "last_seq", s.state.Seq)
		return Outcome{Mode: ModeIgnored, Reason: "stale seq"}, nil
	}
	if msg.Seq == 0 {
		next.Seq = s.state.Seq
	}
	if msg.IsRollback {
		return r.replace(next, ModeReplay)
	}

	suffix, ok := HistoryDiff(s.state.Actions(), next.Actions())
	if !ok {
		return r.replace(next, ModeReplay)
	}

	pos, err := rules.ApplyAll(s.engine, s.position, suffix)
	if err != nil {
		// The local board disagrees with the server even though the history
		// matches; trust the history.
		r.logger.Warn("incremental apply rejected, replaying", "error", err)
		return r.replace(next, ModeReplay)
	}
	s.commitServer(next, pos)
	return Outcome{Mode: ModeIncremental, Applied: suffix}, nil
}

// replace must be called with store.mu held.
func (r *Reconciler) replace(next State, mode Mode) (Outcome, error) {
	s := r.store
	pos, err := rules.Replay(s.engine, next.Actions())
	if err != nil {
		var step *rules.StepError
		if !errors.As(err, &step) {
			step = &rules.StepError{Index: -1, Err: err}
		}
		rerr := &ReplayError{Key: s.key, Step: step}
		s.fail(rerr)
		r.logger.Error("replay failed", "error", rerr, "history_len", len(next.History))
		return Outcome{Mode: ModeIgnored, Reason: "replay failed"}, rerr
	}
	s.commitServer(next, pos)
	return Outcome{Mode: mode}, nil
}
