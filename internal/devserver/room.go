package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/paco-sync/internal/protocol"
	"github.com/rickgao/paco-sync/internal/rules"
)

// Errors
var (
	ErrMatchNotFound = errors.New("match not found")
	ErrMatchOver     = errors.New("match is over")
	ErrTimerRunning  = errors.New("timer already running")
	ErrNoTimer       = errors.New("no timer configured")
)

// room is the authoritative state of one match. Callers hold Server.mu.
type room struct {
	key     string
	engine  rules.TurnEngine
	history []protocol.StampedAction
	pos     rules.Position
	seq     uint64
	timer   *protocol.Timer
	victory protocol.VictoryState

	subscribers map[*peer]struct{}
}

func newRoom(key string, engine rules.TurnEngine) *room {
	return &room{
		key:         key,
		engine:      engine,
		pos:         engine.Initial(),
		victory:     protocol.VictoryState{Kind: protocol.VictoryRunning},
		subscribers: make(map[*peer]struct{}),
	}
}

// state builds the push for the current position.
func (r *room) state(rollback bool) protocol.CurrentMatchState {
	legal := r.engine.LegalActions(r.pos)
	if legal == nil || r.victory.IsOver() {
		legal = []protocol.Action{}
	}
	var timer *protocol.Timer
	if r.timer != nil {
		t := *r.timer
		timer = &t
	}
	history := make([]protocol.StampedAction, len(r.history))
	copy(history, r.history)

	return protocol.CurrentMatchState{
		Key:               r.key,
		Actions:           history,
		LegalActions:      legal,
		IsRollback:        rollback,
		ControllingPlayer: r.engine.ControllingPlayer(r.pos),
		Timer:             timer,
		VictoryState:      r.victory,
		Seq:               r.seq,
	}
}

// apply validates and records one action at now.
func (r *room) apply(action protocol.Action, now time.Time) error {
	if r.victory.IsOver() {
		return ErrMatchOver
	}

	mover := r.engine.ControllingPlayer(r.pos)
	if r.chargeClock(now) {
		r.seq++
		return fmt.Errorf("%w: %s ran out of time", ErrMatchOver, mover)
	}

	next, err := r.engine.Apply(r.pos, action)
	if err != nil {
		return err
	}
	r.pos = next
	r.history = append(r.history, protocol.StampedAction{Action: action, Timestamp: now})
	r.seq++

	if r.timer != nil && r.timer.State.Kind == protocol.TimerRunning &&
		r.engine.ControllingPlayer(next) != mover {
		r.addTime(mover, r.timer.Config.Increment)
	}
	return nil
}

// rollback drops the actions of the move in progress, back to the last
// settled position. It reports whether anything was removed.
func (r *room) rollback() (bool, error) {
	if r.engine.Settled(r.pos) {
		return false, nil
	}

	pos := r.engine.Initial()
	keep := 0
	for i, a := range protocol.Actions(r.history) {
		next, err := r.engine.Apply(pos, a)
		if err != nil {
			return false, fmt.Errorf("history replay at %d: %w", i, err)
		}
		pos = next
		if r.engine.Settled(pos) {
			keep = i + 1
		}
	}

	replayed, err := rules.Replay(r.engine, protocol.Actions(r.history[:keep]))
	if err != nil {
		return false, err
	}
	r.history = r.history[:keep]
	r.pos = replayed
	r.seq++
	return true, nil
}

func (r *room) setTimer(cfg protocol.TimerConfig, now time.Time) error {
	if r.timer != nil && r.timer.State.Kind == protocol.TimerRunning {
		return ErrTimerRunning
	}
	r.timer = &protocol.Timer{
		LastTimestamp: now,
		TimeLeftWhite: cfg.TimeBudgetWhite,
		TimeLeftBlack: cfg.TimeBudgetBlack,
		State:         protocol.TimerState{Kind: protocol.TimerNotStarted},
		Config:        cfg,
	}
	r.seq++
	return nil
}

func (r *room) startTimer(now time.Time) error {
	if r.timer == nil {
		return ErrNoTimer
	}
	if r.timer.State.Kind == protocol.TimerRunning {
		return ErrTimerRunning
	}
	r.timer.State = protocol.TimerState{Kind: protocol.TimerRunning}
	r.timer.LastTimestamp = now
	r.seq++
	return nil
}

// chargeClock bills the controlling player for the time since the last
// timestamp. It reports whether that player flagged.
func (r *room) chargeClock(now time.Time) bool {
	if r.timer == nil || r.timer.State.Kind != protocol.TimerRunning {
		return false
	}
	mover := r.engine.ControllingPlayer(r.pos)
	elapsed := now.Sub(r.timer.LastTimestamp)
	r.addTime(mover, -elapsed)
	r.timer.LastTimestamp = now

	if r.timer.TimeLeft(mover) > 0 {
		return false
	}
	r.addTime(mover, -r.timer.TimeLeft(mover))
	r.timer.State = protocol.TimerState{Kind: protocol.TimerTimeout, Loser: mover}
	r.victory = protocol.VictoryState{Kind: protocol.VictoryTimeout, Winner: mover.Other()}
	return true
}

func (r *room) addTime(c protocol.PlayerColor, d time.Duration) {
	if c == protocol.Black {
		r.timer.TimeLeftBlack += d
	} else {
		r.timer.TimeLeftWhite += d
	}
}
