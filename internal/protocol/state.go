package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// PlayerColor is the side a player controls.
type PlayerColor string

const (
	White PlayerColor = "White"
	Black PlayerColor = "Black"
)

// Other returns the opposing color.
func (c PlayerColor) Other() PlayerColor {
	if c == White {
		return Black
	}
	return White
}

// VictoryKind discriminates VictoryState.
type VictoryKind string

const (
	VictoryRunning        VictoryKind = "Running"
	VictoryPaco           VictoryKind = "PacoVictory"
	VictoryTimeout        VictoryKind = "TimeoutVictory"
	VictoryNoProgressDraw VictoryKind = "NoProgressDraw"
	VictoryRepetitionDraw VictoryKind = "RepetitionDraw"
)

// VictoryState reports whether the match is over and who won.
type VictoryState struct {
	Kind   VictoryKind
	Winner PlayerColor // PacoVictory and TimeoutVictory only
}

// IsOver reports whether the match has ended.
func (v VictoryState) IsOver() bool {
	return v.Kind != "" && v.Kind != VictoryRunning
}

// MarshalJSON encodes unit variants as strings and winner variants as
// one-key objects.
func (v VictoryState) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case VictoryPaco, VictoryTimeout:
		return json.Marshal(map[VictoryKind]PlayerColor{v.Kind: v.Winner})
	case "":
		return json.Marshal(VictoryRunning)
	default:
		return json.Marshal(v.Kind)
	}
}

// UnmarshalJSON accepts either representation.
func (v *VictoryState) UnmarshalJSON(data []byte) error {
	var unit VictoryKind
	if err := json.Unmarshal(data, &unit); err == nil {
		switch unit {
		case VictoryRunning, VictoryNoProgressDraw, VictoryRepetitionDraw:
			*v = VictoryState{Kind: unit}
			return nil
		}
		return fmt.Errorf("unknown victory state %q", unit)
	}

	var tagged map[VictoryKind]PlayerColor
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("victory state: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("victory state: expected one variant, got %d", len(tagged))
	}
	for kind, winner := range tagged {
		if kind != VictoryPaco && kind != VictoryTimeout {
			return fmt.Errorf("unknown victory state %q", kind)
		}
		*v = VictoryState{Kind: kind, Winner: winner}
	}
	return nil
}

// TimerStateKind discriminates TimerState.
type TimerStateKind string

const (
	TimerNotStarted TimerStateKind = "NotStarted"
	TimerRunning    TimerStateKind = "Running"
	TimerTimeout    TimerStateKind = "Timeout"
	TimerStopped    TimerStateKind = "Stopped"
)

// TimerState is the lifecycle state of a match timer.
type TimerState struct {
	Kind  TimerStateKind
	Loser PlayerColor // Timeout only: the side that ran out of time
}

// MarshalJSON encodes Timeout as {"Timeout":"White"} and the rest as strings.
func (s TimerState) MarshalJSON() ([]byte, error) {
	if s.Kind == TimerTimeout {
		return json.Marshal(map[TimerStateKind]PlayerColor{TimerTimeout: s.Loser})
	}
	if s.Kind == "" {
		return json.Marshal(TimerNotStarted)
	}
	return json.Marshal(s.Kind)
}

// UnmarshalJSON accepts either representation.
func (s *TimerState) UnmarshalJSON(data []byte) error {
	var unit TimerStateKind
	if err := json.Unmarshal(data, &unit); err == nil {
		switch unit {
		case TimerNotStarted, TimerRunning, TimerStopped:
			*s = TimerState{Kind: unit}
			return nil
		}
		return fmt.Errorf("unknown timer state %q", unit)
	}

	var tagged map[TimerStateKind]PlayerColor
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("timer state: %w", err)
	}
	loser, ok := tagged[TimerTimeout]
	if !ok || len(tagged) != 1 {
		return fmt.Errorf("timer state: unexpected %s", data)
	}
	*s = TimerState{Kind: TimerTimeout, Loser: loser}
	return nil
}

// TimerConfig is the budget a timer is created with.
type TimerConfig struct {
	TimeBudgetWhite time.Duration
	TimeBudgetBlack time.Duration
	Increment       time.Duration // zero means no increment
}

type timerConfigWire struct {
	TimeBudgetWhite float64  `json:"time_budget_white"`
	TimeBudgetBlack float64  `json:"time_budget_black"`
	Increment       *float64 `json:"increment"`
}

// MarshalJSON encodes durations as float seconds.
func (c TimerConfig) MarshalJSON() ([]byte, error) {
	w := timerConfigWire{
		TimeBudgetWhite: toSeconds(c.TimeBudgetWhite),
		TimeBudgetBlack: toSeconds(c.TimeBudgetBlack),
	}
	if c.Increment > 0 {
		inc := toSeconds(c.Increment)
		w.Increment = &inc
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes float seconds.
func (c *TimerConfig) UnmarshalJSON(data []byte) error {
	var w timerConfigWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("timer config: %w", err)
	}
	c.TimeBudgetWhite = fromSeconds(w.TimeBudgetWhite)
	c.TimeBudgetBlack = fromSeconds(w.TimeBudgetBlack)
	c.Increment = 0
	if w.Increment != nil {
		c.Increment = fromSeconds(*w.Increment)
	}
	return nil
}

// Timer is the server-authoritative clock of a match. Clients only read it.
type Timer struct {
	LastTimestamp time.Time
	TimeLeftWhite time.Duration
	TimeLeftBlack time.Duration
	State         TimerState
	Config        TimerConfig
}

// TimeLeft returns the stored remaining time of one side.
func (t Timer) TimeLeft(c PlayerColor) time.Duration {
	if c == Black {
		return t.TimeLeftBlack
	}
	return t.TimeLeftWhite
}

type timerWire struct {
	LastTimestamp time.Time   `json:"last_timestamp"`
	TimeLeftWhite float64     `json:"time_left_white"`
	TimeLeftBlack float64     `json:"time_left_black"`
	TimerState    TimerState  `json:"timer_state"`
	Config        TimerConfig `json:"config"`
}

// MarshalJSON encodes durations as float seconds.
func (t Timer) MarshalJSON() ([]byte, error) {
	return json.Marshal(timerWire{
		LastTimestamp: t.LastTimestamp,
		TimeLeftWhite: toSeconds(t.TimeLeftWhite),
		TimeLeftBlack: toSeconds(t.TimeLeftBlack),
		TimerState:    t.State,
		Config:        t.Config,
	})
}

// UnmarshalJSON decodes float seconds.
func (t *Timer) UnmarshalJSON(data []byte) error {
	var w timerWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("timer: %w", err)
	}
	*t = Timer{
		LastTimestamp: w.LastTimestamp,
		TimeLeftWhite: fromSeconds(w.TimeLeftWhite),
		TimeLeftBlack: fromSeconds(w.TimeLeftBlack),
		State:         w.TimerState,
		Config:        w.Config,
	}
	return nil
}

func toSeconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}

func fromSeconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1000)) * time.Millisecond
}
