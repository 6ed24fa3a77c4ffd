package drift

import (
	"time"

	"github.com/rickgao/paco-sync/internal/protocol"
)

// Countdown is the remaining time to display for each side.
type Countdown struct {
	White   time.Duration
	Black   time.Duration
	Running bool
}

// For returns the remaining time of one side.
func (c Countdown) For(color protocol.PlayerColor) time.Duration {
	if color == protocol.Black {
		return c.Black
	}
	return c.White
}

// Remaining computes the countdown at local time now. Only the controlling
// player's clock runs, and only while the timer is Running:
//
//	left = time_left - ((now - offset) - last_timestamp), clamped at zero
func Remaining(timer protocol.Timer, controlling protocol.PlayerColor, now time.Time, offset time.Duration) Countdown {
	c := Countdown{White: timer.TimeLeftWhite, Black: timer.TimeLeftBlack}
	if timer.State.Kind != protocol.TimerRunning {
		return c
	}
	c.Running = true

	elapsed := now.Add(-offset).Sub(timer.LastTimestamp)
	if elapsed < 0 {
		elapsed = 0
	}
	left := timer.TimeLeft(controlling) - elapsed
	if left < 0 {
		left = 0
	}
	if controlling == protocol.Black {
		c.Black = left
	} else {
		c.White = left
	}
	return c
}
