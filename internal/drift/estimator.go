package drift

import (
	"errors"
	"time"

	"github.com/rickgao/paco-sync/internal/protocol"
)

// Errors
var (
	ErrNoCheckPending = errors.New("no drift check pending")
	ErrUnknownCheck   = errors.New("drift response does not match pending check")
)

// Sample is one completed round trip.
type Sample struct {
	SendTime    time.Time // T0, local
	BounceTime  time.Time // Tb, server
	ReceiveTime time.Time // T1, local
}

// Offset returns ((T0 + T1) / 2) - Tb: how far the local clock runs ahead of
// the server clock, assuming symmetric latency.
func (s Sample) Offset() time.Duration {
	rtt := s.ReceiveTime.Sub(s.SendTime)
	midpoint := s.SendTime.Add(rtt / 2)
	return midpoint.Sub(s.BounceTime)
}

// RoundTrip returns T1 - T0.
func (s Sample) RoundTrip() time.Duration {
	return s.ReceiveTime.Sub(s.SendTime)
}

// Estimator performs the one-shot exchange. It is not safe for concurrent
// use; the session loop owns it.
type Estimator struct {
	pending  time.Time
	sample   Sample
	offset   time.Duration
	measured bool
}

// Begin records the local send time and returns the message to send.
func (e *Estimator) Begin(now time.Time) protocol.TimeDriftCheck {
	e.pending = now
	return protocol.TimeDriftCheck{Send: now}
}

// Pending reports whether a check was sent and not answered yet.
func (e *Estimator) Pending() bool {
	return !e.pending.IsZero()
}

// Complete consumes the server response received at now and stores the
// resulting offset.
func (e *Estimator) Complete(resp protocol.TimeDriftResponse, now time.Time) (time.Duration, error) {
	if e.pending.IsZero() {
		return 0, ErrNoCheckPending
	}
	if !resp.Send.Equal(e.pending) {
		return 0, ErrUnknownCheck
	}

	e.sample = Sample{SendTime: e.pending, BounceTime: resp.Bounced, ReceiveTime: now}
	e.offset = e.sample.Offset()
	e.measured = true
	e.pending = time.Time{}
	return e.offset, nil
}

// Offset returns the measured offset, or zero before a measurement.
func (e *Estimator) Offset() time.Duration {
	return e.offset
}

// Measured reports whether an offset is available.
func (e *Estimator) Measured() bool {
	return e.measured
}

// Sample returns the last completed sample.
func (e *Estimator) Sample() Sample {
	return e.sample
}

// ServerNow converts a local wall-clock read into server time.
func (e *Estimator) ServerNow(local time.Time) time.Time {
	return local.Add(-e.offset)
}
