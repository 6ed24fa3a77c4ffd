package connection

import (
	"testing"
	"time"
)

func TestBackoff_Sequence(t *testing.T) {
	b := NewBackoff(200*time.Millisecond, 1.2, 0)

	want := []time.Duration{
		200 * time.Millisecond,
		240 * time.Millisecond,
		288 * time.Millisecond,
	}
	for i, w := range want {
		got := b.Next()
		if diff := got - w; diff > time.Millisecond || diff < -time.Millisecond {
			t.Errorf("delay(%d) = %v, want %v", i, got, w)
		}
	}
	if b.Attempt() != 3 {
		t.Errorf("Attempt() = %d, want 3", b.Attempt())
	}

	b.Reset()
	if got := b.Next(); got != 200*time.Millisecond {
		t.Errorf("after Reset, delay(0) = %v, want 200ms", got)
	}
}

func TestBackoff_Cap(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 2, 300*time.Millisecond)

	var last time.Duration
	for i := 0; i < 6; i++ {
		last = b.Next()
	}
	if last != 300*time.Millisecond {
		t.Errorf("capped delay = %v, want 300ms", last)
	}
}

func TestBackoff_FactorBelowOne(t *testing.T) {
	b := NewBackoff(50*time.Millisecond, 0.5, 0)
	for i := 0; i < 3; i++ {
		if got := b.Next(); got < 50*time.Millisecond {
			t.Errorf("delay(%d) = %v, below base", i, got)
		}
	}
}

func TestDelay(t *testing.T) {
	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, 200 * time.Millisecond},
		{1, 240 * time.Millisecond},
		{2, 288 * time.Millisecond},
	}
	for _, tt := range tests {
		got := Delay(200*time.Millisecond, 1.2, tt.n)
		if diff := got - tt.want; diff > time.Millisecond || diff < -time.Millisecond {
			t.Errorf("Delay(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}
