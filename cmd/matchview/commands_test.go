package main

import (
	"errors"
	"testing"
	"time"

	"github.com/rickgao/paco-sync/internal/protocol"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"lift 12", command{kind: cmdAction, action: protocol.Lift(12)}},
		{"  PLACE 63 ", command{kind: cmdAction, action: protocol.Place(63)}},
		{"promote queen", command{kind: cmdAction, action: protocol.Promote(protocol.Queen)}},
		{"rollback", command{kind: cmdRollback}},
		{"start", command{kind: cmdStartTimer}},
		{"reconnect", command{kind: cmdReconnect}},
		{"state", command{kind: cmdState}},
		{"legal", command{kind: cmdLegal}},
		{"?", command{kind: cmdHelp}},
		{"exit", command{kind: cmdQuit}},
		{"timer 5m 4m", command{kind: cmdSetTimer, timer: protocol.TimerConfig{
			TimeBudgetWhite: 5 * time.Minute,
			TimeBudgetBlack: 4 * time.Minute,
		}}},
		{"timer 5m 5m 2s", command{kind: cmdSetTimer, timer: protocol.TimerConfig{
			TimeBudgetWhite: 5 * time.Minute,
			TimeBudgetBlack: 5 * time.Minute,
			Increment:       2 * time.Second,
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			if err != nil {
				t.Fatalf("parseCommand(%q) error = %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("parseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		line    string
		unknown bool
	}{
		{"", true},
		{"castle", true},
		{"lift", false},
		{"lift x", false},
		{"lift 64", false},
		{"place -1", false},
		{"promote king", false},
		{"timer 5m", false},
		{"timer 5m -1s", false},
		{"timer 5m 5m 1s 1s", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := parseCommand(tt.line)
			if err == nil {
				t.Fatalf("parseCommand(%q) error = nil", tt.line)
			}
			if got := errors.Is(err, errUnknownCommand); got != tt.unknown {
				t.Errorf("errors.Is(err, errUnknownCommand) = %v, want %v (err = %v)", got, tt.unknown, err)
			}
		})
	}
}
