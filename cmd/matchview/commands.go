package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/paco-sync/internal/protocol"
)

var errUnknownCommand = errors.New("unknown command")

type commandKind int

const (
	cmdAction commandKind = iota
	cmdRollback
	cmdSetTimer
	cmdStartTimer
	cmdReconnect
	cmdState
	cmdLegal
	cmdHelp
	cmdQuit
)

// command is one parsed line of stdin.
type command struct {
	kind   commandKind
	action protocol.Action
	timer  protocol.TimerConfig
}

const helpText = `commands:
  lift <tile>             lift the piece on tile 0-63
  place <tile>            place the lifted piece
  promote <piece>         promote to rook, knight, bishop or queen
  rollback                undo the move in progress
  timer <white> <black> [increment]
                          configure the clock, e.g. "timer 5m 5m 2s"
  start                   start the clock
  reconnect               reconnect now
  state                   print the current view
  legal                   print the legal actions
  quit`

func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return command{}, fmt.Errorf("%w: empty line", errUnknownCommand)
	}

	switch fields[0] {
	case "lift", "place":
		if len(fields) != 2 {
			return command{}, fmt.Errorf("usage: %s <tile>", fields[0])
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return command{}, fmt.Errorf("tile %q: %w", fields[1], err)
		}
		tile := protocol.Tile(n)
		if !tile.Valid() {
			return command{}, fmt.Errorf("tile %d out of range", n)
		}
		if fields[0] == "lift" {
			return command{kind: cmdAction, action: protocol.Lift(tile)}, nil
		}
		return command{kind: cmdAction, action: protocol.Place(tile)}, nil

	case "promote":
		if len(fields) != 2 {
			return command{}, errors.New("usage: promote <piece>")
		}
		for _, p := range protocol.PromotionOptions {
			if strings.EqualFold(string(p), fields[1]) {
				return command{kind: cmdAction, action: protocol.Promote(p)}, nil
			}
		}
		return command{}, fmt.Errorf("%q is not a promotion option", fields[1])

	case "timer":
		if len(fields) < 3 || len(fields) > 4 {
			return command{}, errors.New("usage: timer <white> <black> [increment]")
		}
		var durations [3]time.Duration
		for i, f := range fields[1:] {
			d, err := time.ParseDuration(f)
			if err != nil {
				return command{}, fmt.Errorf("duration %q: %w", f, err)
			}
			if d < 0 {
				return command{}, fmt.Errorf("duration %q is negative", f)
			}
			durations[i] = d
		}
		return command{kind: cmdSetTimer, timer: protocol.TimerConfig{
			TimeBudgetWhite: durations[0],
			TimeBudgetBlack: durations[1],
			Increment:       durations[2],
		}}, nil

	case "rollback":
		return command{kind: cmdRollback}, nil
	case "start":
		return command{kind: cmdStartTimer}, nil
	case "reconnect":
		return command{kind: cmdReconnect}, nil
	case "state":
		return command{kind: cmdState}, nil
	case "legal":
		return command{kind: cmdLegal}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	}

	return command{}, fmt.Errorf("%w: %q", errUnknownCommand, fields[0])
}
