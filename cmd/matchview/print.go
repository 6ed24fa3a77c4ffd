package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rickgao/paco-sync/internal/match"
	"github.com/rickgao/paco-sync/internal/protocol"
	"github.com/rickgao/paco-sync/internal/session"
)

// formatUpdate renders one update as a single line. Countdown updates are
// noisy so they only print when verbose is set.
func formatUpdate(u session.Update, verbose bool) (string, bool) {
	switch u.Kind {
	case session.UpdateStatus:
		if u.Err != nil {
			return fmt.Sprintf("[status] %s (%v)", u.Status, u.Err), true
		}
		return fmt.Sprintf("[status] %s", u.Status), true
	case session.UpdateState:
		return fmt.Sprintf("[state] %s applied=%s", u.Mode, formatActions(u.Actions)), true
	case session.UpdateOptimistic:
		return fmt.Sprintf("[local] %s", formatActions(u.Actions)), true
	case session.UpdateCountdown:
		if !verbose {
			return "", false
		}
		return fmt.Sprintf("[clock] white=%s black=%s",
			u.Countdown.White.Round(100*time.Millisecond), u.Countdown.Black.Round(100*time.Millisecond)), true
	case session.UpdateDrift:
		return fmt.Sprintf("[drift] offset=%s", u.Offset), true
	case session.UpdateServerError:
		return fmt.Sprintf("[server] %v", u.Err), true
	case session.UpdateFailed:
		return fmt.Sprintf("[failed] %v", u.Err), true
	}
	return fmt.Sprintf("[%s]", u.Kind), true
}

func formatActions(actions []protocol.Action) string {
	if len(actions) == 0 {
		return "-"
	}
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}

func printView(w io.Writer, v match.View) {
	fmt.Fprintf(w, "match %s phase=%s\n", v.Key, v.Phase)
	if v.Err != nil {
		fmt.Fprintf(w, "  error: %v\n", v.Err)
	}
	st := v.State
	fmt.Fprintf(w, "  seq=%d controlling=%s\n", st.Seq, st.ControllingPlayer)
	fmt.Fprintf(w, "  history (%d): %s\n", len(st.History), formatActions(st.Actions()))
	if st.VictoryState.IsOver() {
		fmt.Fprintf(w, "  result: %+v\n", st.VictoryState)
	}
	if st.Timer != nil {
		fmt.Fprintf(w, "  timer: %s white=%s black=%s\n",
			st.Timer.State.Kind, st.Timer.TimeLeftWhite, st.Timer.TimeLeftBlack)
	}
}

func printLegal(w io.Writer, v match.View) {
	legal := v.State.LegalActions
	if !legal.IsLoaded() {
		fmt.Fprintln(w, "legal actions: not loaded")
		return
	}
	fmt.Fprintf(w, "legal actions: %s\n", formatActions(legal.Actions()))
}
