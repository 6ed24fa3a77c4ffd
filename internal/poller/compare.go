package poller

import (
	"fmt"

	"github.com/rickgao/paco-sync/internal/match"
	"github.com/rickgao/paco-sync/internal/protocol"
)

// Verdict classifies a REST snapshot against the local view.
type Verdict int

const (
	InSync   Verdict = iota // identical histories
	Ahead                   // local view extends the snapshot (optimistic or newer)
	Behind                  // snapshot extends the local view (push still in flight)
	Diverged                // neither history is a prefix of the other
)

func (v Verdict) String() string {
	switch v {
	case InSync:
		return "in_sync"
	case Ahead:
		return "ahead"
	case Behind:
		return "behind"
	case Diverged:
		return "diverged"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Compare classifies local against the snapshot's history.
func Compare(local []protocol.Action, snapshot protocol.CurrentMatchState) Verdict {
	remote := protocol.Actions(snapshot.Actions)

	if suffix, ok := match.HistoryDiff(local, remote); ok {
		if len(suffix) == 0 {
			return InSync
		}
		return Behind
	}
	if _, ok := match.HistoryDiff(remote, local); ok {
		return Ahead
	}
	return Diverged
}
