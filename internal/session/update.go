package session

import (
	"fmt"
	"time"

	"github.com/rickgao/paco-sync/internal/connection"
	"github.com/rickgao/paco-sync/internal/drift"
	"github.com/rickgao/paco-sync/internal/match"
	"github.com/rickgao/paco-sync/internal/protocol"
)

// UpdateKind tells the renderer what changed.
type UpdateKind int

const (
	UpdateStatus      UpdateKind = iota // connection status changed
	UpdateState                         // a server push was reconciled
	UpdateOptimistic                    // a local action was applied
	UpdateCountdown                     // the running clock moved
	UpdateDrift                         // the drift offset was measured
	UpdateServerError                   // the server reported a TechnicalError
	UpdateFailed                        // the view failed and stopped accepting pushes
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateStatus:
		return "status"
	case UpdateState:
		return "state"
	case UpdateOptimistic:
		return "optimistic"
	case UpdateCountdown:
		return "countdown"
	case UpdateDrift:
		return "drift"
	case UpdateServerError:
		return "server_error"
	case UpdateFailed:
		return "failed"
	default:
		return fmt.Sprintf("UpdateKind(%d)", int(k))
	}
}

// Update is one notification for the rendering layer. Only the fields
// relevant to Kind are set; read the full view with Session.Snapshot.
type Update struct {
	Kind UpdateKind
	At   time.Time

	Status    connection.Status
	Mode      match.Mode
	Actions   []protocol.Action // applied suffix, or the optimistic action
	Countdown drift.Countdown
	Offset    time.Duration
	Err       error
}
