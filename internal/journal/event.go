package journal

import "time"

// Kind classifies a journal event.
type Kind string

const (
	KindStatus       Kind = "status"
	KindReconcile    Kind = "reconcile"
	KindSubmit       Kind = "submit"
	KindReplayFailed Kind = "replay_failed"
	KindDrift        Kind = "drift"
	KindDecodeError  Kind = "decode_error"
	KindServerError  Kind = "server_error"
)

// Event is one diagnostics record.
type Event struct {
	ViewID     string
	MatchKey   string
	Kind       Kind
	Detail     string // Status name, reconcile mode, error text
	HistoryLen int
	Seq        uint64
	Value      int64 // Kind-specific: applied count, drift offset in microseconds
	OccurredAt time.Time
}

// Schema creates the sync_events table.
const Schema = `
CREATE TABLE IF NOT EXISTS sync_events (
	id          BIGSERIAL PRIMARY KEY,
	occurred_at BIGINT NOT NULL,
	view_id     UUID NOT NULL,
	match_key   TEXT NOT NULL,
	kind        TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	history_len INTEGER NOT NULL DEFAULT 0,
	seq         BIGINT NOT NULL DEFAULT 0,
	value       BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS sync_events_view_idx ON sync_events (view_id, occurred_at);
`
