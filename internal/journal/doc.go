// Package journal writes match-sync diagnostics to PostgreSQL.
//
// A session pushes Events (status changes, reconcile outcomes, replay
// failures, drift estimates, dropped messages) into a queue.Buffer; the
// Writer drains it and inserts rows into sync_events in batches. The journal
// is append-only and never read back by the client. It records how a view
// stayed in sync, not the match itself.
package journal
