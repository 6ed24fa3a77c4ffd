// Package poller implements the Snapshot Poller component.
//
// The Snapshot Poller periodically fetches the authoritative state of the
// watched matches over REST and compares it with the local view. It is a
// consistency check that runs beside the websocket feed, never a second
// source of truth: results are reported, not applied.
package poller
