// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single websocket to the match server
//   - Tries an ordered list of connection strategies on every attempt
//   - Queues outgoing messages while disconnected and flushes them in order
//     on the next successful open
//   - Reconnects after an unclean close with a delay of max(base, prev*factor)
//   - Tags every attempt with a generation so a late result from a
//     superseded attempt is discarded
//
// Status changes and inbound messages are published on one Events buffer,
// consumed by the match session.
package connection
