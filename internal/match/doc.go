// Package match holds the rendered view of one match and the two entry
// points allowed to mutate it:
//
//   - Reconciler.ApplyServerUpdate / ApplyConnectionSuccess bring the view in
//     line with a server push, either by applying the history suffix
//     incrementally or by replaying the full history from the start.
//   - Applier.Submit applies a local action optimistically before the server
//     confirms it.
//
// The server is the sole order of record. The client never resolves
// conflicts beyond visual prediction; divergence is corrected by the next
// push through the full-replay path.
package match
