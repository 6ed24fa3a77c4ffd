// Package session runs one match view.
//
// A Session merges every input that can change the view into a single
// goroutine: local commands (submit, rollback, timer), connection status
// changes, inbound server messages, the countdown tick and the one-shot
// drift check. Nothing else mutates the match store. Results are published
// as Updates for the rendering layer.
package session
