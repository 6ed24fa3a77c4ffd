// Package queue provides an unbounded, order-preserving FIFO used wherever
// the match view must never drop an item: the outgoing message queue of the
// connection manager, the update feed read by the renderer, and the
// diagnostics journal input.
package queue
