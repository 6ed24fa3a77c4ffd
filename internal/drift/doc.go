// Package drift estimates the offset between the local clock and the server
// clock from one round-trip timestamp exchange, and uses it to render match
// countdowns. The authoritative timer always lives on the server; nothing
// here mutates it.
package drift
