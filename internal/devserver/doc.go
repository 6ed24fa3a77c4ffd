// Package devserver is an authoritative in-memory match server for local
// testing of match views.
//
// It speaks the same wire protocol as the production server: it validates
// actions with a rules engine, keeps the order of record, broadcasts
// CurrentMatchState to every subscriber of a match, answers drift checks,
// and runs match timers. Matches live only in memory.
package devserver
