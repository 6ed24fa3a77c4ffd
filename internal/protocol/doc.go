// Package protocol defines the JSON wire format spoken between a match view and
// the game server.
//
// Every message is an externally tagged object whose single key names the
// variant:
//
//	{"SubscribeToMatch":{"key":"abc123"}}
//	{"DoAction":{"key":"abc123","action":{"Lift":12}}}
//	{"CurrentMatchState":{"key":"abc123","actions":[...],...}}
//
// Actions use the same scheme: {"Lift":12}, {"Place":20}, {"Promote":"Queen"}.
package protocol
