// Package api is the REST client for the match server's HTTP endpoints:
//
//	GET  /healthz
//	POST /api/matches        create a match, returns {"key": "..."}
//	GET  /api/matches/{key}  current authoritative state
//
// Live play goes over the websocket; this client is for setup and checks.
package api
