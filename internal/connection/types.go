package connection

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrNoStrategies    = errors.New("no connection strategies configured")
	ErrStopped         = errors.New("connection manager stopped")
)

// Status is the connection state exposed to the rendering layer.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Strategy is one way of reaching the server, tried in configured order.
type Strategy struct {
	Name   string
	URL    string
	Header http.Header
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Event is published by the Manager. It is either a StatusEvent or a
// MessageEvent.
type Event interface {
	isEvent()
}

// StatusEvent reports a connection status transition.
type StatusEvent struct {
	Status     Status
	Strategy   string        // Strategy that connected, when Status is StatusConnected
	Generation uint64        // Attempt generation the transition belongs to
	Err        error         // Cause of a transition to StatusDisconnected
	RetryIn    time.Duration // Scheduled reconnect delay, 0 if none
}

// MessageEvent carries one inbound message.
type MessageEvent struct {
	TimestampedMessage
	Generation uint64
}

func (StatusEvent) isEvent()  {}
func (MessageEvent) isEvent() {}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration // Dial + upgrade bound for a single attempt
	PingInterval     time.Duration // How often we ping the server
	PingTimeout      time.Duration // Max time without pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Strategies         []Strategy
	ReconnectBaseDelay time.Duration // Floor of every reconnect delay
	BackoffFactor      float64       // Growth applied to the previous delay
	MaxReconnectDelay  time.Duration // 0 = unbounded
	QueueCapacity      int           // Initial outgoing queue capacity
	Client             ClientConfig  // Template; URL and Header come from the strategy
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectBaseDelay: 200 * time.Millisecond,
		BackoffFactor:      1.2,
		QueueCapacity:      64,
		Client:             DefaultClientConfig(),
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	Status     Status
	Generation uint64
	Queued     int    // Messages waiting for the next open
	Sent       uint64 // Messages written to a socket
	Received   uint64 // Messages read from a current-generation socket
	Dropped    uint64 // Messages read from a stale generation
	Attempts   uint64 // Connection attempts started
}
