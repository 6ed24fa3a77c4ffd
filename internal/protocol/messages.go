package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// ClientMessage is a message sent from a match view to the server.
type ClientMessage interface {
	clientTag() string
}

// ServerMessage is a message pushed from the server to a match view.
type ServerMessage interface {
	serverTag() string
}

// Client -> Server

// SubscribeToMatch asks the server to stream state for one match.
type SubscribeToMatch struct {
	Key string `json:"key"`
}

// DoAction submits one action for the match.
type DoAction struct {
	Key    string `json:"key"`
	Action Action `json:"action"`
}

// Rollback asks the server to undo the in-progress move.
type Rollback struct {
	Key string `json:"key"`
}

// SetTimer configures the match timer before it starts.
type SetTimer struct {
	Key   string      `json:"key"`
	Timer TimerConfig `json:"timer"`
}

// StartTimer starts the match timer.
type StartTimer struct {
	Key string `json:"key"`
}

// TimeDriftCheck carries the local send time; the server bounces it back.
type TimeDriftCheck struct {
	Send time.Time `json:"send"`
}

func (SubscribeToMatch) clientTag() string { return "SubscribeToMatch" }
func (DoAction) clientTag() string         { return "DoAction" }
func (Rollback) clientTag() string         { return "Rollback" }
func (SetTimer) clientTag() string         { return "SetTimer" }
func (StartTimer) clientTag() string       { return "StartTimer" }
func (TimeDriftCheck) clientTag() string   { return "TimeDriftCheck" }

// Server -> Client

// TechnicalError reports a server-side failure handling a request.
type TechnicalError struct {
	ErrorMessage string `json:"error_message"`
}

// CurrentMatchState is the authoritative state of a match. It is pushed after
// every change and used for both incremental and full reconciliation.
type CurrentMatchState struct {
	Key     string          `json:"key"`
	Actions []StampedAction `json:"actions"`

	// LegalActions is nil when the push carries no fresh legal set.
	LegalActions []Action `json:"legal_actions"`

	// IsRollback marks a push produced by a rollback. A shorter history
	// without this flag may simply mean the server lags behind the client.
	IsRollback        bool         `json:"is_rollback"`
	ControllingPlayer PlayerColor  `json:"controlling_player"`
	Timer             *Timer       `json:"timer"`
	VictoryState      VictoryState `json:"victory_state"`

	// Seq is a monotonic push counter per match. Zero means the server does
	// not send one.
	Seq uint64 `json:"seq,omitempty"`

	// Passed through untouched for the rendering layer.
	SetupOptions json.RawMessage `json:"setup_options,omitempty"`
	WhitePlayer  json.RawMessage `json:"white_player,omitempty"`
	BlackPlayer  json.RawMessage `json:"black_player,omitempty"`
	WhiteControl string          `json:"white_control,omitempty"`
	BlackControl string          `json:"black_control,omitempty"`
}

// MatchConnectionSuccess is sent once per (re)subscription.
type MatchConnectionSuccess struct {
	Key   string            `json:"key"`
	State CurrentMatchState `json:"state"`
}

// TimeDriftResponse echoes the client send time with the server receipt time.
type TimeDriftResponse struct {
	Send    time.Time `json:"send"`
	Bounced time.Time `json:"bounced"`
}

func (TechnicalError) serverTag() string         { return "TechnicalError" }
func (CurrentMatchState) serverTag() string      { return "CurrentMatchState" }
func (MatchConnectionSuccess) serverTag() string { return "MatchConnectionSuccess" }
func (TimeDriftResponse) serverTag() string      { return "TimeDriftResponse" }

// EncodeClient serializes a client message.
func EncodeClient(msg ClientMessage) ([]byte, error) {
	return encodeTagged(msg.clientTag(), msg)
}

// EncodeServer serializes a server message.
func EncodeServer(msg ServerMessage) ([]byte, error) {
	return encodeTagged(msg.serverTag(), msg)
}

// DecodeClient parses a client message.
func DecodeClient(data []byte) (ClientMessage, error) {
	tag, body, err := splitTagged(data)
	if err != nil {
		return nil, err
	}

	var msg ClientMessage
	switch tag {
	case "SubscribeToMatch":
		msg, err = decodeBody[SubscribeToMatch](body)
	case "DoAction":
		msg, err = decodeBody[DoAction](body)
	case "Rollback":
		msg, err = decodeBody[Rollback](body)
	case "SetTimer":
		msg, err = decodeBody[SetTimer](body)
	case "StartTimer":
		msg, err = decodeBody[StartTimer](body)
	case "TimeDriftCheck":
		msg, err = decodeBody[TimeDriftCheck](body)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, err)
	}
	return msg, nil
}

// DecodeServer parses a server message.
func DecodeServer(data []byte) (ServerMessage, error) {
	tag, body, err := splitTagged(data)
	if err != nil {
		return nil, err
	}

	var msg ServerMessage
	switch tag {
	case "TechnicalError":
		msg, err = decodeBody[TechnicalError](body)
	case "CurrentMatchState":
		msg, err = decodeBody[CurrentMatchState](body)
	case "MatchConnectionSuccess":
		msg, err = decodeBody[MatchConnectionSuccess](body)
	case "TimeDriftResponse":
		msg, err = decodeBody[TimeDriftResponse](body)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, err)
	}
	return msg, nil
}

func encodeTagged(tag string, body any) ([]byte, error) {
	data, err := json.Marshal(map[string]any{tag: body})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", tag, err)
	}
	return data, nil
}

// splitTagged extracts the variant tag and its body.
func splitTagged(data []byte) (string, json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrUnknownMessage, err)
	}
	if len(envelope) != 1 {
		return "", nil, fmt.Errorf("%w: expected one variant, got %d", ErrUnknownMessage, len(envelope))
	}
	for tag, body := range envelope {
		return tag, body, nil
	}
	return "", nil, ErrUnknownMessage
}

func decodeBody[T any](body json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(body, &v)
	return v, err
}
