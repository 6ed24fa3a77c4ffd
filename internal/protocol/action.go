package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrMalformedAction = errors.New("malformed action")
	ErrUnknownMessage  = errors.New("unknown message")
)

// Tile is a board square index, 0 (a1) through 63 (h8).
type Tile int

// BoardSize is the number of tiles on the board.
const BoardSize = 64

// Valid reports whether the tile lies on the board.
func (t Tile) Valid() bool {
	return t >= 0 && t < BoardSize
}

// PieceType names a piece kind as it appears on the wire.
type PieceType string

const (
	Pawn   PieceType = "Pawn"
	Rook   PieceType = "Rook"
	Knight PieceType = "Knight"
	Bishop PieceType = "Bishop"
	Queen  PieceType = "Queen"
	King   PieceType = "King"
)

// Valid reports whether p is a known piece type.
func (p PieceType) Valid() bool {
	switch p {
	case Pawn, Rook, Knight, Bishop, Queen, King:
		return true
	}
	return false
}

// PromotionOptions lists the piece types a pawn may promote to.
var PromotionOptions = []PieceType{Rook, Knight, Bishop, Queen}

// ActionKind discriminates the Action variants.
type ActionKind uint8

const (
	ActionLift ActionKind = iota + 1
	ActionPlace
	ActionPromote
)

func (k ActionKind) String() string {
	switch k {
	case ActionLift:
		return "Lift"
	case ActionPlace:
		return "Place"
	case ActionPromote:
		return "Promote"
	default:
		return fmt.Sprintf("ActionKind(%d)", uint8(k))
	}
}

// Action is one atomic game move. It is comparable, so it can be used as a
// map key and compared with ==.
type Action struct {
	Kind  ActionKind
	Tile  Tile      // Lift and Place only
	Piece PieceType // Promote only
}

// Lift returns a Lift action.
func Lift(t Tile) Action { return Action{Kind: ActionLift, Tile: t} }

// Place returns a Place action.
func Place(t Tile) Action { return Action{Kind: ActionPlace, Tile: t} }

// Promote returns a Promote action.
func Promote(p PieceType) Action { return Action{Kind: ActionPromote, Piece: p} }

func (a Action) String() string {
	switch a.Kind {
	case ActionLift, ActionPlace:
		return fmt.Sprintf("%s(%d)", a.Kind, a.Tile)
	case ActionPromote:
		return fmt.Sprintf("Promote(%s)", a.Piece)
	default:
		return "Action(invalid)"
	}
}

// MarshalJSON encodes the action as {"Lift":12}, {"Place":20} or {"Promote":"Queen"}.
func (a Action) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case ActionLift, ActionPlace:
		return json.Marshal(map[string]Tile{a.Kind.String(): a.Tile})
	case ActionPromote:
		return json.Marshal(map[string]PieceType{a.Kind.String(): a.Piece})
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrMalformedAction, a.Kind)
	}
}

// UnmarshalJSON decodes an externally tagged action.
func (a *Action) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	if len(fields) != 1 {
		return fmt.Errorf("%w: expected exactly one variant, got %d", ErrMalformedAction, len(fields))
	}
	for tag, body := range fields {
		parsed, err := parseAction(tag, body)
		if err != nil {
			return err
		}
		*a = parsed
	}
	return nil
}

func parseAction(tag string, body json.RawMessage) (Action, error) {
	switch tag {
	case "Lift", "Place":
		var tile Tile
		if err := json.Unmarshal(body, &tile); err != nil {
			return Action{}, fmt.Errorf("%w: %s tile: %v", ErrMalformedAction, tag, err)
		}
		if !tile.Valid() {
			return Action{}, fmt.Errorf("%w: %s tile %d out of range", ErrMalformedAction, tag, tile)
		}
		if tag == "Lift" {
			return Lift(tile), nil
		}
		return Place(tile), nil
	case "Promote":
		var piece PieceType
		if err := json.Unmarshal(body, &piece); err != nil {
			return Action{}, fmt.Errorf("%w: Promote piece: %v", ErrMalformedAction, err)
		}
		if !piece.Valid() {
			return Action{}, fmt.Errorf("%w: unknown piece type %q", ErrMalformedAction, piece)
		}
		return Promote(piece), nil
	default:
		return Action{}, fmt.Errorf("%w: unknown variant %q", ErrMalformedAction, tag)
	}
}

// StampedAction is a history entry: the action flattened together with the
// server time it was accepted, e.g. {"Lift":12,"timestamp":"2024-01-01T00:00:00Z"}.
type StampedAction struct {
	Action    Action
	Timestamp time.Time
}

// MarshalJSON flattens the action and timestamp into one object.
func (s StampedAction) MarshalJSON() ([]byte, error) {
	action, err := s.Action.MarshalJSON()
	if err != nil {
		return nil, err
	}
	stamp, err := json.Marshal(s.Timestamp)
	if err != nil {
		return nil, err
	}
	// action is a one-key object: splice the timestamp in before the closing brace.
	var buf bytes.Buffer
	buf.Write(action[:len(action)-1])
	buf.WriteString(`,"timestamp":`)
	buf.Write(stamp)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flattened history entry. A missing timestamp is allowed.
func (s *StampedAction) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}

	var stamp time.Time
	if raw, ok := fields["timestamp"]; ok {
		if err := json.Unmarshal(raw, &stamp); err != nil {
			return fmt.Errorf("%w: timestamp: %v", ErrMalformedAction, err)
		}
		delete(fields, "timestamp")
	}
	if len(fields) != 1 {
		return fmt.Errorf("%w: expected exactly one variant, got %d", ErrMalformedAction, len(fields))
	}
	for tag, body := range fields {
		action, err := parseAction(tag, body)
		if err != nil {
			return err
		}
		s.Action = action
	}
	s.Timestamp = stamp
	return nil
}

// Actions strips the timestamps from a stamped history.
func Actions(history []StampedAction) []Action {
	out := make([]Action, len(history))
	for i, s := range history {
		out[i] = s.Action
	}
	return out
}
