package rules

import (
	"fmt"

	"github.com/rickgao/paco-sync/internal/protocol"
)

type owner int8

const (
	empty owner = iota
	whitePiece
	blackPiece
)

func ownerOf(c protocol.PlayerColor) owner {
	if c == protocol.Black {
		return blackPiece
	}
	return whitePiece
}

// FreeformPosition is the position type of the Freeform engine. It is a
// comparable value.
type FreeformPosition struct {
	Board        [protocol.BoardSize]owner
	ToMove       protocol.PlayerColor
	Lifted       protocol.Tile // -1 when nothing is in hand
	AwaitPromote bool
	Plies        int
}

// Freeform only enforces lift/place alternation: the side to move lifts one
// of its own pieces and places it on any empty tile. With Promotions set, a
// piece placed on the far rank must be promoted before the turn passes.
type Freeform struct {
	Promotions bool
}

// Initial puts white on tiles 0-15 and black on tiles 48-63.
func (f Freeform) Initial() Position {
	pos := FreeformPosition{ToMove: protocol.White, Lifted: -1}
	for i := 0; i < 16; i++ {
		pos.Board[i] = whitePiece
		pos.Board[protocol.BoardSize-1-i] = blackPiece
	}
	return pos
}

// Apply implements Engine.
func (f Freeform) Apply(p Position, action protocol.Action) (Position, error) {
	pos, ok := p.(FreeformPosition)
	if !ok {
		return p, fmt.Errorf("freeform: unexpected position type %T", p)
	}

	switch action.Kind {
	case protocol.ActionLift:
		if pos.Lifted >= 0 || pos.AwaitPromote {
			return p, fmt.Errorf("%w: %s while a move is in progress", ErrIllegalMove, action)
		}
		if !action.Tile.Valid() || pos.Board[action.Tile] != ownerOf(pos.ToMove) {
			return p, fmt.Errorf("%w: %s has no %s piece", ErrIllegalMove, action, pos.ToMove)
		}
		pos.Board[action.Tile] = empty
		pos.Lifted = action.Tile

	case protocol.ActionPlace:
		if pos.Lifted < 0 {
			return p, fmt.Errorf("%w: %s with nothing lifted", ErrIllegalMove, action)
		}
		if !action.Tile.Valid() || action.Tile == pos.Lifted || pos.Board[action.Tile] != empty {
			return p, fmt.Errorf("%w: %s is not an empty target", ErrIllegalMove, action)
		}
		pos.Board[action.Tile] = ownerOf(pos.ToMove)
		pos.Lifted = -1
		if f.Promotions && onFarRank(action.Tile, pos.ToMove) {
			pos.AwaitPromote = true
		} else {
			pos.ToMove = pos.ToMove.Other()
		}

	case protocol.ActionPromote:
		if !pos.AwaitPromote || !isPromotionOption(action.Piece) {
			return p, fmt.Errorf("%w: %s", ErrIllegalMove, action)
		}
		pos.AwaitPromote = false
		pos.ToMove = pos.ToMove.Other()

	default:
		return p, fmt.Errorf("%w: %s", ErrIllegalMove, action)
	}

	pos.Plies++
	return pos, nil
}

// LegalActions implements Engine.
func (f Freeform) LegalActions(p Position) []protocol.Action {
	pos, ok := p.(FreeformPosition)
	if !ok {
		return nil
	}

	var out []protocol.Action
	switch {
	case pos.AwaitPromote:
		for _, piece := range protocol.PromotionOptions {
			out = append(out, protocol.Promote(piece))
		}
	case pos.Lifted >= 0:
		for t := protocol.Tile(0); t < protocol.BoardSize; t++ {
			if t != pos.Lifted && pos.Board[t] == empty {
				out = append(out, protocol.Place(t))
			}
		}
	default:
		mine := ownerOf(pos.ToMove)
		for t := protocol.Tile(0); t < protocol.BoardSize; t++ {
			if pos.Board[t] == mine {
				out = append(out, protocol.Lift(t))
			}
		}
	}
	return out
}

// ControllingPlayer implements TurnEngine.
func (f Freeform) ControllingPlayer(p Position) protocol.PlayerColor {
	if pos, ok := p.(FreeformPosition); ok {
		return pos.ToMove
	}
	return protocol.White
}

// Settled implements TurnEngine.
func (f Freeform) Settled(p Position) bool {
	pos, ok := p.(FreeformPosition)
	return ok && pos.Lifted < 0 && !pos.AwaitPromote
}

func onFarRank(t protocol.Tile, c protocol.PlayerColor) bool {
	if c == protocol.White {
		return t >= protocol.BoardSize-8
	}
	return t < 8
}

func isPromotionOption(p protocol.PieceType) bool {
	for _, o := range protocol.PromotionOptions {
		if o == p {
			return true
		}
	}
	return false
}
