package rules

import (
	"fmt"

	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/geom"
)

// remoteMatchRadius is how far (per axis) a transmitted position may be from
// the circle it names. Positions travel rounded to whole units.
const remoteMatchRadius = 1.0

// MoveRecord describes a locally made move in a form that can be replayed on
// another engine. Position is the placed small circle, or the center of the
// rotated circle.
type MoveRecord struct {
	Type         string     `json:"type"`
	Position     [2]float64 `json:"position"`
	Color        game.Color `json:"color"`
	Phase        game.Phase `json:"phase"`
	RotationType string     `json:"rotation_type,omitempty"`
}

func roundedPos(p geom.Point) [2]float64 {
	p = p.Round(2)
	return [2]float64{p.X, p.Y}
}

func (e *Engine) record(m MoveRecord) {
	e.pending = append(e.pending, m)
}

// TakeMove returns the oldest locally made move that has not been taken yet.
// Each move is handed out once.
func (e *Engine) TakeMove() (MoveRecord, bool) {
	if len(e.pending) == 0 {
		return MoveRecord{}, false
	}
	m := e.pending[0]
	e.pending = e.pending[1:]
	return m, true
}

// isLargeLabel reports whether a rotation type names a large circle. Local
// records use the tier name; older clients send "super".
func isLargeLabel(s string) bool {
	return s == TierLarge.String() || s == "super"
}

// ApplyRemoteMove replays a move made by the opponent on another engine.
// The circle is found by position; the move then goes through the same
// validation as a local move but is not recorded for sending back.
func (e *Engine) ApplyRemoteMove(m MoveRecord) error {
	at := geom.Point{X: m.Position[0], Y: m.Position[1]}

	if m.Phase == game.Placement {
		for id := range e.board.Small {
			c := e.board.Small[id]
			if c.Color == game.Neutral && c.Pos.Near(at, remoteMatchRadius) {
				return e.place(id, m.Color, false)
			}
		}
		return fmt.Errorf("%w: no empty small circle at %v", ErrUnknownTarget, m.Position)
	}

	if !isLargeLabel(m.RotationType) {
		for id := range e.board.Medium {
			if e.board.Medium[id].Pos.Near(at, remoteMatchRadius) {
				return e.rotate(Medium(id), m.Color, e.cfg.Scope, false)
			}
		}
	}
	if m.RotationType != TierMedium.String() {
		for id := range e.board.Large {
			if e.board.Large[id].Pos.Near(at, remoteMatchRadius) {
				return e.rotate(Large(id), m.Color, e.cfg.Scope, false)
			}
		}
	}
	return fmt.Errorf("%w: no rotatable circle at %v", ErrUnknownTarget, m.Position)
}
