package rules

import (
	"fmt"
	"sort"

	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/geom"
)

// Tier names one of the three circle sizes.
type Tier int8

const (
	TierSmall Tier = iota
	TierMedium
	TierLarge
)

func (t Tier) String() string {
	switch t {
	case TierSmall:
		return "small"
	case TierMedium:
		return "medium"
	case TierLarge:
		return "large"
	}
	return fmt.Sprintf("tier(%d)", int8(t))
}

// Target addresses one circle on the board.
type Target struct {
	Tier Tier
	ID   int
}

func (t Target) String() string { return fmt.Sprintf("%s#%d", t.Tier, t.ID) }

func Small(id int) Target  { return Target{Tier: TierSmall, ID: id} }
func Medium(id int) Target { return Target{Tier: TierMedium, ID: id} }
func Large(id int) Target  { return Target{Tier: TierLarge, ID: id} }

// ValidMoves returns the legal targets for the player to move. It returns
// nothing while a rotation is running or once the game is won.
//
// In the placement phase the targets are small circles. When no placement is
// possible the phase is forced to rotation (the turn does not change) and
// rotation targets are returned instead.
func (e *Engine) ValidMoves() []Target {
	if e.rot != nil || e.state.Winner != game.Neutral {
		return nil
	}
	e.forceRotationIfStuck()

	color := e.state.Turn
	if e.state.Phase == game.Placement {
		var out []Target
		for id := range e.board.Small {
			if e.canPlace(id, color) {
				out = append(out, Small(id))
			}
		}
		return out
	}

	var out []Target
	for id := range e.board.Medium {
		if e.mediumHolds(id, color) {
			out = append(out, Medium(id))
		}
	}
	for id := range e.board.Large {
		if e.anyMediumHolds(e.board.MediumFullyInside(id), color) {
			out = append(out, Large(id))
		}
	}
	return out
}

// forceRotationIfStuck moves a placement phase with no legal placement on to
// rotation for the same player.
func (e *Engine) forceRotationIfStuck() {
	if e.state.Phase != game.Placement {
		return
	}
	for id := range e.board.Small {
		if e.canPlace(id, e.state.Turn) {
			return
		}
	}
	e.state.Phase = game.Rotation
	e.log.Debug("no placement available, forcing rotation", "turn", e.state.Turn)
}

// canPlace: the circle is empty and no medium it sits in already holds one
// of color's stones.
func (e *Engine) canPlace(id int, color game.Color) bool {
	if e.board.Small[id].Color != game.Neutral {
		return false
	}
	for _, m := range e.board.MediumsContaining(id) {
		if e.mediumHolds(m, color) {
			return false
		}
	}
	return true
}

func (e *Engine) mediumHolds(mediumID int, color game.Color) bool {
	for _, id := range e.board.SmallInside(mediumID) {
		if e.board.Small[id].Color == color {
			return true
		}
	}
	return false
}

func (e *Engine) anyMediumHolds(mediums []int, color game.Color) bool {
	for _, m := range mediums {
		if e.mediumHolds(m, color) {
			return true
		}
	}
	return false
}

func (e *Engine) checkMove(color game.Color, phase game.Phase) error {
	if e.state.Winner != game.Neutral {
		return ErrGameOver
	}
	if e.rot != nil {
		return ErrAnimating
	}
	if color != e.state.Turn {
		return ErrNotYourTurn
	}
	if e.state.Phase != phase {
		return ErrWrongPhase
	}
	return nil
}

// MakePlacementMove puts color's stone on a small circle, resolves colors,
// and moves on to the rotation phase.
func (e *Engine) MakePlacementMove(id int, color game.Color) error {
	return e.place(id, color, true)
}

func (e *Engine) place(id int, color game.Color, record bool) error {
	if err := e.checkMove(color, game.Placement); err != nil {
		return err
	}
	if id < 0 || id >= len(e.board.Small) {
		return fmt.Errorf("%w: small %d", ErrUnknownTarget, id)
	}
	if !e.canPlace(id, color) {
		return fmt.Errorf("%w: small %d", ErrIneligible, id)
	}

	e.board.Small[id].Color = color
	e.resolveColors(false)
	e.state.Phase = game.Rotation

	if record {
		e.record(MoveRecord{
			Type:     "move",
			Position: roundedPos(e.board.Small[id].Pos),
			Color:    color,
			Phase:    game.Placement,
		})
	}
	e.log.Debug("placement", "color", color, "small", id)
	return nil
}

// MakeRotationMove starts a 45 degree rotation of a medium or large circle
// that holds at least one of color's stones. For a large circle, scope picks
// which mediums travel with it.
//
// The move is spent as soon as the rotation starts: the phase returns to
// placement and the turn passes to the opponent immediately. Colors are
// resolved when the rotation completes (see Update and FinishRotation).
func (e *Engine) MakeRotationMove(t Target, color game.Color, scope RotationScope) error {
	return e.rotate(t, color, scope, true)
}

func (e *Engine) rotate(t Target, color game.Color, scope RotationScope, record bool) error {
	if e.state.Winner == game.Neutral && e.rot == nil && color == e.state.Turn {
		e.forceRotationIfStuck()
	}
	if err := e.checkMove(color, game.Rotation); err != nil {
		return err
	}

	var (
		pivot   geom.Point
		mediums []int
		smalls  []int
		kind    string
	)
	switch t.Tier {
	case TierMedium:
		if t.ID < 0 || t.ID >= len(e.board.Medium) {
			return fmt.Errorf("%w: %s", ErrUnknownTarget, t)
		}
		if !e.mediumHolds(t.ID, color) {
			return fmt.Errorf("%w: %s", ErrIneligible, t)
		}
		pivot = e.board.Medium[t.ID].Pos
		smalls = e.board.SmallInside(t.ID)
		kind = TierMedium.String()

	case TierLarge:
		if t.ID < 0 || t.ID >= len(e.board.Large) {
			return fmt.Errorf("%w: %s", ErrUnknownTarget, t)
		}
		if scope == ScopeContained {
			mediums = e.board.MediumFullyInside(t.ID)
		} else {
			mediums = e.board.MediumOverlapping(t.ID)
		}
		if !e.anyMediumHolds(mediums, color) {
			return fmt.Errorf("%w: %s", ErrIneligible, t)
		}
		pivot = e.board.Large[t.ID].Pos
		smalls = e.smallsInside(mediums)
		kind = TierLarge.String()

	default:
		return fmt.Errorf("%w: cannot rotate %s", ErrUnknownTarget, t)
	}

	e.rot = newRotation(e.board, t, pivot, mediums, smalls, e.cfg.Now())
	e.state.Phase = game.Placement
	e.state.Turn = color.Opponent()

	if record {
		e.record(MoveRecord{
			Type:         "move",
			Position:     roundedPos(pivot),
			Color:        color,
			Phase:        game.Rotation,
			RotationType: kind,
		})
	}
	e.log.Debug("rotation started", "color", color, "target", t, "scope", scope, "small", len(smalls))
	return nil
}

func (e *Engine) smallsInside(mediums []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, m := range mediums {
		for _, id := range e.board.SmallInside(m) {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Ints(out)
	return out
}
