package rules

import (
	"fmt"

	"github.com/brensch/ringworld/game"
)

// Serialize captures the game for saving or transport.
//
// Serialize mutates e: a rotation still in flight is completed first, as
// FinishRotation would, so its color cascade, island clearing and winner
// check run before the snapshot is taken. Use Clone().Serialize() to look at
// an animating engine without settling it.
func (e *Engine) Serialize() game.Snapshot {
	e.FinishRotation()
	small, medium := e.board.Records()
	return game.Snapshot{
		Turn:          e.state.Turn,
		Phase:         e.state.Phase,
		SmallCircles:  small,
		MediumCircles: medium,
	}
}

func (e *Engine) validateSnapshot(s game.Snapshot) error {
	if !s.Turn.IsPlayer() {
		return fmt.Errorf("%w: turn %q", ErrBadSnapshot, s.Turn)
	}
	if s.Phase != game.Placement && s.Phase != game.Rotation {
		return fmt.Errorf("%w: phase %d", ErrBadSnapshot, s.Phase)
	}
	if len(s.MediumCircles) > len(e.board.Medium) {
		return fmt.Errorf("%w: %d medium circles, board has %d", ErrBadSnapshot, len(s.MediumCircles), len(e.board.Medium))
	}
	seen := make(map[int]bool, len(s.SmallCircles))
	for _, c := range s.SmallCircles {
		if c.ID < 0 || c.ID >= len(e.board.Small) {
			return fmt.Errorf("%w: small circle id %d out of range", ErrBadSnapshot, c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: small circle id %d repeated", ErrBadSnapshot, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// Restore replaces the game with a snapshot. The board is reset, small
// circles are applied by id and medium circles by position in the list,
// then the turn and phase are restored, the connection graph rebuilt, and
// large colors and the winner recomputed. On error the engine is unchanged.
func (e *Engine) Restore(s game.Snapshot) error {
	if err := e.validateSnapshot(s); err != nil {
		return err
	}

	e.rot = nil
	e.pending = nil
	e.board.Reset()

	for _, c := range s.SmallCircles {
		e.board.SetSmallPos(c.ID, c.PointOf())
		e.board.Small[c.ID].Color = c.Color
	}
	for i, c := range s.MediumCircles {
		e.board.SetMediumPos(i, c.PointOf())
		e.board.Medium[i].Color = c.Color
	}

	e.state = game.State{Turn: s.Turn, Phase: s.Phase, Winner: game.Neutral}
	e.rebuildConnections()
	e.lastRefresh = e.cfg.Now()

	largeFromContained(e.board)
	e.checkWinner()

	e.log.Info("game restored",
		"turn", e.state.Turn,
		"phase", e.state.Phase,
		"red", e.board.CountSmall(game.Red),
		"blue", e.board.CountSmall(game.Blue),
	)
	return nil
}
