// Package selfplay runs complete games between two computer players and
// turns them into archive rows.
package selfplay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brensch/ringworld/ai"
	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/rules"
	"github.com/brensch/ringworld/store"
	"github.com/google/uuid"
)

const DefaultMaxPlies = 400

type Config struct {
	Rules rules.Config
	// MaxPlies caps a game; a game that hits it ends without a winner.
	MaxPlies int
	// Think bounds each player's search. Zero means unbounded.
	Think     time.Duration
	Source    string
	ModelPath string
}

type GameResult struct {
	GameID string
	Winner game.Color
	Plies  int
	// Stalled is set when the player to move had nothing legal to do.
	Stalled bool
}

// PlayGame plays red against blue from a fresh board. onPly, if set, is
// called after every recorded move. On context cancellation the rows played
// so far are returned with ctx.Err().
func PlayGame(ctx context.Context, cfg Config, red, blue *ai.Player, onPly func()) ([]store.MoveRow, GameResult, error) {
	if cfg.MaxPlies <= 0 {
		cfg.MaxPlies = DefaultMaxPlies
	}
	if cfg.Source == "" {
		cfg.Source = "selfplay"
	}
	e, err := rules.New(cfg.Rules)
	if err != nil {
		return nil, GameResult{}, fmt.Errorf("new engine: %w", err)
	}

	result := GameResult{GameID: "selfplay_" + uuid.New().String()}
	players := map[game.Color]*ai.Player{game.Red: red, game.Blue: blue}
	var rows []store.MoveRow

	appendRow := func(color game.Color, phase game.Phase, t rules.Target, rec rules.MoveRecord) {
		b := e.Board()
		rows = append(rows, store.MoveRow{
			GameID:       result.GameID,
			Ply:          int32(len(rows)),
			Color:        color.String(),
			Phase:        phase.String(),
			Tier:         t.Tier.String(),
			TargetID:     int32(t.ID),
			X:            float32(rec.Position[0]),
			Y:            float32(rec.Position[1]),
			RotationType: rec.RotationType,
			RedSmall:     int32(b.CountSmall(game.Red)),
			BlueSmall:    int32(b.CountSmall(game.Blue)),
			RedLarge:     int32(b.CountLarge(game.Red)),
			BlueLarge:    int32(b.CountLarge(game.Blue)),
			Reduced:      cfg.Rules.Board.Reduced,
			Source:       cfg.Source,
			ModelPath:    cfg.ModelPath,
		})
		if onPly != nil {
			onPly()
		}
	}

	for len(rows) < cfg.MaxPlies && e.Winner() == game.Neutral {
		if err := ctx.Err(); err != nil {
			return finish(rows, e), result, err
		}
		color := e.State().Turn
		p := players[color]

		d, err := choose(ctx, cfg.Think, p, e)
		if errors.Is(err, ai.ErrNoMoves) || (err == nil && d.Placement < 0 && !d.HasRotation) {
			result.Stalled = true
			break
		}
		if err != nil {
			return finish(rows, e), result, fmt.Errorf("%s to move: %w", color, err)
		}

		if d.Placement >= 0 {
			if err := e.MakePlacementMove(d.Placement, color); err != nil {
				return finish(rows, e), result, fmt.Errorf("place small#%d: %w", d.Placement, err)
			}
			rec, _ := e.TakeMove()
			appendRow(color, game.Placement, rules.Small(d.Placement), rec)
		}
		if d.HasRotation {
			if err := e.MakeRotationMove(d.Rotation, color, e.Config().Scope); err != nil {
				return finish(rows, e), result, fmt.Errorf("rotate %s: %w", d.Rotation, err)
			}
			e.FinishRotation()
			rec, _ := e.TakeMove()
			appendRow(color, game.Rotation, d.Rotation, rec)
		}
	}

	rows = finish(rows, e)
	result.Winner = e.Winner()
	result.Plies = len(rows)
	return rows, result, nil
}

func choose(ctx context.Context, think time.Duration, p *ai.Player, e *rules.Engine) (ai.Decision, error) {
	if think <= 0 {
		return p.Choose(ctx, e)
	}
	tctx, cancel := context.WithTimeout(ctx, think)
	d, err := p.Choose(tctx, e)
	cancel()
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		// nothing was searched in time, search without a deadline
		return p.Choose(ctx, e)
	}
	return d, err
}

// finish stamps the final result on every row.
func finish(rows []store.MoveRow, e *rules.Engine) []store.MoveRow {
	winner := e.Winner().String()
	for i := range rows {
		rows[i].Winner = winner
	}
	return rows
}
