// Package rules is the game engine: it validates and applies placement and
// rotation moves, drives the rotation state machine, resolves derived colors
// after every change, neutralizes islands, and detects the winner.
//
// An Engine is single-threaded. All calls must come from one goroutine (the
// game tick); nothing here blocks.
package rules

import (
	"log/slog"
	"time"

	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/geom"
	"github.com/brensch/ringworld/graph"
)

type Engine struct {
	cfg Config
	log *slog.Logger

	board *game.Board
	conn  *graph.Graph
	state game.State

	rot         *rotation
	pending     []MoveRecord
	lastRefresh time.Time
}

// New builds a fresh board and connection graph.
func New(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	b, err := game.Build(cfg.Board, cfg.Logger)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:   cfg,
		log:   cfg.Logger,
		board: b,
		conn:  graph.New(len(b.Small)),
		state: game.NewState(),
	}
	e.rebuildConnections()
	e.lastRefresh = cfg.Now()
	return e, nil
}

func (e *Engine) Config() Config      { return e.cfg }
func (e *Engine) Board() *game.Board  { return e.board }
func (e *Engine) Graph() *graph.Graph { return e.conn }
func (e *Engine) State() game.State   { return e.state }
func (e *Engine) Winner() game.Color  { return e.state.Winner }
func (e *Engine) Animating() bool     { return e.rot != nil }

// ExpectedDistance is the edge length the connection graph looks for.
func (e *Engine) ExpectedDistance() float64 {
	return e.cfg.Board.SmallRadius * e.cfg.ConnectionMultiplier
}

// SetConnectionMultiplier clamps m, stores it, and rebuilds the graph.
func (e *Engine) SetConnectionMultiplier(m float64) {
	e.cfg.ConnectionMultiplier = ClampMultiplier(m)
	e.rebuildConnections()
}

func (e *Engine) excluder() graph.Excluder {
	switch e.cfg.Seams {
	case SeamClassic:
		return graph.ClassicForbiddenPairs()
	case SeamNone:
		return nil
	}
	medium := make([]geom.Point, len(e.board.Medium))
	for i := range e.board.Medium {
		medium[i] = e.board.Medium[i].Pos
	}
	return graph.NewSharedParent(e.board.SmallPositions(), medium, e.cfg.Board.MediumRadius)
}

func (e *Engine) rebuildConnections() {
	opts := graph.Options{
		ExpectedDistance: e.ExpectedDistance(),
		Tolerance:        e.cfg.Tolerance,
		Exclude:          e.excluder(),
	}
	if err := e.conn.Rebuild(e.board.SmallPositions(), opts); err != nil {
		e.log.Error("connection rebuild failed", "error", err)
		return
	}
	e.log.Debug("connections rebuilt", "edges", e.conn.EdgeCount())
}

// Update advances the active rotation to now, completing it once its
// duration has elapsed. With no rotation active it rebuilds the connection
// graph if ConnectionRefresh has passed since the last rebuild.
func (e *Engine) Update(now time.Time) {
	if e.rot != nil {
		if e.rot.advance(e.board, now, e.cfg.RotationDuration) {
			e.completeRotation(now)
		}
		return
	}
	if now.Sub(e.lastRefresh) >= e.cfg.ConnectionRefresh {
		e.rebuildConnections()
		e.lastRefresh = now
	}
}

// FinishRotation completes the active rotation immediately. It is a no-op
// when nothing is rotating.
func (e *Engine) FinishRotation() {
	if e.rot == nil {
		return
	}
	e.rot.finalize(e.board)
	e.completeRotation(e.cfg.Now())
}

// Resign ends the game in favour of color's opponent.
func (e *Engine) Resign(color game.Color) error {
	if e.state.Winner != game.Neutral {
		return ErrGameOver
	}
	if !color.IsPlayer() {
		return ErrNotYourTurn
	}
	e.state.Winner = color.Opponent()
	e.state.Turn = color.Opponent()
	e.log.Info("player resigned", "color", color, "winner", e.state.Winner)
	return nil
}

// Reset returns the engine to a fresh game on the same board layout.
func (e *Engine) Reset() {
	e.board.Reset()
	e.state = game.NewState()
	e.rot = nil
	e.pending = nil
	e.rebuildConnections()
	e.lastRefresh = e.cfg.Now()
}

// EvaluatePosition is color's small-circle count minus its opponent's.
func (e *Engine) EvaluatePosition(color game.Color) int {
	return e.board.CountSmall(color) - e.board.CountSmall(color.Opponent())
}

// Clone performs a deep copy of the engine for move simulation. The clone
// shares the configuration and logger but nothing mutable.
func (e *Engine) Clone() *Engine {
	out := &Engine{
		cfg:         e.cfg,
		log:         e.log,
		board:       e.board.Clone(),
		conn:        e.conn.Clone(),
		state:       e.state,
		lastRefresh: e.lastRefresh,
	}
	if e.rot != nil {
		out.rot = e.rot.clone()
	}
	return out
}
