package rules

import (
	"time"

	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/geom"
)

type spinning struct {
	id    int
	polar geom.Polar
}

// rotation is an in-flight 45 degree turn. Every position it touches is
// captured in polar form at the start, so progress is a pure function of
// elapsed time.
type rotation struct {
	target Target
	pivot  geom.Point
	start  time.Time
	small  []spinning
	medium []spinning
}

func newRotation(b *game.Board, t Target, pivot geom.Point, mediums, smalls []int, start time.Time) *rotation {
	r := &rotation{target: t, pivot: pivot, start: start}
	for _, id := range mediums {
		r.medium = append(r.medium, spinning{id: id, polar: geom.ToPolar(b.Medium[id].Pos, pivot)})
	}
	for _, id := range smalls {
		r.small = append(r.small, spinning{id: id, polar: geom.ToPolar(b.Small[id].Pos, pivot)})
	}
	return r
}

func (r *rotation) place(b *game.Board, progress float64) {
	delta := geom.RotationStep * progress
	for _, s := range r.medium {
		b.SetMediumPos(s.id, s.polar.At(r.pivot, delta))
	}
	for _, s := range r.small {
		b.SetSmallPos(s.id, s.polar.At(r.pivot, delta))
	}
}

// advance moves everything to its position at now and reports whether the
// rotation has reached its end.
func (r *rotation) advance(b *game.Board, now time.Time, duration time.Duration) bool {
	t := geom.Ease(now.Sub(r.start).Seconds(), duration.Seconds())
	if t >= 1 {
		r.finalize(b)
		return true
	}
	r.place(b, t)
	return false
}

// finalize writes the exact end positions. Calling it again rewrites the
// same positions.
func (r *rotation) finalize(b *game.Board) {
	r.place(b, 1)
}

func (r *rotation) clone() *rotation {
	out := *r
	out.small = append([]spinning(nil), r.small...)
	out.medium = append([]spinning(nil), r.medium...)
	return &out
}

// completeRotation runs the post-rotation cascade: graph rebuild, color
// resolution with neighbour propagation, island neutralization, and a second
// resolution pass if any island was cleared.
func (e *Engine) completeRotation(now time.Time) {
	r := e.rot
	r.finalize(e.board)
	e.rot = nil
	e.state.Phase = game.Placement

	e.rebuildConnections()
	e.lastRefresh = now

	e.resolveColors(true)
	if cleared := NeutralizeIslands(e.board, e.conn); len(cleared) > 0 {
		e.log.Debug("islands neutralized", "circles", len(cleared))
		e.resolveColors(false)
	}

	e.log.Debug("rotation complete",
		"tier", r.target.Tier,
		"id", r.target.ID,
		"small", len(r.small),
		"medium", len(r.medium),
	)
}
