package netplay

import (
	"log/slog"
	"time"

	"github.com/brensch/ringworld/rules"
)

// Transport is the part of Client the bridge needs.
type Transport interface {
	Moves() <-chan MoveData
	Send(MoveData) error
}

// Bridge connects a rules.Engine to a Transport from the game loop. Call
// Tick once per frame; it never blocks.
type Bridge struct {
	Engine    *rules.Engine
	Transport Transport
	Logger    *slog.Logger

	queued []MoveData
}

// Tick advances the engine to now, applies whatever remote moves can be
// applied, and sends the moves made locally since the last tick. Remote
// moves wait while a rotation is animating. It returns the number of
// remote moves applied.
func (b *Bridge) Tick(now time.Time) int {
	log := b.Logger
	if log == nil {
		log = slog.Default()
	}

	b.Engine.Update(now)

drain:
	for {
		select {
		case m := <-b.Transport.Moves():
			b.queued = append(b.queued, m)
		default:
			break drain
		}
	}

	applied := 0
	for len(b.queued) > 0 && !b.Engine.Animating() {
		m := b.queued[0]
		b.queued = b.queued[1:]
		if err := b.Engine.ApplyRemoteMove(m.Record()); err != nil {
			log.Warn("remote move rejected", "error", err, "phase", m.Phase, "position", m.Position, "color", m.Color)
			continue
		}
		applied++
	}

	for {
		rec, ok := b.Engine.TakeMove()
		if !ok {
			break
		}
		if err := b.Transport.Send(FromRecord(rec)); err != nil {
			log.Error("failed to queue move", "error", err)
		}
	}
	return applied
}

// Pending is the number of remote moves waiting to be applied.
func (b *Bridge) Pending() int { return len(b.queued) }
