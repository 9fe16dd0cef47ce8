// Package game defines the board model: the three tiers of nested circles,
// the builder that lays them out, and the small state record (turn, phase,
// winner) that the rules engine advances.
//
// Circles are stored in dense arenas indexed by their id. Parent/child
// relations are never stored; they are answered by geometric queries against
// the current positions.
package game

import "github.com/brensch/ringworld/geom"

// State is the turn bookkeeping for one game session.
type State struct {
	Turn   Color
	Phase  Phase
	Winner Color
}

// NewState is the state every game starts from: Red to place, no winner.
func NewState() State {
	return State{Turn: Red, Phase: Placement, Winner: Neutral}
}

// CircleRecord is the persisted form of one small or medium circle.
type CircleRecord struct {
	ID    int        `json:"id"`
	Pos   [2]float64 `json:"pos"`
	Color Color      `json:"color"`
}

// Snapshot is the save/transport record of a game in progress.
// Large circle colors are not stored; they are recomputed on restore.
type Snapshot struct {
	Turn          Color          `json:"turn"`
	Phase         Phase          `json:"phase"`
	SmallCircles  []CircleRecord `json:"small_circles"`
	MediumCircles []CircleRecord `json:"medium_circles"`
	Timestamp     string         `json:"timestamp,omitempty"`
}

func recordOf(id int, p geom.Point, c Color) CircleRecord {
	return CircleRecord{ID: id, Pos: [2]float64{p.X, p.Y}, Color: c}
}

// PointOf converts a persisted position back to a point.
func (r CircleRecord) PointOf() geom.Point {
	return geom.Point{X: r.Pos[0], Y: r.Pos[1]}
}
