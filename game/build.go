package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/brensch/ringworld/geom"
)

// Ratio between successive octagon radii of the fractal layout.
var fractalRatio = math.Sqrt2 - 1

// ErrBadBoardConfig is returned by Build for configurations that cannot
// produce a board.
var ErrBadBoardConfig = errors.New("game: invalid board config")

// BoardConfig controls the board layout.
type BoardConfig struct {
	Center       geom.Point
	BaseRadius   float64
	SmallRadius  float64
	MediumRadius float64
	LargeRadius  float64

	// Reduced builds a single large circle at Center instead of eight.
	Reduced bool

	// DedupThreshold is the distance under which two generated centers are
	// treated as the same circle.
	DedupThreshold float64
}

func DefaultBoardConfig() BoardConfig {
	return BoardConfig{
		Center:         geom.Point{X: 300, Y: 300},
		BaseRadius:     120,
		SmallRadius:    5,
		MediumRadius:   30,
		LargeRadius:    90,
		DedupThreshold: 0.1,
	}
}

func (c BoardConfig) validate() error {
	switch {
	case c.BaseRadius <= 0:
		return fmt.Errorf("%w: base radius %v", ErrBadBoardConfig, c.BaseRadius)
	case c.SmallRadius <= 0, c.MediumRadius <= 0, c.LargeRadius <= 0:
		return fmt.Errorf("%w: circle radii must be positive", ErrBadBoardConfig)
	case c.DedupThreshold <= 0:
		return fmt.Errorf("%w: dedup threshold %v", ErrBadBoardConfig, c.DedupThreshold)
	}
	return nil
}

// dedupSet answers "have we already placed a center within threshold of p"
// with a bucketed lookup keyed by the position rounded to 3 decimals.
type dedupSet struct {
	threshold float64
	buckets   map[cell][]int
	points    []geom.Point
}

func newDedupSet(threshold float64) *dedupSet {
	return &dedupSet{threshold: threshold, buckets: make(map[cell][]int)}
}

func (d *dedupSet) key(p geom.Point) cell {
	p = p.Round(3)
	return cell{x: int(math.Floor(p.X / d.threshold)), y: int(math.Floor(p.Y / d.threshold))}
}

// find returns the id of an existing point within threshold of p.
func (d *dedupSet) find(p geom.Point) (int, bool) {
	k := d.key(p)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for _, id := range d.buckets[cell{k.x + dx, k.y + dy}] {
				if geom.Distance(d.points[id], p) < d.threshold {
					return id, true
				}
			}
		}
	}
	return 0, false
}

func (d *dedupSet) add(p geom.Point) int {
	id := len(d.points)
	d.points = append(d.points, p)
	k := d.key(p)
	d.buckets[k] = append(d.buckets[k], id)
	return id
}

// Build lays out the fractal board. Large centers sit on a regular polygon
// around cfg.Center (a single one at the center when Reduced), each spawning
// an octagon of mediums, each medium an octagon of smalls. Coincident centers
// shared between neighbouring parents are merged, first seen wins, and ids
// are handed out per tier in discovery order.
//
// A medium that does not end up with exactly eight smalls inside it is
// recorded in Board.Warnings and logged; the board is still returned.
func Build(cfg BoardConfig, logger *slog.Logger) (*Board, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var largeCenters []geom.Point
	if cfg.Reduced {
		largeCenters = []geom.Point{cfg.Center}
	} else {
		const n = 8
		largeCenters = geom.RegularPolygon(cfg.Center, cfg.BaseRadius, n, math.Pi/n)
	}

	mediumR := cfg.BaseRadius * fractalRatio
	smallR := cfg.BaseRadius * fractalRatio * fractalRatio

	mediums := newDedupSet(cfg.DedupThreshold)
	smalls := newDedupSet(cfg.DedupThreshold)

	b := &Board{
		Config:    cfg,
		smallIdx:  newSpatialIndex(cfg.MediumRadius),
		mediumIdx: newSpatialIndex(cfg.MediumRadius),
	}

	for li, lc := range largeCenters {
		large := LargeCircle{ID: li, Pos: lc}
		for _, mp := range geom.RegularPolygon(lc, mediumR, 8, math.Pi/8) {
			if id, ok := mediums.find(mp); ok {
				large.Members = append(large.Members, id)
				continue
			}
			mid := mediums.add(mp)
			large.Members = append(large.Members, mid)
			b.Medium = append(b.Medium, MediumCircle{ID: mid, Pos: mp})

			for _, sp := range geom.RegularPolygon(mp, smallR, 8, math.Pi/8) {
				if _, ok := smalls.find(sp); ok {
					continue
				}
				sid := smalls.add(sp)
				b.Small = append(b.Small, SmallCircle{ID: sid, Pos: sp})
			}
		}
		b.Large = append(b.Large, large)
	}

	b.initialSmall = b.SmallPositions()
	b.initialMedium = make([]geom.Point, len(b.Medium))
	for i := range b.Medium {
		b.initialMedium[i] = b.Medium[i].Pos
	}

	for i := range b.Medium {
		if n := len(b.SmallInside(i)); n != 8 {
			w := fmt.Sprintf("medium circle %d contains %d small circles, want 8", i, n)
			b.Warnings = append(b.Warnings, w)
			logger.Warn("board construction invariant violated", "medium", i, "contained", n)
		}
	}

	logger.Debug("board built",
		"large", len(b.Large),
		"medium", len(b.Medium),
		"small", len(b.Small),
		"warnings", len(b.Warnings),
	)
	return b, nil
}
