package game

import (
	"github.com/brensch/ringworld/geom"
)

// SmallCircle is a leaf cell that holds a stone.
type SmallCircle struct {
	ID    int
	Pos   geom.Point
	Color Color
}

// MediumCircle is a group of eight small circles. Its color is derived.
type MediumCircle struct {
	ID    int
	Pos   geom.Point
	Color Color
}

// LargeCircle never moves. Members records the medium ids laid out around it
// at build time, including mediums shared with a neighbouring large circle.
type LargeCircle struct {
	ID      int
	Pos     geom.Point
	Color   Color
	Members []int
}

// Board is the circle arena. Colors may be written directly through the
// slices; positions must be written with SetSmallPos or SetMediumPos so the
// spatial indexes are invalidated.
type Board struct {
	Config BoardConfig

	Large  []LargeCircle
	Medium []MediumCircle
	Small  []SmallCircle

	// Warnings are construction invariant violations found by Build.
	Warnings []string

	initialSmall  []geom.Point
	initialMedium []geom.Point

	smallIdx  *spatialIndex
	mediumIdx *spatialIndex
}

func (b *Board) SetSmallPos(id int, p geom.Point) {
	b.Small[id].Pos = p
	b.smallIdx.dirty = true
}

func (b *Board) SetMediumPos(id int, p geom.Point) {
	b.Medium[id].Pos = p
	b.mediumIdx.dirty = true
}

func (b *Board) smallIndex() *spatialIndex {
	if b.smallIdx.dirty {
		b.smallIdx.rebuild(func(i int) geom.Point { return b.Small[i].Pos }, len(b.Small))
	}
	return b.smallIdx
}

func (b *Board) mediumIndex() *spatialIndex {
	if b.mediumIdx.dirty {
		b.mediumIdx.rebuild(func(i int) geom.Point { return b.Medium[i].Pos }, len(b.Medium))
	}
	return b.mediumIdx
}

// SmallWithin returns the ids of small circles whose center is within r of
// center (inclusive), in ascending id order.
func (b *Board) SmallWithin(center geom.Point, r float64) []int {
	return b.smallIndex().within(center, r, func(i int) bool {
		return geom.PointInCircle(b.Small[i].Pos, center, r)
	})
}

// SmallInside returns the small circles currently inside a medium circle.
func (b *Board) SmallInside(mediumID int) []int {
	return b.SmallWithin(b.Medium[mediumID].Pos, b.Config.MediumRadius)
}

// MediumsContaining returns the medium circles whose radius covers a small
// circle's current position.
func (b *Board) MediumsContaining(smallID int) []int {
	p := b.Small[smallID].Pos
	r := b.Config.MediumRadius
	return b.mediumIndex().within(p, r, func(i int) bool {
		return geom.PointInCircle(p, b.Medium[i].Pos, r)
	})
}

// MediumFullyInside returns mediums lying entirely within a large circle.
func (b *Board) MediumFullyInside(largeID int) []int {
	l := b.Large[largeID].Pos
	mr, lr := b.Config.MediumRadius, b.Config.LargeRadius
	return b.mediumIndex().within(l, lr, func(i int) bool {
		return geom.FullyContained(b.Medium[i].Pos, mr, l, lr)
	})
}

// MediumOverlapping returns mediums whose center lies within a large
// circle's radius, including ones that hang over its edge.
func (b *Board) MediumOverlapping(largeID int) []int {
	l := b.Large[largeID].Pos
	lr := b.Config.LargeRadius
	return b.mediumIndex().within(l, lr, func(i int) bool {
		return geom.PointInCircle(b.Medium[i].Pos, l, lr)
	})
}

// MediumNeighbours returns the other mediums that intersect mediumID.
func (b *Board) MediumNeighbours(mediumID int) []int {
	p := b.Medium[mediumID].Pos
	r := b.Config.MediumRadius
	return b.mediumIndex().within(p, 2*r, func(i int) bool {
		return i != mediumID && geom.CirclesOverlap(p, b.Medium[i].Pos, r)
	})
}

// SmallPositions returns current small-circle positions indexed by id.
func (b *Board) SmallPositions() []geom.Point {
	out := make([]geom.Point, len(b.Small))
	for i := range b.Small {
		out[i] = b.Small[i].Pos
	}
	return out
}

// CountSmall returns how many small circles hold c.
func (b *Board) CountSmall(c Color) int {
	n := 0
	for i := range b.Small {
		if b.Small[i].Color == c {
			n++
		}
	}
	return n
}

// CountLarge returns how many large circles hold c.
func (b *Board) CountLarge(c Color) int {
	n := 0
	for i := range b.Large {
		if b.Large[i].Color == c {
			n++
		}
	}
	return n
}

// Reset puts every circle back where Build placed it and clears all colors.
func (b *Board) Reset() {
	for i := range b.Small {
		b.Small[i].Pos = b.initialSmall[i]
		b.Small[i].Color = Neutral
	}
	for i := range b.Medium {
		b.Medium[i].Pos = b.initialMedium[i]
		b.Medium[i].Color = Neutral
	}
	for i := range b.Large {
		b.Large[i].Color = Neutral
	}
	b.smallIdx.dirty = true
	b.mediumIdx.dirty = true
}

// Records returns the persisted form of the small and medium circles.
func (b *Board) Records() (small, medium []CircleRecord) {
	small = make([]CircleRecord, len(b.Small))
	for i, c := range b.Small {
		small[i] = recordOf(c.ID, c.Pos, c.Color)
	}
	medium = make([]CircleRecord, len(b.Medium))
	for i, c := range b.Medium {
		medium[i] = recordOf(c.ID, c.Pos, c.Color)
	}
	return small, medium
}

// Clone performs a deep copy of the board.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}

	out := &Board{
		Config:        b.Config,
		initialSmall:  b.initialSmall,
		initialMedium: b.initialMedium,
		smallIdx:      newSpatialIndex(b.smallIdx.size),
		mediumIdx:     newSpatialIndex(b.mediumIdx.size),
	}

	out.Small = make([]SmallCircle, len(b.Small))
	copy(out.Small, b.Small)
	out.Medium = make([]MediumCircle, len(b.Medium))
	copy(out.Medium, b.Medium)

	out.Large = make([]LargeCircle, len(b.Large))
	for i := range b.Large {
		out.Large[i] = b.Large[i]
		out.Large[i].Members = append([]int(nil), b.Large[i].Members...)
	}
	if len(b.Warnings) > 0 {
		out.Warnings = append([]string(nil), b.Warnings...)
	}

	return out
}
