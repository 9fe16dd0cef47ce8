package game

import (
	"math"
	"sort"

	"github.com/brensch/ringworld/geom"
)

type cell struct {
	x, y int
}

// spatialIndex buckets circle centers into a uniform grid. It is rebuilt
// lazily after any position write, so queries always see current positions.
type spatialIndex struct {
	size    float64
	buckets map[cell][]int
	dirty   bool
}

func newSpatialIndex(size float64) *spatialIndex {
	if size <= 0 {
		size = 1
	}
	return &spatialIndex{size: size, dirty: true}
}

func (ix *spatialIndex) cellOf(p geom.Point) cell {
	return cell{x: int(math.Floor(p.X / ix.size)), y: int(math.Floor(p.Y / ix.size))}
}

func (ix *spatialIndex) rebuild(pos func(i int) geom.Point, n int) {
	ix.buckets = make(map[cell][]int, n)
	for i := 0; i < n; i++ {
		c := ix.cellOf(pos(i))
		ix.buckets[c] = append(ix.buckets[c], i)
	}
	ix.dirty = false
}

// within returns ids whose position satisfies keep, scanning only buckets that
// intersect the square of half-width r around center. Results are sorted.
func (ix *spatialIndex) within(center geom.Point, r float64, keep func(i int) bool) []int {
	lo := ix.cellOf(geom.Point{X: center.X - r, Y: center.Y - r})
	hi := ix.cellOf(geom.Point{X: center.X + r, Y: center.Y + r})
	var out []int
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			for _, i := range ix.buckets[cell{x, y}] {
				if keep(i) {
					out = append(out, i)
				}
			}
		}
	}
	sort.Ints(out)
	return out
}
