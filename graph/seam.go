package graph

import "github.com/brensch/ringworld/geom"

// PairList excludes a fixed set of unordered id pairs.
type PairList map[[2]int]struct{}

// NewPairList builds a PairList from pairs given in either order.
func NewPairList(pairs ...[2]int) PairList {
	pl := make(PairList, len(pairs))
	for _, p := range pairs {
		pl[orderPair(p[0], p[1])] = struct{}{}
	}
	return pl
}

func (pl PairList) Exclude(a, b int) bool {
	_, ok := pl[orderPair(a, b)]
	return ok
}

func orderPair(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// ClassicForbiddenPairs is the hand-tuned exclusion list for the default
// eight-large board in its initial layout. Each pair sits at the expected
// spacing but straddles the seam between two medium circles. It is only valid
// for that geometry; SharedParent derives the same set from positions.
func ClassicForbiddenPairs() PairList {
	return NewPairList(
		[2]int{10, 53}, [2]int{27, 81}, [2]int{29, 258}, [2]int{46, 253},
		[2]int{62, 82}, [2]int{79, 115}, [2]int{96, 116}, [2]int{113, 146},
		[2]int{131, 156}, [2]int{148, 151}, [2]int{155, 194}, [2]int{172, 197},
		[2]int{192, 234}, [2]int{213, 238}, [2]int{232, 260}, [2]int{248, 265},
	)
}

// SharedParent keeps an edge only when both endpoints lie inside a common
// medium circle. Edges that would cross a seam between mediums are dropped,
// whatever the board parameters.
type SharedParent struct {
	parents [][]int
}

// NewSharedParent snapshots which mediums contain each small circle.
// small and medium are current center positions indexed by id.
func NewSharedParent(small, medium []geom.Point, mediumRadius float64) *SharedParent {
	sp := &SharedParent{parents: make([][]int, len(small))}
	for i, s := range small {
		for j, m := range medium {
			if geom.PointInCircle(s, m, mediumRadius) {
				sp.parents[i] = append(sp.parents[i], j)
			}
		}
	}
	return sp
}

func (sp *SharedParent) Exclude(a, b int) bool {
	if a < 0 || b < 0 || a >= len(sp.parents) || b >= len(sp.parents) {
		return true
	}
	for _, pa := range sp.parents[a] {
		for _, pb := range sp.parents[b] {
			if pa == pb {
				return false
			}
		}
	}
	return true
}

// Any excludes a pair when any of its members does.
type Any []Excluder

func (x Any) Exclude(a, b int) bool {
	for _, e := range x {
		if e != nil && e.Exclude(a, b) {
			return true
		}
	}
	return false
}
