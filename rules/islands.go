package rules

import (
	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/graph"
)

// FindIslands returns the same-colored connected groups of small circles
// that are strictly enclosed by the opposite color: every circle bordering
// the group belongs to the opponent, and there is at least one such border
// circle. A group with no border at all is not an island.
func FindIslands(b *game.Board, g *graph.Graph) [][]int {
	comps := g.Components(func(id int) (int, bool) {
		c := b.Small[id].Color
		return int(c), c != game.Neutral
	})

	var islands [][]int
	for _, comp := range comps {
		border := g.Border(comp)
		if len(border) == 0 {
			continue
		}
		enemy := b.Small[comp[0]].Color.Opponent()
		enclosed := true
		for _, n := range border {
			if b.Small[n].Color != enemy {
				enclosed = false
				break
			}
		}
		if enclosed {
			islands = append(islands, comp)
		}
	}
	return islands
}

// NeutralizeIslands finds every island first and then clears them all,
// returning the ids it reset to Neutral.
func NeutralizeIslands(b *game.Board, g *graph.Graph) []int {
	var cleared []int
	for _, island := range FindIslands(b, g) {
		for _, id := range island {
			b.Small[id].Color = game.Neutral
			cleared = append(cleared, id)
		}
	}
	return cleared
}
