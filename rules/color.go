package rules

import (
	"sort"

	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/graph"
)

const (
	// majority is the absolute count of one color (out of eight) that claims
	// a medium or large circle.
	majority = 5
	// pressure is the number of same-colored neighbours that recolors a
	// neutral circle.
	pressure = 2
)

func tally(ids []int, colorOf func(id int) game.Color) (red, blue int) {
	for _, id := range ids {
		switch colorOf(id) {
		case game.Red:
			red++
		case game.Blue:
			blue++
		}
	}
	return red, blue
}

func claim(red, blue, threshold int) game.Color {
	if red >= threshold {
		return game.Red
	}
	if blue >= threshold {
		return game.Blue
	}
	return game.Neutral
}

// resolveColors runs the derived-color cascade in its fixed order and then
// checks for a winner. propagate enables neighbour propagation, which only
// follows a completed rotation. It reports whether any color changed.
func (e *Engine) resolveColors(propagate bool) bool {
	changed := mediumFromContained(e.board)
	if mediumIntersections(e.board) {
		changed = true
	}
	if propagate && propagateNeighbours(e.board, e.conn) {
		changed = true
	}
	if largeFromContained(e.board) {
		changed = true
	}
	e.checkWinner()
	return changed
}

// mediumFromContained colors each medium from the smalls currently inside
// it. A medium with nothing inside keeps its color.
func mediumFromContained(b *game.Board) bool {
	changed := false
	for i := range b.Medium {
		inside := b.SmallInside(i)
		if len(inside) == 0 {
			continue
		}
		red, blue := tally(inside, func(id int) game.Color { return b.Small[id].Color })
		if c := claim(red, blue, majority); c != b.Medium[i].Color {
			b.Medium[i].Color = c
			changed = true
		}
	}
	return changed
}

// mediumIntersections lets a neutral medium be taken over by the mediums it
// intersects. Updates apply in id order and are visible to later mediums in
// the same pass. Red is checked first.
func mediumIntersections(b *game.Board) bool {
	changed := false
	for i := range b.Medium {
		if b.Medium[i].Color != game.Neutral {
			continue
		}
		red, blue := tally(b.MediumNeighbours(i), func(id int) game.Color { return b.Medium[id].Color })
		if c := claim(red, blue, pressure); c != game.Neutral {
			b.Medium[i].Color = c
			changed = true
		}
	}
	return changed
}

// propagateNeighbours repeatedly recolors neutral smalls that sit inside a
// medium and touch at least two same-colored circles in the connection
// graph, re-deriving medium colors after every pass, until a pass changes
// nothing. Each productive pass colors at least one circle, so it stops
// within len(b.Small) passes.
func propagateNeighbours(b *game.Board, g *graph.Graph) bool {
	progressed := false
	for pass := 0; pass <= len(b.Small); pass++ {
		var grey []int
		for _, id := range smallsInAnyMedium(b) {
			if b.Small[id].Color == game.Neutral {
				grey = append(grey, id)
			}
		}

		changed := false
		for _, id := range grey {
			red, blue := tally(g.Neighbors(id), func(n int) game.Color { return b.Small[n].Color })
			if c := claim(red, blue, pressure); c != game.Neutral {
				b.Small[id].Color = c
				changed = true
			}
		}
		if !changed {
			break
		}
		progressed = true
		mediumFromContained(b)
	}
	return progressed
}

func smallsInAnyMedium(b *game.Board) []int {
	seen := make(map[int]bool, len(b.Small))
	var out []int
	for i := range b.Medium {
		for _, id := range b.SmallInside(i) {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Ints(out)
	return out
}

// largeFromContained colors each large circle from the mediums lying fully
// inside it.
func largeFromContained(b *game.Board) bool {
	changed := false
	for i := range b.Large {
		red, blue := tally(b.MediumFullyInside(i), func(id int) game.Color { return b.Medium[id].Color })
		if c := claim(red, blue, majority); c != b.Large[i].Color {
			b.Large[i].Color = c
			changed = true
		}
	}
	return changed
}

// checkWinner sets the winner the first time a color holds enough large
// circles. Once set it never changes until Reset.
func (e *Engine) checkWinner() {
	if e.state.Winner != game.Neutral {
		return
	}
	need := majority
	if n := len(e.board.Large); n < need {
		// The reduced board is won by holding every large circle.
		need = n
	}
	if need == 0 {
		return
	}
	switch {
	case e.board.CountLarge(game.Red) >= need:
		e.state.Winner = game.Red
	case e.board.CountLarge(game.Blue) >= need:
		e.state.Winner = game.Blue
	default:
		return
	}
	e.log.Info("game won", "winner", e.state.Winner,
		"red_large", e.board.CountLarge(game.Red),
		"blue_large", e.board.CountLarge(game.Blue),
	)
}
