// Package ai chooses moves for a computer player. Move ranking is delegated
// to a pluggable Evaluator (a connection heuristic or an ONNX model); the
// Player then simulates placement and rotation combinations on engine
// clones and keeps the one with the best resulting position.
package ai

import "github.com/brensch/ringworld/game"

// FeatureSize is the length of the board encoding: one slot per small circle
// of the full board.
const FeatureSize = 272

// Features encodes the board from color's point of view: 1 for color's
// stones, -1 for the opponent's, 0 for empty. Slot i is small circle i;
// boards with fewer circles are zero padded.
func Features(b *game.Board, color game.Color) []float32 {
	out := make([]float32, FeatureSize)
	opp := color.Opponent()
	for i := range b.Small {
		if i >= FeatureSize {
			break
		}
		switch b.Small[i].Color {
		case color:
			out[i] = 1
		case opp:
			out[i] = -1
		}
	}
	return out
}
