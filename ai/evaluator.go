package ai

import (
	"math"

	"github.com/brensch/ringworld/graph"
)

// Evaluator scores every small-circle slot of an encoded board. Higher is a
// better placement. Output index i refers to small circle i.
type Evaluator interface {
	Evaluate(features []float32) ([]float32, error)
}

// Greedy scores an empty slot by how many of the mover's stones it would
// connect to, minus half the opponent stones it touches. Occupied slots
// score -1.
type Greedy struct {
	Graph *graph.Graph
}

func (g Greedy) Evaluate(features []float32) ([]float32, error) {
	out := make([]float32, len(features))
	for i, f := range features {
		if f != 0 {
			out[i] = -1
			continue
		}
		score := float32(1)
		if g.Graph != nil {
			for _, n := range g.Graph.Neighbors(i) {
				if n >= len(features) {
					continue
				}
				switch features[n] {
				case 1:
					score++
				case -1:
					score -= 0.5
				}
			}
		}
		out[i] = score
	}
	return out, nil
}

// softmax converts scores into a probability distribution at the given
// temperature.
func softmax(scores []float64, temperature float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	if temperature <= 0 {
		temperature = 1
	}
	maxV := scores[0]
	for _, s := range scores[1:] {
		if s > maxV {
			maxV = s
		}
	}
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp((s - maxV) / temperature)
		sum += out[i]
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
	return out
}
