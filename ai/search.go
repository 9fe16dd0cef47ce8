package ai

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/rules"
)

const (
	DefaultCpuct = 1.0

	// valueScale squashes the position score into (-1, 1) for the tree.
	valueScale = 8.0
)

type SearchConfig struct {
	Cpuct float32
	// MaxPlacements bounds the placement children of a node to the best
	// ranked by the evaluator. Zero keeps them all.
	MaxPlacements int
}

// Node is a position in the search tree. Each level is one engine move by
// Mover: a placement or a rotation. A placement keeps the same mover (the
// player rotates next), a rotation hands the move to the opponent.
type Node struct {
	Engine *rules.Engine
	Mover  game.Color
	Move   rules.Target

	Children []*Child

	VisitCount int
	// ValueSum is from Mover's perspective.
	ValueSum float32

	IsExpanded bool
	IsTerminal bool
}

// Child is an edge out of a node. Node is created the first time the edge
// is selected.
type Child struct {
	Move       rules.Target
	Node       *Node
	PriorProb  float32
	VisitCount int
	// ValueSum is from the parent mover's perspective.
	ValueSum float32
}

// Q is the mean value of the edge for the parent's mover.
func (c *Child) Q() float32 {
	if c.VisitCount == 0 {
		return 0
	}
	return c.ValueSum / float32(c.VisitCount)
}

func newNode(e *rules.Engine, move rules.Target) *Node {
	return &Node{Engine: e, Mover: e.State().Turn, Move: move}
}

// Search runs PUCT simulations from root. The root engine is cloned and
// never changed. On context cancellation the tree built so far is returned
// with ctx.Err().
func Search(ctx context.Context, ev Evaluator, cfg SearchConfig, root *rules.Engine, simulations int) (*Node, error) {
	if cfg.Cpuct <= 0 {
		cfg.Cpuct = DefaultCpuct
	}
	start := root.Clone()
	start.FinishRotation()
	tree := newNode(start, rules.Target{})

	for i := 0; i < simulations; i++ {
		if err := ctx.Err(); err != nil {
			return tree, err
		}

		node, path, childPath, err := selectAndExpand(ev, cfg, tree)
		if err != nil {
			return tree, err
		}
		backpropagate(path, childPath, evaluate(node))
	}
	return tree, nil
}

func selectAndExpand(ev Evaluator, cfg SearchConfig, root *Node) (*Node, []*Node, []*Child, error) {
	node := root
	path := []*Node{node}
	var childPath []*Child

	for !node.IsTerminal {
		if !node.IsExpanded {
			if err := expand(ev, cfg, node); err != nil {
				return node, path, childPath, err
			}
			break
		}
		if len(node.Children) == 0 {
			break
		}

		best := selectBestChild(node, cfg)
		if best.Node == nil {
			next, err := play(node, best.Move)
			if err != nil {
				// ValidMoves offered it, so this only happens on a rules bug.
				return node, path, childPath, fmt.Errorf("search move %s: %w", best.Move, err)
			}
			best.Node = next
		}
		childPath = append(childPath, best)
		node = best.Node
		path = append(path, node)
	}
	return node, path, childPath, nil
}

func play(parent *Node, t rules.Target) (*Node, error) {
	e := parent.Engine.Clone()
	var err error
	if t.Tier == rules.TierSmall {
		err = e.MakePlacementMove(t.ID, parent.Mover)
	} else {
		err = e.MakeRotationMove(t, parent.Mover, e.Config().Scope)
		e.FinishRotation()
	}
	if err != nil {
		return nil, err
	}
	return newNode(e, t), nil
}

func selectBestChild(node *Node, cfg SearchConfig) *Child {
	var best *Child
	bestScore := float32(-1e9)
	sqrtN := float32(math.Sqrt(float64(node.VisitCount)))

	for _, child := range node.Children {
		u := child.Q() + cfg.Cpuct*child.PriorProb*sqrtN/(1+float32(child.VisitCount))
		if u > bestScore {
			bestScore = u
			best = child
		}
	}
	return best
}

// expand creates the children of node with their priors. Placements are
// weighted by a softmax over evaluator scores; rotations share the prior
// evenly.
func expand(ev Evaluator, cfg SearchConfig, node *Node) error {
	node.IsExpanded = true
	e := node.Engine
	if e.Winner() != game.Neutral {
		node.IsTerminal = true
		return nil
	}
	moves := e.ValidMoves()
	if len(moves) == 0 {
		node.IsTerminal = true
		return nil
	}

	if e.State().Phase == game.Rotation {
		p := 1 / float32(len(moves))
		node.Children = make([]*Child, 0, len(moves))
		for _, t := range moves {
			node.Children = append(node.Children, &Child{Move: t, PriorProb: p})
		}
		return nil
	}

	if ev == nil {
		ev = Greedy{Graph: e.Graph()}
	}
	scores, err := ev.Evaluate(Features(e.Board(), node.Mover))
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	raw := make([]float64, len(moves))
	for i, t := range moves {
		if t.ID < len(scores) {
			raw[i] = float64(scores[t.ID])
		}
	}
	order := make([]int, len(moves))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return raw[order[a]] > raw[order[b]] })
	if cfg.MaxPlacements > 0 && len(order) > cfg.MaxPlacements {
		order = order[:cfg.MaxPlacements]
	}

	kept := make([]float64, len(order))
	for i, idx := range order {
		kept[i] = raw[idx]
	}
	priors := softmax(kept, 1)
	node.Children = make([]*Child, 0, len(order))
	for i, idx := range order {
		node.Children = append(node.Children, &Child{Move: moves[idx], PriorProb: float32(priors[i])})
	}
	return nil
}

// evaluate returns the value of node's position for Red: the result when
// the game is over, otherwise the squashed stone and large-circle balance.
func evaluate(node *Node) float32 {
	e := node.Engine
	switch e.Winner() {
	case game.Red:
		return 1
	case game.Blue:
		return -1
	}
	b := e.Board()
	diff := float64(e.EvaluatePosition(game.Red)) +
		largeWeight*float64(b.CountLarge(game.Red)-b.CountLarge(game.Blue))
	return float32(math.Tanh(diff / valueScale))
}

func perspective(redValue float32, c game.Color) float32 {
	if c == game.Blue {
		return -redValue
	}
	return redValue
}

// backpropagate credits every node on the path from its own mover's side,
// and every edge from the side of the mover that took it.
func backpropagate(path []*Node, childPath []*Child, redValue float32) {
	for i, node := range path {
		v := perspective(redValue, node.Mover)
		node.VisitCount++
		node.ValueSum += v
		if i < len(childPath) {
			childPath[i].VisitCount++
			childPath[i].ValueSum += v
		}
	}
}

// MostVisited returns the child with the most visits, or one sampled with
// probability proportional to visits^(1/temperature) when rng is set and
// temperature is positive. It returns nil when no child was visited.
func MostVisited(node *Node, rng *rand.Rand, temperature float64) *Child {
	var visited []*Child
	for _, c := range node.Children {
		if c.VisitCount > 0 && c.Node != nil {
			visited = append(visited, c)
		}
	}
	if len(visited) == 0 {
		return nil
	}
	if rng != nil && temperature > 0 {
		weights := make([]float64, len(visited))
		total := 0.0
		for i, c := range visited {
			weights[i] = math.Pow(float64(c.VisitCount), 1/temperature)
			total += weights[i]
		}
		r := rng.Float64() * total
		for i, w := range weights {
			r -= w
			if r < 0 {
				return visited[i]
			}
		}
		return visited[len(visited)-1]
	}
	best := visited[0]
	for _, c := range visited[1:] {
		if c.VisitCount > best.VisitCount {
			best = c
		}
	}
	return best
}
