package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/rules"
)

// ErrNoMoves is returned when the player to move has nothing legal to do.
var ErrNoMoves = errors.New("ai: no legal moves")

const (
	DefaultMaxPlacements = 8

	largeWeight = 10.0
	winScore    = 1000.0
)

// Decision is one full turn: an optional placement followed by an optional
// rotation. Placement is -1 when the turn starts in the rotation phase.
type Decision struct {
	Placement   int
	Rotation    rules.Target
	HasRotation bool
	Score       float64
}

func (d Decision) String() string {
	s := "no placement"
	if d.Placement >= 0 {
		s = fmt.Sprintf("place small#%d", d.Placement)
	}
	if d.HasRotation {
		s += fmt.Sprintf(", rotate %s", d.Rotation)
	}
	return fmt.Sprintf("%s (%.1f)", s, d.Score)
}

// Player picks moves for one color.
//
// The Evaluator ranks the legal placements and only the best MaxPlacements
// are searched. Each of those is combined with every rotation it allows, and
// the resulting positions are compared by stone balance, large circle
// control, and wins.
//
// With a Rand and a positive Temperature the final choice is sampled from a
// softmax over the searched scores instead of taking the maximum.
//
// When Simulations is positive the one-ply scan is replaced by a PUCT tree
// search of that many simulations. The evaluator then supplies placement
// priors and the decision follows visit counts; Score is the mean value of
// the chosen move in [-1, 1].
type Player struct {
	Color         game.Color
	Evaluator     Evaluator
	MaxPlacements int
	Temperature   float64
	Rand          *rand.Rand

	Simulations int
	Cpuct       float32
}

func (p *Player) maxPlacements() int {
	if p.MaxPlacements <= 0 {
		return DefaultMaxPlacements
	}
	return p.MaxPlacements
}

func (p *Player) score(e *rules.Engine) float64 {
	switch e.Winner() {
	case p.Color:
		return winScore
	case p.Color.Opponent():
		return -winScore
	}
	b := e.Board()
	large := b.CountLarge(p.Color) - b.CountLarge(p.Color.Opponent())
	return float64(e.EvaluatePosition(p.Color)) + largeWeight*float64(large)
}

// rankPlacements orders the legal placements by evaluator score, best first,
// and keeps the top MaxPlacements.
func (p *Player) rankPlacements(e *rules.Engine, moves []rules.Target) ([]int, error) {
	ev := p.Evaluator
	if ev == nil {
		ev = Greedy{Graph: e.Graph()}
	}
	scores, err := ev.Evaluate(Features(e.Board(), p.Color))
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	ids := make([]int, 0, len(moves))
	for _, m := range moves {
		ids = append(ids, m.ID)
	}
	scoreOf := func(id int) float32 {
		if id < len(scores) {
			return scores[id]
		}
		return 0
	}
	sort.SliceStable(ids, func(i, j int) bool { return scoreOf(ids[i]) > scoreOf(ids[j]) })
	if n := p.maxPlacements(); len(ids) > n {
		ids = ids[:n]
	}
	return ids, nil
}

// rotations appends a scored decision for every legal rotation from e. With
// none available the position itself is scored.
func (p *Player) rotations(ctx context.Context, e *rules.Engine, placement int, out []Decision) ([]Decision, error) {
	if e.Winner() != game.Neutral {
		return append(out, Decision{Placement: placement, Score: p.score(e)}), nil
	}
	moves := e.ValidMoves()
	if len(moves) == 0 || e.State().Phase != game.Rotation {
		return append(out, Decision{Placement: placement, Score: p.score(e)}), nil
	}
	scope := e.Config().Scope
	for _, t := range moves {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		sim := e.Clone()
		if err := sim.MakeRotationMove(t, p.Color, scope); err != nil {
			continue
		}
		sim.FinishRotation()
		out = append(out, Decision{Placement: placement, Rotation: t, HasRotation: true, Score: p.score(sim)})
	}
	return out, nil
}

// Choose searches the position without changing e. If ctx ends mid search
// the best decision found so far is returned.
func (p *Player) Choose(ctx context.Context, e *rules.Engine) (Decision, error) {
	base := e.Clone()
	base.FinishRotation()

	if base.Winner() != game.Neutral {
		return Decision{}, rules.ErrGameOver
	}
	if base.State().Turn != p.Color {
		return Decision{}, rules.ErrNotYourTurn
	}
	moves := base.ValidMoves()
	if len(moves) == 0 {
		return Decision{}, ErrNoMoves
	}
	if p.Simulations > 0 {
		return p.chooseBySearch(ctx, base)
	}

	var (
		candidates []Decision
		err        error
	)
	if base.State().Phase == game.Rotation {
		candidates, err = p.rotations(ctx, base, -1, nil)
	} else {
		var ids []int
		ids, err = p.rankPlacements(base, moves)
		if err != nil {
			return Decision{}, err
		}
		for _, id := range ids {
			if err = ctx.Err(); err != nil {
				break
			}
			sim := base.Clone()
			if perr := sim.MakePlacementMove(id, p.Color); perr != nil {
				continue
			}
			candidates, err = p.rotations(ctx, sim, id, candidates)
			if err != nil {
				break
			}
		}
	}

	if len(candidates) == 0 {
		if err != nil {
			return Decision{}, err
		}
		return Decision{}, ErrNoMoves
	}
	return p.pick(candidates), nil
}

func (p *Player) chooseBySearch(ctx context.Context, base *rules.Engine) (Decision, error) {
	cfg := SearchConfig{Cpuct: p.Cpuct, MaxPlacements: p.maxPlacements()}
	tree, err := Search(ctx, p.Evaluator, cfg, base, p.Simulations)
	if err != nil && ctx.Err() == nil {
		return Decision{}, err
	}
	c := MostVisited(tree, p.Rand, p.Temperature)
	if c == nil {
		if err != nil {
			return Decision{}, err
		}
		return Decision{}, ErrNoMoves
	}
	if c.Move.Tier != rules.TierSmall {
		return Decision{Placement: -1, Rotation: c.Move, HasRotation: true, Score: float64(c.Q())}, nil
	}

	d := Decision{Placement: c.Move.ID, Score: float64(c.Q())}
	if r := MostVisited(c.Node, nil, 0); r != nil {
		d.Rotation = r.Move
		d.HasRotation = true
		return d, nil
	}
	// The rotation level was never visited; finish the turn with the scan.
	cands, _ := p.rotations(context.WithoutCancel(ctx), c.Node.Engine, d.Placement, nil)
	best := Decision{Placement: d.Placement, Score: math.Inf(-1)}
	for _, cand := range cands {
		if cand.Score > best.Score {
			best = cand
		}
	}
	if !best.HasRotation {
		return d, nil
	}
	d.Rotation = best.Rotation
	d.HasRotation = true
	return d, nil
}

func (p *Player) pick(candidates []Decision) Decision {
	if p.Rand != nil && p.Temperature > 0 {
		scores := make([]float64, len(candidates))
		for i, c := range candidates {
			scores[i] = c.Score
		}
		probs := softmax(scores, p.Temperature)
		r := p.Rand.Float64()
		acc := 0.0
		for i, pr := range probs {
			acc += pr
			if r < acc {
				return candidates[i]
			}
		}
		return candidates[len(candidates)-1]
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best
}

// Play chooses and applies a full turn on e. Any rotation is left running;
// the caller drives it with Update or FinishRotation.
func (p *Player) Play(ctx context.Context, e *rules.Engine) (Decision, error) {
	e.FinishRotation()
	d, err := p.Choose(ctx, e)
	if err != nil {
		return d, err
	}
	if d.Placement >= 0 {
		if err := e.MakePlacementMove(d.Placement, p.Color); err != nil {
			return d, fmt.Errorf("place small#%d: %w", d.Placement, err)
		}
	}
	if d.HasRotation {
		if err := e.MakeRotationMove(d.Rotation, p.Color, e.Config().Scope); err != nil {
			return d, fmt.Errorf("rotate %s: %w", d.Rotation, err)
		}
	}
	return d, nil
}
