package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/geom"
	"github.com/brensch/ringworld/graph"
	"github.com/brensch/ringworld/rules"
)

func newEngine(t *testing.T) *rules.Engine {
	t.Helper()
	cfg := rules.DefaultConfig()
	cfg.Board.Reduced = true
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.Now = func() time.Time { return now }
	e, err := rules.New(cfg)
	if err != nil {
		t.Fatalf("rules.New: %v", err)
	}
	return e
}

func TestFeatures(t *testing.T) {
	e := newEngine(t)
	b := e.Board()
	b.Small[0].Color = game.Red
	b.Small[1].Color = game.Blue

	red := Features(b, game.Red)
	if len(red) != FeatureSize {
		t.Fatalf("len=%d want %d", len(red), FeatureSize)
	}
	if red[0] != 1 || red[1] != -1 || red[2] != 0 {
		t.Fatalf("red view=%v", red[:3])
	}
	for i := len(b.Small); i < FeatureSize; i++ {
		if red[i] != 0 {
			t.Fatalf("padding slot %d=%v", i, red[i])
		}
	}

	blue := Features(b, game.Blue)
	if blue[0] != -1 || blue[1] != 1 {
		t.Fatalf("blue view=%v", blue[:2])
	}
}

func TestGreedy(t *testing.T) {
	g := graph.New(3)
	pts := []geom.Point{{X: 0}, {X: 10}, {X: 20}}
	if err := g.Rebuild(pts, graph.Options{ExpectedDistance: 10, Tolerance: 0.1}); err != nil {
		t.Fatal(err)
	}
	got, err := Greedy{Graph: g}.Evaluate([]float32{1, 0, -1})
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{-1, 1.5, -1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scores=%v want %v", got, want)
		}
	}

	// without a graph every empty slot is equal
	got, _ = Greedy{}.Evaluate([]float32{0, 1})
	if got[0] != 1 || got[1] != -1 {
		t.Fatalf("no-graph scores=%v", got)
	}
}

func TestSoftmax(t *testing.T) {
	p := softmax([]float64{1, 2, 3}, 1)
	sum := 0.0
	for _, v := range p {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("sum=%v", sum)
	}
	if !(p[0] < p[1] && p[1] < p[2]) {
		t.Fatalf("not monotonic: %v", p)
	}

	cold := softmax([]float64{1, 2, 3}, 0.01)
	if cold[2] < 0.999 {
		t.Fatalf("low temperature should concentrate, got %v", cold)
	}
	if len(softmax(nil, 1)) != 0 {
		t.Fatal("empty input")
	}
}

func TestChoose_DoesNotMutate(t *testing.T) {
	e := newEngine(t)
	before, _ := json.Marshal(e.Serialize())

	p := &Player{Color: game.Red}
	d, err := p.Choose(context.Background(), e)
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if d.Placement < 0 || !d.HasRotation {
		t.Fatalf("expected a full turn, got %v", d)
	}

	after, _ := json.Marshal(e.Serialize())
	if string(before) != string(after) {
		t.Fatalf("Choose changed the engine\nbefore %s\nafter  %s", before, after)
	}
	if _, ok := e.TakeMove(); ok {
		t.Fatal("Choose must not record moves")
	}
}

func TestChoose_Errors(t *testing.T) {
	e := newEngine(t)

	_, err := (&Player{Color: game.Blue}).Choose(context.Background(), e)
	if !errors.Is(err, rules.ErrNotYourTurn) {
		t.Fatalf("err=%v want ErrNotYourTurn", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&Player{Color: game.Red}).Choose(ctx, e)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}

	if err := e.Resign(game.Red); err != nil {
		t.Fatal(err)
	}
	_, err = (&Player{Color: game.Blue}).Choose(context.Background(), e)
	if !errors.Is(err, rules.ErrGameOver) {
		t.Fatalf("err=%v want ErrGameOver", err)
	}
}

type failing struct{}

func (failing) Evaluate([]float32) ([]float32, error) { return nil, errors.New("boom") }

func TestChoose_EvaluatorError(t *testing.T) {
	e := newEngine(t)
	_, err := (&Player{Color: game.Red, Evaluator: failing{}}).Choose(context.Background(), e)
	if err == nil {
		t.Fatal("expected evaluator error")
	}
}

func TestPlay_AppliesFullTurn(t *testing.T) {
	e := newEngine(t)
	p := &Player{Color: game.Red}
	d, err := p.Play(context.Background(), e)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := e.Board().CountSmall(game.Red); got != 1 {
		t.Fatalf("red stones=%d want 1", got)
	}
	if !e.Animating() {
		t.Fatal("rotation should be running")
	}
	if e.State().Turn != game.Blue {
		t.Fatalf("turn=%s want blue", e.State().Turn)
	}

	placed, ok := e.TakeMove()
	if !ok || placed.Phase != game.Placement {
		t.Fatalf("first record=%+v ok=%v", placed, ok)
	}
	rotated, ok := e.TakeMove()
	if !ok || rotated.Phase != game.Rotation || rotated.RotationType != d.Rotation.Tier.String() {
		t.Fatalf("second record=%+v ok=%v decision %v", rotated, ok, d)
	}
}

func TestSelfPlay_RunsToCompletion(t *testing.T) {
	e := newEngine(t)
	players := map[game.Color]*Player{
		game.Red:  {Color: game.Red, Temperature: 0.5, Rand: rand.New(rand.NewSource(1))},
		game.Blue: {Color: game.Blue, MaxPlacements: 3},
	}
	ctx := context.Background()

	turns := 0
	for ; turns < 200 && e.Winner() == game.Neutral; turns++ {
		p := players[e.State().Turn]
		_, err := p.Play(ctx, e)
		if errors.Is(err, ErrNoMoves) {
			break
		}
		if err != nil {
			t.Fatalf("turn %d (%s): %v", turns, p.Color, err)
		}
		e.FinishRotation()
	}
	if turns == 0 {
		t.Fatal("no turns played")
	}
	if e.Board().CountSmall(game.Red)+e.Board().CountSmall(game.Blue) == 0 {
		t.Fatal("board is empty after self play")
	}
}

func TestOnnxEvaluator(t *testing.T) {
	model := os.Getenv("ONNX_MODEL")
	if model == "" {
		t.Skip("ONNX_MODEL not set")
	}
	ev, err := NewOnnxEvaluator(model)
	if err != nil {
		t.Fatalf("NewOnnxEvaluator: %v", err)
	}
	defer ev.Close()

	scores, err := ev.Evaluate(make([]float32, FeatureSize))
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != FeatureSize {
		t.Fatalf("len=%d", len(scores))
	}
	if _, err := ev.Evaluate(make([]float32, 3)); err == nil {
		t.Fatal("short input should fail")
	}
}

func TestSearch_BuildsTreeWithoutTouchingRoot(t *testing.T) {
	e := newEngine(t)
	before, _ := json.Marshal(e.Serialize())

	tree, err := Search(context.Background(), nil, SearchConfig{MaxPlacements: 6}, e, 64)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	after, _ := json.Marshal(e.Serialize())
	if string(before) != string(after) {
		t.Fatal("Search changed the root engine")
	}

	if tree.VisitCount != 64 {
		t.Fatalf("root visits=%d want 64", tree.VisitCount)
	}
	if tree.Mover != game.Red {
		t.Fatalf("root mover=%s", tree.Mover)
	}
	if len(tree.Children) != 6 {
		t.Fatalf("children=%d want 6", len(tree.Children))
	}
	childVisits := 0
	prior := float32(0)
	for _, c := range tree.Children {
		if c.Move.Tier != rules.TierSmall {
			t.Fatalf("root child %s is not a placement", c.Move)
		}
		childVisits += c.VisitCount
		prior += c.PriorProb
		if c.Node != nil && c.Node.Mover != game.Red {
			t.Fatalf("after placing red still moves, got %s", c.Node.Mover)
		}
	}
	// the first simulation only expands the root
	if childVisits != 63 {
		t.Fatalf("child visits=%d want 63", childVisits)
	}
	if math.Abs(float64(prior)-1) > 1e-4 {
		t.Fatalf("priors sum to %v", prior)
	}

	best := MostVisited(tree, nil, 0)
	if best == nil || best.Node == nil {
		t.Fatal("no visited child")
	}
	for _, r := range best.Node.Children {
		if r.Move.Tier == rules.TierSmall {
			t.Fatalf("second level should be rotations, got %s", r.Move)
		}
		if r.Node != nil && r.Node.Mover != game.Blue {
			t.Fatalf("after rotating blue moves, got %s", r.Node.Mover)
		}
	}
}

func TestSearch_Cancelled(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tree, err := Search(ctx, nil, SearchConfig{}, e, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if tree == nil || tree.VisitCount != 0 {
		t.Fatalf("tree=%+v", tree)
	}
}

func TestSearch_BackpropagateSides(t *testing.T) {
	root := &Node{Mover: game.Red}
	placed := &Node{Mover: game.Red}
	rotated := &Node{Mover: game.Blue}
	edges := []*Child{{Node: placed}, {Node: rotated}}

	backpropagate([]*Node{root, placed, rotated}, edges, 1)

	if root.ValueSum != 1 || placed.ValueSum != 1 || rotated.ValueSum != -1 {
		t.Fatalf("node values %v %v %v", root.ValueSum, placed.ValueSum, rotated.ValueSum)
	}
	// edges are scored for the color that chose them, which is red both times
	if edges[0].Q() != 1 || edges[1].Q() != 1 {
		t.Fatalf("edge values %v %v", edges[0].Q(), edges[1].Q())
	}
	for _, n := range []*Node{root, placed, rotated} {
		if n.VisitCount != 1 {
			t.Fatalf("visits=%d", n.VisitCount)
		}
	}
}

func TestSearch_TerminalValue(t *testing.T) {
	e := newEngine(t)
	if err := e.Resign(game.Red); err != nil {
		t.Fatal(err)
	}
	n := newNode(e, rules.Target{})
	if err := expand(nil, SearchConfig{}, n); err != nil {
		t.Fatal(err)
	}
	if !n.IsTerminal || len(n.Children) != 0 {
		t.Fatalf("terminal=%v children=%d", n.IsTerminal, len(n.Children))
	}
	if v := evaluate(n); v != -1 {
		t.Fatalf("value=%v want -1 for a blue win", v)
	}
}

func TestChoose_WithSimulations(t *testing.T) {
	e := newEngine(t)
	before, _ := json.Marshal(e.Serialize())

	p := &Player{Color: game.Red, Simulations: 40, MaxPlacements: 4}
	d, err := p.Choose(context.Background(), e)
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if d.Placement < 0 || !d.HasRotation {
		t.Fatalf("expected a full turn, got %v", d)
	}
	if d.Score < -1 || d.Score > 1 {
		t.Fatalf("score=%v outside [-1, 1]", d.Score)
	}
	after, _ := json.Marshal(e.Serialize())
	if string(before) != string(after) {
		t.Fatal("Choose changed the engine")
	}

	if _, err := p.Play(context.Background(), e); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := e.Board().CountSmall(game.Red); got != 1 {
		t.Fatalf("red stones=%d want 1", got)
	}
	if e.State().Turn != game.Blue {
		t.Fatalf("turn=%s want blue", e.State().Turn)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blue := &Player{Color: game.Blue, Simulations: 10}
	if _, err := blue.Choose(ctx, e); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}
