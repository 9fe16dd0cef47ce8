package geom

import (
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func TestRegularPolygon_Octagon(t *testing.T) {
	c := Point{X: 300, Y: 300}
	pts := RegularPolygon(c, 10, 8, math.Pi/8)
	if len(pts) != 8 {
		t.Fatalf("len=%d want=8", len(pts))
	}
	for i, p := range pts {
		if !approx(Distance(p, c), 10) {
			t.Fatalf("vertex %d at distance %v want 10", i, Distance(p, c))
		}
	}
	// Adjacent vertices of a regular octagon are 2r·sin(π/8) apart.
	side := 2 * 10 * math.Sin(math.Pi/8)
	for i := range pts {
		d := Distance(pts[i], pts[(i+1)%8])
		if !approx(d, side) {
			t.Fatalf("side %d=%v want=%v", i, d, side)
		}
	}
	first := ToPolar(pts[0], c)
	if !approx(first.Angle, math.Pi/8) {
		t.Fatalf("first angle=%v want π/8", first.Angle)
	}
}

func TestRegularPolygon_Degenerate(t *testing.T) {
	if got := RegularPolygon(Point{}, 1, 0, 0); got != nil {
		t.Fatalf("n=0 should return nil, got %v", got)
	}
	one := RegularPolygon(Point{X: 1, Y: 2}, 0, 1, 0)
	if len(one) != 1 || one[0] != (Point{X: 1, Y: 2}) {
		t.Fatalf("radius 0 single vertex should sit on center, got %v", one)
	}
}

func TestContainmentPredicates(t *testing.T) {
	c := Point{}
	if !PointInCircle(Point{X: 5}, c, 5) {
		t.Fatalf("boundary point must be inside")
	}
	if PointInCircle(Point{X: 5.0001}, c, 5) {
		t.Fatalf("point past boundary must be outside")
	}
	if !FullyContained(Point{X: 60}, 30, c, 90) {
		t.Fatalf("touching inner circle must count as contained")
	}
	if FullyContained(Point{X: 61}, 30, c, 90) {
		t.Fatalf("overhanging inner circle must not be contained")
	}
	if !CirclesOverlap(Point{}, Point{X: 59.9}, 30) {
		t.Fatalf("circles 59.9 apart with r=30 overlap")
	}
	if CirclesOverlap(Point{}, Point{X: 60}, 30) {
		t.Fatalf("tangent circles do not overlap")
	}
}

func TestRotationExactness(t *testing.T) {
	pivot := Point{X: 100, Y: 50}
	p := Point{X: 120, Y: 50}
	pl := ToPolar(p, pivot)

	// Progress is a pure function of elapsed time, so irregular ticks converge
	// on the same final position.
	var last Point
	for _, elapsed := range []float64{0.01, 0.3, 0.31, 0.9, 1.0, 1.7} {
		last = pl.At(pivot, RotationStep*Ease(elapsed, 1.0))
	}
	want := Point{
		X: pivot.X + 20*math.Cos(math.Pi/4),
		Y: pivot.Y + 20*math.Sin(math.Pi/4),
	}
	if !last.Near(want, 1e-9) {
		t.Fatalf("final=%v want=%v", last, want)
	}

	// Finalizing twice from the stored polar does not double-rotate.
	again := pl.At(pivot, RotationStep)
	if !again.Near(want, 1e-9) {
		t.Fatalf("second finalize=%v want=%v", again, want)
	}
}

func TestEase(t *testing.T) {
	cases := []struct {
		elapsed, duration, want float64
	}{
		{0, 1, 0},
		{-1, 1, 0},
		{0.5, 1, 0.5},
		{1, 1, 1},
		{3, 1, 1},
		{0.2, 0, 1},
	}
	for _, tc := range cases {
		if got := Ease(tc.elapsed, tc.duration); !approx(got, tc.want) {
			t.Fatalf("Ease(%v,%v)=%v want=%v", tc.elapsed, tc.duration, got, tc.want)
		}
	}
	prev := 0.0
	for i := 1; i <= 100; i++ {
		v := Ease(float64(i)/100, 1)
		if v < prev {
			t.Fatalf("ease not monotonic at %d: %v < %v", i, v, prev)
		}
		prev = v
	}
}

func TestRoundTo(t *testing.T) {
	if got := RoundTo(1.23456, 3); got != 1.235 {
		t.Fatalf("RoundTo=%v want 1.235", got)
	}
	if got := (Point{X: 2.005, Y: -1.5}).Round(0); got != (Point{X: 2, Y: -2}) {
		t.Fatalf("Round(0)=%v", got)
	}
}
