// Package geom holds the pure geometry used by the board: polygon vertex
// generation, distance and containment predicates, and the polar rotation
// transform that moves circles around a pivot.
//
// Nothing in this package keeps state.
package geom

import "math"

// RotationStep is the only rotation increment in the game (45 degrees).
const RotationStep = math.Pi / 4

// Point is a position on the board plane.
type Point struct {
	X float64
	Y float64
}

func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

func (p Point) Scale(f float64) Point { return Point{X: p.X * f, Y: p.Y * f} }

// Round rounds both coordinates to the given number of decimal places.
func (p Point) Round(places int) Point {
	return Point{X: RoundTo(p.X, places), Y: RoundTo(p.Y, places)}
}

// Near reports whether p and q differ by at most eps on each axis.
func (p Point) Near(q Point, eps float64) bool {
	return math.Abs(p.X-q.X) <= eps && math.Abs(p.Y-q.Y) <= eps
}

// RoundTo rounds v to places decimal places, half away from zero.
func RoundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// RegularPolygon returns n vertices evenly spaced by 2π/n on a circle of the
// given radius, the first vertex at angle rotation.
func RegularPolygon(center Point, radius float64, n int, rotation float64) []Point {
	if n <= 0 {
		return nil
	}
	out := make([]Point, n)
	step := 2 * math.Pi / float64(n)
	for i := 0; i < n; i++ {
		a := rotation + step*float64(i)
		out[i] = Point{
			X: center.X + radius*math.Cos(a),
			Y: center.Y + radius*math.Sin(a),
		}
	}
	return out
}

func Distance(p, q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// PointInCircle is inclusive: a point on the boundary is inside.
func PointInCircle(p, center Point, r float64) bool {
	return Distance(p, center) <= r
}

// FullyContained reports whether the inner circle lies entirely within the
// outer circle.
func FullyContained(innerCenter Point, innerR float64, outerCenter Point, outerR float64) bool {
	return Distance(innerCenter, outerCenter)+innerR <= outerR
}

// CirclesOverlap reports whether two circles of equal radius r intersect.
func CirclesOverlap(a, b Point, r float64) bool {
	return Distance(a, b) < 2*r
}
