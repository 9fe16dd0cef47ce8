package geom

import "math"

// Polar is a position relative to a pivot, captured once when a rotation
// starts. Every intermediate and final position is derived from it so
// repeated ticks never accumulate drift.
type Polar struct {
	Angle  float64
	Radius float64
}

// ToPolar decomposes p relative to pivot.
func ToPolar(p, pivot Point) Polar {
	dx, dy := p.X-pivot.X, p.Y-pivot.Y
	return Polar{Angle: math.Atan2(dy, dx), Radius: math.Hypot(dx, dy)}
}

// At returns the position reached after turning delta radians from the
// captured angle.
func (pl Polar) At(pivot Point, delta float64) Point {
	a := pl.Angle + delta
	return Point{
		X: pivot.X + pl.Radius*math.Cos(a),
		Y: pivot.Y + pl.Radius*math.Sin(a),
	}
}

// RotateAbout rotates p by angle radians around pivot.
func RotateAbout(p, pivot Point, angle float64) Point {
	return ToPolar(p, pivot).At(pivot, angle)
}

// Ease maps elapsed time onto rotation progress in [0, 1] with a cosine
// ease-in-out. It returns exactly 1 once elapsed reaches duration.
func Ease(elapsed, duration float64) float64 {
	if duration <= 0 || elapsed >= duration {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	t := -math.Cos(math.Pi*elapsed/duration)/2 + 0.5
	return math.Min(t, 1)
}
