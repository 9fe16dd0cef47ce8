package game

import "fmt"

// Color is the owner of a circle. Neutral doubles as "no winner".
type Color int8

const (
	Neutral Color = iota
	Red
	Blue
)

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Blue:
		return "blue"
	default:
		return "grey"
	}
}

// Opponent returns the other player. Neutral has no opponent.
func (c Color) Opponent() Color {
	switch c {
	case Red:
		return Blue
	case Blue:
		return Red
	default:
		return Neutral
	}
}

// IsPlayer reports whether c is Red or Blue.
func (c Color) IsPlayer() bool { return c == Red || c == Blue }

// ParseColor accepts "red", "blue", and "grey" (or "gray"/"neutral"/"").
func ParseColor(s string) (Color, error) {
	switch s {
	case "red":
		return Red, nil
	case "blue":
		return Blue, nil
	case "grey", "gray", "neutral", "":
		return Neutral, nil
	}
	return Neutral, fmt.Errorf("game: unknown color %q", s)
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Phase is the half-turn a player is in.
type Phase int8

const (
	Placement Phase = iota
	Rotation
)

func (p Phase) String() string {
	if p == Rotation {
		return "rotation"
	}
	return "placement"
}

func ParsePhase(s string) (Phase, error) {
	switch s {
	case "placement":
		return Placement, nil
	case "rotation":
		return Rotation, nil
	}
	return Placement, fmt.Errorf("game: unknown phase %q", s)
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
