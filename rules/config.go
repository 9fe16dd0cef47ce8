package rules

import (
	"log/slog"
	"time"

	"github.com/brensch/ringworld/game"
)

const (
	MinConnectionMultiplier     = 2.0
	MaxConnectionMultiplier     = 6.0
	DefaultConnectionMultiplier = 3.2
)

// RotationScope selects which mediums a large-circle rotation carries.
type RotationScope int

const (
	// ScopeContained carries only mediums fully inside the large circle.
	// A 45 degree turn then maps the board's circle positions onto
	// themselves.
	ScopeContained RotationScope = iota
	// ScopeOverlap carries every medium whose center lies within the large
	// circle's radius, including ones shared with a neighbour. On the full
	// board this moves shared mediums off the fixed positions.
	ScopeOverlap
)

func (s RotationScope) String() string {
	if s == ScopeOverlap {
		return "overlap"
	}
	return "contained"
}

// SeamRule selects how edges that cross a medium seam are excluded from the
// connection graph.
type SeamRule int

const (
	// SeamSharedParent drops edges whose endpoints share no medium circle.
	SeamSharedParent SeamRule = iota
	// SeamClassic drops the fixed id pairs of the default board.
	SeamClassic
	// SeamNone keeps every edge in the distance band.
	SeamNone
)

// Config is everything the engine needs. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	Board game.BoardConfig

	// ConnectionMultiplier scales the small radius into the expected edge
	// length. Clamped to [MinConnectionMultiplier, MaxConnectionMultiplier].
	ConnectionMultiplier float64
	Tolerance            float64
	Seams                SeamRule

	RotationDuration time.Duration
	// ConnectionRefresh is the minimum gap between idle graph rebuilds.
	ConnectionRefresh time.Duration

	// Scope is used by ApplyRemoteMove and as the default for callers.
	Scope RotationScope

	Logger *slog.Logger
	// Now is the clock used to stamp rotation starts. Defaults to time.Now.
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Board:                game.DefaultBoardConfig(),
		ConnectionMultiplier: DefaultConnectionMultiplier,
		Tolerance:            0.1,
		Seams:                SeamSharedParent,
		RotationDuration:     time.Second,
		ConnectionRefresh:    time.Second,
		Scope:                ScopeContained,
	}
}

// ClampMultiplier limits m to the supported multiplier range.
func ClampMultiplier(m float64) float64 {
	if m < MinConnectionMultiplier {
		return MinConnectionMultiplier
	}
	if m > MaxConnectionMultiplier {
		return MaxConnectionMultiplier
	}
	return m
}

func (c Config) withDefaults() Config {
	if c.ConnectionMultiplier == 0 {
		c.ConnectionMultiplier = DefaultConnectionMultiplier
	}
	c.ConnectionMultiplier = ClampMultiplier(c.ConnectionMultiplier)
	if c.Tolerance == 0 {
		c.Tolerance = 0.1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
