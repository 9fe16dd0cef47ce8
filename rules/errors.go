package rules

import "errors"

// Move rejections. A rejected move never mutates the engine.
var (
	ErrGameOver      = errors.New("rules: game is over")
	ErrAnimating     = errors.New("rules: a rotation is in progress")
	ErrWrongPhase    = errors.New("rules: move not allowed in this phase")
	ErrNotYourTurn   = errors.New("rules: not this color's turn")
	ErrIneligible    = errors.New("rules: target is not eligible")
	ErrUnknownTarget = errors.New("rules: no such target")
)

// ErrBadSnapshot wraps every Restore validation failure.
var ErrBadSnapshot = errors.New("rules: invalid snapshot")
