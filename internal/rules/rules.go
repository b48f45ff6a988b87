// Package rules decides what a played card does to the turn order.
package rules

import "github.com/eliyamlevy/MAOnline/engine"

// Effect is the turn-order consequence of a successful play.
type Effect string

const (
	EffectNone    Effect = "none"
	EffectReverse Effect = "reverse"     // Flip the rotation direction.
	EffectSkip    Effect = "skip"        // The next advance moves two seats.
	EffectTyping  Effect = "typing_rule" // Open a typing challenge for the player.
)

// Valid reports whether e is one of the known effects.
func (e Effect) Valid() bool {
	switch e {
	case EffectNone, EffectReverse, EffectSkip, EffectTyping:
		return true
	}
	return false
}

// EffectResolver maps a just-played card to its effect.
// Implementations must be safe for concurrent use by independent games.
type EffectResolver interface {
	Resolve(c engine.Card) Effect
}

// Standard is the house rule set: A reverses, 8 skips, 7 starts the typing rule.
type Standard struct{}

// Resolve implements EffectResolver.
func (Standard) Resolve(c engine.Card) Effect {
	switch c.Rank() {
	case engine.RankAce:
		return EffectReverse
	case engine.RankEight:
		return EffectSkip
	case engine.RankSeven:
		return EffectTyping
	default:
		return EffectNone
	}
}
