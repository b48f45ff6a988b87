// internal/game/house_rules.go
package game

import "time"

// HouseRules holds the tunable parameters of a game.
type HouseRules struct {
	TurnTimeoutSec          int    `json:"turnTimeoutSec" mapstructure:"turn_timeout"`     // Negative disables the turn timer.
	TypingPhrase            string `json:"typingPhrase" mapstructure:"typing_phrase"`      // Compared case-insensitively.
	TypingTimeLimitSec      int    `json:"typingTimeLimitSec" mapstructure:"typing_limit"` // Deadline for a typing challenge.
	HandSize                int    `json:"handSize" mapstructure:"hand_size"`
	ForfeitAfterMissedTurns int    `json:"forfeitAfterMissedTurns" mapstructure:"forfeit_after"`
	MaxPlayers              int    `json:"maxPlayers" mapstructure:"max_players"`
}

// Baseline values.
const (
	DefaultTurnTimeoutSec     = 20
	DefaultTypingPhrase       = "have a nice day"
	DefaultTypingTimeLimitSec = 7
	DefaultHandSize           = 7
	DefaultForfeitAfter       = 2
	DefaultMaxPlayers         = 7
)

// DefaultHouseRules returns the standard rules.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		TurnTimeoutSec:          DefaultTurnTimeoutSec,
		TypingPhrase:            DefaultTypingPhrase,
		TypingTimeLimitSec:      DefaultTypingTimeLimitSec,
		HandSize:                DefaultHandSize,
		ForfeitAfterMissedTurns: DefaultForfeitAfter,
		MaxPlayers:              DefaultMaxPlayers,
	}
}

// withDefaults fills unset fields. A negative TurnTimeoutSec means no timer.
func (hr HouseRules) withDefaults() HouseRules {
	d := DefaultHouseRules()
	if hr.TurnTimeoutSec == 0 {
		hr.TurnTimeoutSec = d.TurnTimeoutSec
	}
	if hr.TypingPhrase == "" {
		hr.TypingPhrase = d.TypingPhrase
	}
	if hr.TypingTimeLimitSec <= 0 {
		hr.TypingTimeLimitSec = d.TypingTimeLimitSec
	}
	if hr.HandSize <= 0 || hr.HandSize > 51 {
		hr.HandSize = d.HandSize
	}
	if hr.ForfeitAfterMissedTurns <= 0 {
		hr.ForfeitAfterMissedTurns = d.ForfeitAfterMissedTurns
	}
	// Everyone's hand plus the first discard must come out of one deck.
	if hr.MaxPlayers <= 0 || hr.MaxPlayers*hr.HandSize >= 52 {
		hr.MaxPlayers = min(d.MaxPlayers, 51/hr.HandSize)
	}
	return hr
}

func (hr HouseRules) turnDuration() time.Duration {
	if hr.TurnTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(hr.TurnTimeoutSec) * time.Second
}

func (hr HouseRules) typingLimit() time.Duration {
	return time.Duration(hr.TypingTimeLimitSec) * time.Second
}
