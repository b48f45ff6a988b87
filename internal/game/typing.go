// internal/game/typing.go
package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/eliyamlevy/MAOnline/engine"
	"github.com/sirupsen/logrus"
)

// TypingOutcome reports how a typing challenge resolved.
type TypingOutcome struct {
	Success   bool
	Reason    string        // Empty on success.
	TimeTaken time.Duration // Zero when the deadline timer resolved it.
	Penalty   *engine.Card  // Card drawn on failure, nil if none was left.
}

// RespondToTyping resolves the open challenge with the challenged player's
// answer. It succeeds when the trimmed, case-folded text equals the phrase and
// arrives strictly before the deadline.
func (g *Game) RespondToTyping(name, text string) (TypingOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkPlaying(); err != nil {
		return TypingOutcome{}, err
	}
	_, p := g.findPlayer(name)
	if p == nil {
		return TypingOutcome{}, fmt.Errorf("%q: %w", name, ErrUnknownPlayer)
	}
	if g.challenge == nil {
		return TypingOutcome{}, ErrNoTypingChallenge
	}
	if g.challenge.player != name {
		return TypingOutcome{}, fmt.Errorf("challenge is for %s: %w", g.challenge.player, ErrNotChallenged)
	}

	now := g.clock.Now()
	taken := now.Sub(g.challenge.startedAt)
	correct := normalizePhrase(text) == g.challenge.phrase
	if correct && now.Before(g.challenge.deadline) {
		g.clearChallenge()
		success := true
		g.log.WithFields(logrus.Fields{"player": name, "taken": taken}).Info("Typing challenge passed.")
		g.emit(GameEvent{Type: EventTypingResult, Player: name, Success: &success, TimeTaken: taken})
		g.advanceTurn()
		return TypingOutcome{Success: true, TimeTaken: taken}, nil
	}

	reason := ReasonTimeout
	if !correct {
		reason = ReasonIncorrectPhrase
	}
	out := g.failChallenge(p, reason)
	out.TimeTaken = taken
	return out, nil
}

// FireTypingTimeout is the challenge deadline callback. It fails the open
// challenge if token still identifies it.
func (g *Game) FireTypingTimeout(token uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusPlaying || g.challenge == nil || g.challenge.token != token || token != g.seq {
		return
	}
	_, p := g.findPlayer(g.challenge.player)
	if p == nil {
		g.clearChallenge()
		return
	}
	g.failChallenge(p, ReasonTimeout)
}

// openChallenge binds a typing challenge to p. The turn timer is superseded
// and the turn stays with p until the challenge resolves.
// Assumes lock is held by caller.
func (g *Game) openChallenge(p *engine.Player) {
	g.stopTurnTimer()
	g.seq++
	token := g.seq
	now := g.clock.Now()
	limit := g.HouseRules.typingLimit()
	g.challenge = &typingChallenge{
		player:    p.Name,
		phrase:    normalizePhrase(g.HouseRules.TypingPhrase),
		startedAt: now,
		deadline:  now.Add(limit),
		token:     token,
	}
	g.challengeTimer = g.clock.AfterFunc(limit, func() { g.FireTypingTimeout(token) })

	g.log.WithField("player", p.Name).Info("Typing challenge opened.")
	g.emit(GameEvent{
		Type:      EventTypingChallenge,
		Player:    p.Name,
		Phrase:    g.HouseRules.TypingPhrase,
		TimeLimit: g.HouseRules.TypingTimeLimitSec,
	})
}

// failChallenge clears the challenge, reports the failure, draws one penalty
// card for p and advances the turn. Any reshuffle the penalty needs is
// reported after the result.
// Assumes lock is held by caller.
func (g *Game) failChallenge(p *engine.Player, reason string) TypingOutcome {
	g.clearChallenge()
	out := TypingOutcome{Reason: reason}

	failed := false
	g.log.WithFields(logrus.Fields{"player": p.Name, "reason": reason}).Info("Typing challenge failed.")
	g.emit(GameEvent{Type: EventTypingResult, Player: p.Name, Success: &failed, Reason: reason})
	if c, err := g.drawInto(p, ReasonTypingPenalty); err == nil {
		out.Penalty = &c
	} else {
		g.log.WithField("player", p.Name).Warn("No penalty card left for failed typing challenge.")
	}
	g.advanceTurn()
	return out
}

// Assumes lock is held by caller.
func (g *Game) clearChallenge() {
	if g.challengeTimer != nil {
		g.challengeTimer.Stop()
		g.challengeTimer = nil
	}
	g.challenge = nil
}

func normalizePhrase(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
