// internal/game/turns.go
package game

import (
	"fmt"
	"slices"

	"github.com/eliyamlevy/MAOnline/engine"
	"github.com/eliyamlevy/MAOnline/internal/rules"
	"github.com/sirupsen/logrus"
)

// PlayCard plays the card at 1-based position pos of name's hand onto the
// discard pile and applies its effect. A rejected move changes nothing.
func (g *Game) PlayCard(name string, pos int) (rules.Effect, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.checkTurn(name)
	if err != nil {
		return rules.EffectNone, err
	}
	c, err := p.CardAt(pos)
	if err != nil {
		return rules.EffectNone, fmt.Errorf("%v: %w", err, ErrInvalidCardIndex)
	}
	top, _ := g.discardPile.Peek()
	if !c.Matches(top) {
		return rules.EffectNone, fmt.Errorf("%s on %s: %w", c, top, ErrInvalidMove)
	}

	if _, err := p.PlayAt(pos); err != nil {
		return rules.EffectNone, fmt.Errorf("%v: %w", err, ErrInvalidCardIndex)
	}
	g.discardPile.PushTop(c)
	effect := g.resolver.Resolve(c)

	cv := ViewCard(c)
	g.log.WithFields(logrus.Fields{"player": name, "card": c.String(), "effect": effect}).Debug("Card played.")
	g.emit(GameEvent{Type: EventCardPlayed, Player: name, Card: &cv, Effect: effect, HandSize: p.HandLen()})

	if p.HandLen() == 0 {
		g.finish(name, ReasonEmptyHand)
		return effect, nil
	}

	switch effect {
	case rules.EffectReverse:
		if g.direction == Forward {
			g.direction = Reverse
		} else {
			g.direction = Forward
		}
		g.advanceTurn()
	case rules.EffectSkip:
		g.pendingSkip = true
		g.advanceTurn()
	case rules.EffectTyping:
		g.openChallenge(p)
	default:
		g.advanceTurn()
	}
	return effect, nil
}

// DrawCard draws one card for name and ends their turn. ErrDeckExhausted is
// reported when no card is left anywhere, and the turn still advances.
func (g *Game) DrawCard(name string) (engine.Card, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.checkTurn(name)
	if err != nil {
		return 0, err
	}
	c, err := g.drawInto(p, ReasonDraw)
	g.advanceTurn()
	return c, err
}

// PenalizeInvalidMove draws a penalty card for the current player and ends
// their turn. The delivery layer applies it after ErrInvalidMove when the
// server is configured to punish illegal plays.
func (g *Game) PenalizeInvalidMove(name string) (engine.Card, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.checkTurn(name)
	if err != nil {
		return 0, err
	}
	c, err := g.drawInto(p, ReasonPenalty)
	g.advanceTurn()
	return c, err
}

// FireTurnTimeout is the turn timer callback. It draws for the current player
// and advances, unless token no longer matches the sequence token.
func (g *Game) FireTurnTimeout(token uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if token != g.seq || g.status != StatusPlaying || g.challenge != nil {
		return
	}
	p := g.players[g.current]
	g.log.WithField("player", p.Name).Info("Turn timed out.")
	g.emit(GameEvent{Type: EventTurnTimedOut, Player: p.Name})
	if _, err := g.drawInto(p, ReasonTimeout); err != nil {
		g.log.WithError(err).Warn("Timeout draw failed.")
	}
	g.advanceTurn()
}

// SetConnected records a connectivity change reported by the delivery layer.
// Reconnecting clears the missed-turn count; it does not resume anything else.
func (g *Game) SetConnected(name string, connected bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status == StatusFinished {
		return ErrGameFinished
	}
	_, p := g.findPlayer(name)
	if p == nil {
		return fmt.Errorf("%q: %w", name, ErrUnknownPlayer)
	}
	if p.Connected == connected {
		return nil
	}
	p.Connected = connected
	if connected {
		p.MissedTurns = 0
	}
	g.log.WithFields(logrus.Fields{"player": name, "connected": connected}).Info("Connection changed.")
	g.emit(GameEvent{Type: EventPlayerConnection, Player: name, Connected: &connected})
	return nil
}

// Forfeit removes name from a game in progress. Their hand goes to the
// bottom of the draw pile.
func (g *Game) Forfeit(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkPlaying(); err != nil {
		return err
	}
	i, p := g.findPlayer(name)
	if p == nil {
		return fmt.Errorf("%q: %w", name, ErrUnknownPlayer)
	}
	wasCurrent := i == g.current
	g.forfeitAt(i, ReasonVoluntary)
	if wasCurrent && g.status == StatusPlaying {
		g.startTurn()
	}
	return nil
}

// Assumes lock is held by caller.
func (g *Game) checkPlaying() error {
	switch g.status {
	case StatusWaiting:
		return ErrGameNotStarted
	case StatusFinished:
		return ErrGameFinished
	}
	return nil
}

// checkTurn validates that name may act now and returns their record.
// Assumes lock is held by caller.
func (g *Game) checkTurn(name string) (*engine.Player, error) {
	if err := g.checkPlaying(); err != nil {
		return nil, err
	}
	if g.challenge != nil {
		return nil, ErrTypingChallengeActive
	}
	_, p := g.findPlayer(name)
	if p == nil {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownPlayer)
	}
	if g.players[g.current] != p {
		return nil, fmt.Errorf("current player is %s: %w", g.players[g.current].Name, ErrNotYourTurn)
	}
	return p, nil
}

// drawInto moves the top of the draw pile into p's hand, reshuffling the
// discard pile underneath the top card first if the draw pile is empty.
// It never advances the turn.
// Assumes lock is held by caller.
func (g *Game) drawInto(p *engine.Player, reason string) (engine.Card, error) {
	if g.drawPile.Empty() {
		g.reshuffleDiscard()
	}
	c, err := g.drawPile.Draw()
	if err != nil {
		g.log.WithField("player", p.Name).Warn("Draw pile and discard pile exhausted.")
		return 0, fmt.Errorf("%s drawing: %w", p.Name, ErrDeckExhausted)
	}
	p.Give(c)
	cv := ViewCard(c)
	g.emit(GameEvent{Type: EventCardDrawn, Player: p.Name, Card: &cv, Reason: reason, HandSize: p.HandLen(), DrawPile: g.drawPile.Len()})
	return c, nil
}

// reshuffleDiscard turns every discard except the top into a new draw pile.
// Assumes lock is held by caller.
func (g *Game) reshuffleDiscard() {
	if g.discardPile.Len() < 2 {
		return
	}
	top, _ := g.discardPile.Draw()
	g.drawPile = engine.NewDeck(g.discardPile.Cards()...)
	g.drawPile.Shuffle(g.rng)
	g.discardPile = engine.NewDeck(top)
	g.log.WithField("cards", g.drawPile.Len()).Info("Discard pile reshuffled into draw pile.")
	g.emit(GameEvent{Type: EventDeckReshuffled, DrawPile: g.drawPile.Len()})
}

// advanceTurn moves to the next player in the current direction, two steps if
// a skip is pending, and starts their turn.
// Assumes lock is held by caller.
func (g *Game) advanceTurn() {
	g.stopTurnTimer()
	g.seq++

	n := len(g.players)
	step := 1
	if g.direction == Reverse {
		step = -1
	}
	if g.pendingSkip {
		step *= 2
		g.pendingSkip = false
	}
	g.current = ((g.current+step)%n + n) % n
	g.startTurn()
}

// startTurn begins the current player's turn. A disconnected player who has
// now missed too many turns is forfeited and the next remaining player is
// tried instead.
// Assumes lock is held by caller.
func (g *Game) startTurn() {
	for g.status == StatusPlaying {
		p := g.players[g.current]
		if !p.Connected {
			p.MissedTurns++
			g.log.WithFields(logrus.Fields{"player": p.Name, "missed": p.MissedTurns}).Info("Turn started for disconnected player.")
			if p.MissedTurns >= g.HouseRules.ForfeitAfterMissedTurns {
				g.forfeitAt(g.current, ReasonDisconnected)
				continue
			}
		}
		g.armTurnTimer()
		g.emit(GameEvent{
			Type:      EventTurnStarted,
			Player:    p.Name,
			HandSize:  p.HandLen(),
			DrawPile:  g.drawPile.Len(),
			Direction: g.direction,
			TimeLimit: max(g.HouseRules.TurnTimeoutSec, 0),
		})
		return
	}
}

// forfeitAt removes the player at rotation index i, returning their hand to
// the bottom of the draw pile. If they were current, current becomes the
// next player in the present direction; the caller starts that turn.
// Assumes lock is held by caller.
func (g *Game) forfeitAt(i int, reason string) {
	p := g.players[i]
	for _, c := range p.TakeHand() {
		g.drawPile.PushBottom(c)
	}
	if g.challenge != nil && g.challenge.player == p.Name {
		g.clearChallenge()
	}

	wasCurrent := i == g.current
	g.players = slices.Delete(g.players, i, i+1)
	n := len(g.players)
	switch {
	case n == 0:
		g.current = 0
	case i < g.current:
		g.current--
	case wasCurrent && g.direction == Forward:
		g.current = i % n
	case wasCurrent:
		g.current = (i - 1 + n) % n
	}

	g.log.WithFields(logrus.Fields{"player": p.Name, "reason": reason}).Info("Player forfeited.")
	g.emit(GameEvent{Type: EventPlayerForfeited, Player: p.Name, Reason: reason, DrawPile: g.drawPile.Len()})

	switch n {
	case 0:
		g.finish("", ReasonNoPlayersRemaining)
	case 1:
		g.finish(g.players[0].Name, ReasonLastPlayerStanding)
	}
}

// finish ends the game. An empty winner means nobody is left to win.
// Assumes lock is held by caller.
func (g *Game) finish(winner, reason string) {
	g.status = StatusFinished
	g.winner = winner
	g.pendingSkip = false
	g.clearChallenge()
	g.stopTurnTimer()
	g.seq++

	g.log.WithFields(logrus.Fields{"winner": winner, "reason": reason}).Info("Game finished.")
	g.emit(GameEvent{Type: EventGameWon, Player: winner, Reason: reason})
}

// armTurnTimer bumps the sequence token and schedules a timeout bound to it.
// Assumes lock is held by caller.
func (g *Game) armTurnTimer() {
	g.stopTurnTimer()
	g.seq++
	d := g.HouseRules.turnDuration()
	if d <= 0 {
		return
	}
	token := g.seq
	g.turnTimer = g.clock.AfterFunc(d, func() { g.FireTurnTimeout(token) })
}

// stopTurnTimer is best effort; a callback already in flight is caught by
// the token check.
// Assumes lock is held by caller.
func (g *Game) stopTurnTimer() {
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}
}
