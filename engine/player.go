package engine

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned when a 1-based hand position does not exist.
var ErrIndexOutOfRange = errors.New("hand index out of range")

// Player is one seat in a game: the hand plus connection bookkeeping.
type Player struct {
	Name        string
	Hand        []Card // Order matters: clients address cards by position.
	Connected   bool
	Ready       bool // Only meaningful before the game starts.
	MissedTurns int  // Consecutive turns started while disconnected.
}

// NewPlayer returns a connected, not-ready player with an empty hand.
func NewPlayer(name string) *Player {
	return &Player{Name: name, Connected: true}
}

// Give appends c to the end of the hand.
func (p *Player) Give(c Card) { p.Hand = append(p.Hand, c) }

// HandLen returns the number of cards held.
func (p *Player) HandLen() int { return len(p.Hand) }

// CardAt returns the card at 1-based position pos without removing it.
func (p *Player) CardAt(pos int) (Card, error) {
	if pos < 1 || pos > len(p.Hand) {
		return 0, fmt.Errorf("position %d of %d: %w", pos, len(p.Hand), ErrIndexOutOfRange)
	}
	return p.Hand[pos-1], nil
}

// PlayAt removes and returns the card at 1-based position pos.
func (p *Player) PlayAt(pos int) (Card, error) {
	c, err := p.CardAt(pos)
	if err != nil {
		return 0, err
	}
	p.Hand = append(p.Hand[:pos-1], p.Hand[pos:]...)
	return c, nil
}

// TakeHand empties the hand and returns what it held.
func (p *Player) TakeHand() []Card {
	h := p.Hand
	p.Hand = nil
	return h
}
