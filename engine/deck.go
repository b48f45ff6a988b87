// Package engine holds the card model shared by every MAOnline game: immutable
// cards, stack-shaped decks and the per-seat player record.
//
// The package has no knowledge of turns, timers or networking; the game
// automaton in internal/game owns all of that.
package engine

import (
	crand "crypto/rand"
	"errors"
	"math/rand/v2"
)

const (
	// DeckSize is the number of cards in a standard deck (no jokers).
	DeckSize = 52
)

// ErrEmptyDeck is returned by Draw and Peek on an empty deck.
var ErrEmptyDeck = errors.New("deck is empty")

// Deck is an ordered stack of cards. The last element of cards is the top.
type Deck struct {
	cards []Card
}

// NewDeck returns a deck holding the given cards, first element at the bottom.
func NewDeck(cards ...Card) *Deck {
	d := &Deck{cards: make([]Card, 0, DeckSize)}
	d.cards = append(d.cards, cards...)
	return d
}

// NewStandardDeck builds the 52-card deck, unshuffled.
func NewStandardDeck() *Deck {
	d := &Deck{cards: make([]Card, 0, DeckSize)}
	for _, suit := range Suits {
		for rank := RankAce; rank <= RankKing; rank++ {
			d.PushBottom(NewCard(suit, rank))
		}
	}
	return d
}

// Len returns the number of cards in the deck.
func (d *Deck) Len() int { return len(d.cards) }

// Empty reports whether no cards remain.
func (d *Deck) Empty() bool { return len(d.cards) == 0 }

// PushTop places c on top of the deck.
func (d *Deck) PushTop(c Card) { d.cards = append(d.cards, c) }

// PushBottom places c underneath every other card.
func (d *Deck) PushBottom(c Card) {
	d.cards = append(d.cards, 0)
	copy(d.cards[1:], d.cards)
	d.cards[0] = c
}

// Draw removes and returns the top card.
func (d *Deck) Draw() (Card, error) {
	if len(d.cards) == 0 {
		return 0, ErrEmptyDeck
	}
	top := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return top, nil
}

// Peek returns the top card without removing it.
func (d *Deck) Peek() (Card, error) {
	if len(d.cards) == 0 {
		return 0, ErrEmptyDeck
	}
	return d.cards[len(d.cards)-1], nil
}

// Cards returns a copy of the deck contents, bottom first.
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// Shuffle applies a uniform Fisher-Yates permutation driven by rng.
func (d *Deck) Shuffle(rng *rand.Rand) {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// NewSecureRand returns a ChaCha8 generator seeded from crypto/rand.
// Shuffles driven by it cannot be predicted from earlier game output.
func NewSecureRand() *rand.Rand {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("engine: crypto/rand unavailable: " + err.Error())
	}
	return rand.New(rand.NewChaCha8(seed))
}
