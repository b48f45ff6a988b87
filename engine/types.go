package engine

import "fmt"

// Suit is one of the four French suits.
type Suit uint8

// Suit constants, packed into the upper 4 bits of Card.
const (
	SuitHearts   Suit = 0
	SuitDiamonds Suit = 1
	SuitClubs    Suit = 2
	SuitSpades   Suit = 3
)

// Suits lists the suits in deck-building order.
var Suits = [4]Suit{SuitClubs, SuitSpades, SuitDiamonds, SuitHearts}

var suitNames = [4]string{"Hearts", "Diamonds", "Clubs", "Spades"}

func (s Suit) String() string {
	if int(s) < len(suitNames) {
		return suitNames[s]
	}
	return fmt.Sprintf("Suit(%d)", uint8(s))
}

// ParseSuit converts a suit name such as "Hearts" back into a Suit.
func ParseSuit(name string) (Suit, error) {
	for i, n := range suitNames {
		if n == name {
			return Suit(i), nil
		}
	}
	return 0, fmt.Errorf("unknown suit %q", name)
}

// Rank is the face value of a card.
type Rank uint8

// Rank constants, packed into the lower 4 bits of Card.
const (
	RankAce   Rank = 0
	RankTwo   Rank = 1
	RankThree Rank = 2
	RankFour  Rank = 3
	RankFive  Rank = 4
	RankSix   Rank = 5
	RankSeven Rank = 6
	RankEight Rank = 7
	RankNine  Rank = 8
	RankTen   Rank = 9
	RankJack  Rank = 10
	RankQueen Rank = 11
	RankKing  Rank = 12
)

var rankNames = [13]string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

// String returns the value label used on the wire: "A", "2".."10", "J", "Q", "K".
func (r Rank) String() string {
	if int(r) < len(rankNames) {
		return rankNames[r]
	}
	return fmt.Sprintf("Rank(%d)", uint8(r))
}

// ParseRank converts a value label back into a Rank.
func ParseRank(label string) (Rank, error) {
	for i, n := range rankNames {
		if n == label {
			return Rank(i), nil
		}
	}
	return 0, fmt.Errorf("unknown card value %q", label)
}

// Card is a packed uint8: upper 4 bits = suit, lower 4 bits = rank.
// Cards are plain values; two cards with the same suit and rank are equal.
type Card uint8

// NewCard constructs a Card from suit and rank.
func NewCard(suit Suit, rank Rank) Card {
	return Card((uint8(suit) << 4) | (uint8(rank) & 0x0F))
}

// Suit returns the suit bits (upper 4).
func (c Card) Suit() Suit { return Suit(uint8(c) >> 4) }

// Rank returns the rank bits (lower 4).
func (c Card) Rank() Rank { return Rank(uint8(c) & 0x0F) }

// Matches reports whether c may be played on top of top: same suit or same value.
func (c Card) Matches(top Card) bool {
	return c.Suit() == top.Suit() || c.Rank() == top.Rank()
}

func (c Card) String() string {
	return c.Rank().String() + " of " + c.Suit().String()
}
