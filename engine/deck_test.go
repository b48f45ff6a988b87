package engine

import (
	"errors"
	"math/rand/v2"
	"testing"
)

// TestNewStandardDeck verifies 52 unique cards.
func TestNewStandardDeck(t *testing.T) {
	d := NewStandardDeck()
	if d.Len() != DeckSize {
		t.Fatalf("Len() = %d, want %d", d.Len(), DeckSize)
	}
	seen := make(map[Card]bool)
	for _, c := range d.Cards() {
		if seen[c] {
			t.Errorf("duplicate card %v", c)
		}
		seen[c] = true
	}
	if len(seen) != DeckSize {
		t.Errorf("got %d unique cards, want %d", len(seen), DeckSize)
	}
}

// TestDeckStackOrder verifies top/bottom insertion and LIFO draw.
func TestDeckStackOrder(t *testing.T) {
	a := NewCard(SuitHearts, RankAce)
	b := NewCard(SuitClubs, RankTwo)
	c := NewCard(SuitSpades, RankThree)

	d := NewDeck()
	d.PushTop(a)
	d.PushTop(b)
	d.PushBottom(c)

	if top, err := d.Peek(); err != nil || top != b {
		t.Fatalf("Peek() = %v, %v; want %v", top, err, b)
	}
	want := []Card{b, a, c}
	for i, w := range want {
		got, err := d.Draw()
		if err != nil {
			t.Fatalf("Draw() #%d: %v", i, err)
		}
		if got != w {
			t.Errorf("Draw() #%d = %v, want %v", i, got, w)
		}
	}
	if _, err := d.Draw(); !errors.Is(err, ErrEmptyDeck) {
		t.Errorf("Draw() on empty deck err = %v, want ErrEmptyDeck", err)
	}
	if _, err := d.Peek(); !errors.Is(err, ErrEmptyDeck) {
		t.Errorf("Peek() on empty deck err = %v, want ErrEmptyDeck", err)
	}
}

// TestShufflePermutes verifies Shuffle keeps the same multiset of cards.
func TestShufflePermutes(t *testing.T) {
	d := NewStandardDeck()
	before := d.Cards()
	d.Shuffle(rand.New(rand.NewPCG(1, 2)))
	after := d.Cards()

	if len(after) != len(before) {
		t.Fatalf("Len changed: %d -> %d", len(before), len(after))
	}
	counts := make(map[Card]int)
	for _, c := range before {
		counts[c]++
	}
	for _, c := range after {
		counts[c]--
	}
	for c, n := range counts {
		if n != 0 {
			t.Errorf("card %v count delta %d", c, n)
		}
	}
	moved := 0
	for i := range before {
		if before[i] != after[i] {
			moved++
		}
	}
	if moved == 0 {
		t.Error("Shuffle left deck order unchanged")
	}
}

// TestNewSecureRand verifies the secure source produces values in range.
func TestNewSecureRand(t *testing.T) {
	r := NewSecureRand()
	for i := 0; i < 100; i++ {
		if n := r.IntN(52); n < 0 || n >= 52 {
			t.Fatalf("IntN(52) = %d", n)
		}
	}
}
