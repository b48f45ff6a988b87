package game

import (
	"sync"
	"time"

	"github.com/eliyamlevy/MAOnline/engine"
	"github.com/eliyamlevy/MAOnline/internal/rules"
)

// GameEventType names an outbox event. The values double as the message types
// sent to clients.
type GameEventType string

// Event kinds appended to the outbox.
const (
	EventPlayerJoined     GameEventType = "player_joined"
	EventPlayerLeft       GameEventType = "player_left"
	EventPlayerReady      GameEventType = "player_ready"
	EventPlayerConnection GameEventType = "player_connection"
	EventGameStarted      GameEventType = "game_started"
	EventTurnStarted      GameEventType = "player_turn"           // Public; the current player also gets their hand.
	EventCardPlayed       GameEventType = "card_played"           // Public.
	EventCardDrawn        GameEventType = "card_drawn"            // Card is private to the drawer.
	EventDeckReshuffled   GameEventType = "deck_reshuffled"       // Public.
	EventTurnTimedOut     GameEventType = "turn_timeout"          // Public.
	EventTypingChallenge  GameEventType = "typing_rule_challenge" // Private to the challenged player.
	EventTypingResult     GameEventType = "typing_rule_result"
	EventPlayerForfeited  GameEventType = "player_forfeited" // Public.
	EventGameWon          GameEventType = "game_won"         // Public.
)

// Reasons carried by events.
const (
	ReasonDraw               = "draw"
	ReasonTimeout            = "timeout"
	ReasonPenalty            = "penalty"
	ReasonTypingPenalty      = "typing_penalty"
	ReasonIncorrectPhrase    = "incorrect_phrase"
	ReasonDisconnected       = "disconnected_for_two_turns"
	ReasonVoluntary          = "voluntary"
	ReasonEmptyHand          = "empty_hand"
	ReasonLastPlayerStanding = "last_player_standing"
	ReasonNoPlayersRemaining = "no_players_remaining"
)

// CardView is the wire form of a card.
type CardView struct {
	Suit  string `json:"suit"`
	Value string `json:"value"`
}

// ViewCard converts an engine card to its wire form.
func ViewCard(c engine.Card) CardView {
	return CardView{Suit: c.Suit().String(), Value: c.Rank().String()}
}

// GameEvent is one entry of a game's outbox.
type GameEvent struct {
	Seq    uint64        `json:"seq"` // Position in this game's event stream, starting at 1.
	Type   GameEventType `json:"type"`
	Player string        `json:"player_name,omitempty"` // Acting or affected player.
	Card   *CardView     `json:"card,omitempty"`
	Effect rules.Effect  `json:"effect,omitempty"`
	Reason string        `json:"reason,omitempty"`

	Success    *bool         `json:"success,omitempty"`    // typing_rule_result only.
	TimeTaken  time.Duration `json:"time_taken,omitempty"` // typing_rule_result only.
	Phrase     string        `json:"phrase,omitempty"`     // typing_rule_challenge only.
	TimeLimit  int           `json:"time_limit,omitempty"` // Seconds; player_turn and typing_rule_challenge.
	Connected  *bool         `json:"connected,omitempty"`  // player_connection only.
	AllReady   bool          `json:"all_ready,omitempty"`  // player_ready only.
	HandSize   int           `json:"hand_size,omitempty"`
	DrawPile   int           `json:"draw_pile_size,omitempty"`
	Direction  Direction     `json:"direction,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Outbox is an append-only queue of events drained by the delivery layer.
// Append and Drain may be called from different goroutines.
type Outbox struct {
	mu     sync.Mutex
	events []GameEvent
	next   uint64
}

// Append stamps ev with the next sequence number and queues it.
func (o *Outbox) Append(ev GameEvent) GameEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	ev.Seq = o.next
	o.events = append(o.events, ev)
	return ev
}

// Drain returns every queued event and leaves the queue empty, in one step.
func (o *Outbox) Drain() []GameEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.events
	o.events = nil
	return out
}

// Len returns the number of undrained events.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}
