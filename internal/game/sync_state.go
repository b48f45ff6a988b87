// internal/game/sync_state.go
package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlayerState is the public view of one seat.
type PlayerState struct {
	Name          string `json:"name"`
	HandSize      int    `json:"hand_size"`
	Connected     bool   `json:"is_connected"`
	Ready         bool   `json:"is_ready"`
	MissedTurns   int    `json:"disconnected_turns"`
	IsCurrentTurn bool   `json:"is_current_turn"`
}

// ChallengeState is the public view of an open typing challenge.
type ChallengeState struct {
	Player   string    `json:"player_name"`
	Deadline time.Time `json:"deadline"`
}

// GameState is a read-only snapshot safe to hand to any client. It never
// contains another player's cards.
type GameState struct {
	GameID          uuid.UUID       `json:"game_id"`
	Status          Status          `json:"game_status"`
	TopCard         *CardView       `json:"top_card"`
	DrawPileSize    int             `json:"draw_pile_size"`
	DiscardPileSize int             `json:"discard_pile_size"`
	Direction       Direction       `json:"turn_direction"`
	CurrentPlayer   string          `json:"current_player,omitempty"`
	Players         []PlayerState   `json:"players"`
	Winner          string          `json:"winner,omitempty"`
	Challenge       *ChallengeState `json:"typing_challenge,omitempty"`
	HouseRules      HouseRules      `json:"house_rules"`
	HasPassword     bool            `json:"has_password"`
}

// State returns a snapshot of the game for lobby and resynchronization.
func (g *Game) State() GameState {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := GameState{
		GameID:          g.ID,
		Status:          g.status,
		DrawPileSize:    g.drawPile.Len(),
		DiscardPileSize: g.discardPile.Len(),
		Direction:       g.direction,
		Winner:          g.winner,
		HouseRules:      g.HouseRules,
		HasPassword:     len(g.passwordHash) > 0,
		Players:         make([]PlayerState, 0, len(g.players)),
	}
	if top, err := g.discardPile.Peek(); err == nil {
		cv := ViewCard(top)
		st.TopCard = &cv
	}
	playing := g.status == StatusPlaying
	if playing {
		st.CurrentPlayer = g.players[g.current].Name
	}
	for i, p := range g.players {
		st.Players = append(st.Players, PlayerState{
			Name:          p.Name,
			HandSize:      p.HandLen(),
			Connected:     p.Connected,
			Ready:         p.Ready,
			MissedTurns:   p.MissedTurns,
			IsCurrentTurn: playing && i == g.current,
		})
	}
	if g.challenge != nil {
		st.Challenge = &ChallengeState{Player: g.challenge.player, Deadline: g.challenge.deadline}
	}
	return st
}

// Hand returns a copy of name's cards in hand order.
func (g *Game) Hand(name string) ([]CardView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, p := g.findPlayer(name)
	if p == nil {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownPlayer)
	}
	hand := make([]CardView, 0, len(p.Hand))
	for _, c := range p.Hand {
		hand = append(hand, ViewCard(c))
	}
	return hand, nil
}

// CurrentPlayer returns whose turn it is, or "" outside of play.
func (g *Game) CurrentPlayer() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusPlaying {
		return ""
	}
	return g.players[g.current].Name
}
