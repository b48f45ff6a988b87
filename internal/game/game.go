// internal/game/game.go
package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/eliyamlevy/MAOnline/engine"
	"github.com/eliyamlevy/MAOnline/internal/cache"
	"github.com/eliyamlevy/MAOnline/internal/rules"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Status is the lifecycle stage of a game. It only moves forward.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Direction is the order in which turns rotate.
type Direction string

const (
	Forward Direction = "forward"
	Reverse Direction = "reverse"
)

// ActionPublisher receives the audit record of every event a game emits.
// *cache.Historian satisfies it.
type ActionPublisher interface {
	PublishGameAction(ctx context.Context, rec cache.GameActionRecord) error
}

// typingChallenge is the open 7 challenge, if any.
type typingChallenge struct {
	player    string
	phrase    string
	startedAt time.Time
	deadline  time.Time
	token     uint64
}

// Game is one authoritative game instance. Every exported method takes the
// game's lock, so calls for the same game are serialized while independent
// games run in parallel.
type Game struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	HouseRules HouseRules

	mu          sync.Mutex
	status      Status
	players     []*engine.Player // Rotation order.
	drawPile    *engine.Deck
	discardPile *engine.Deck // Top is the card plays must match.
	current     int
	direction   Direction
	pendingSkip bool
	challenge   *typingChallenge
	winner      string

	// seq is the sequence token. Every armed timer captures it and acts only
	// if it is unchanged when the timer fires.
	seq            uint64
	turnTimer      Timer
	challengeTimer Timer

	passwordHash []byte
	outbox       Outbox
	actionIndex  int

	clock     Clock
	rng       *rand.Rand
	resolver  rules.EffectResolver
	publisher ActionPublisher
	log       *logrus.Entry
}

// Option customizes a Game at construction.
type Option func(*Game)

// WithHouseRules replaces the default rules. Zero fields fall back to defaults.
func WithHouseRules(hr HouseRules) Option {
	return func(g *Game) { g.HouseRules = hr.withDefaults() }
}

// WithClock injects the time source used for timers and deadlines.
func WithClock(c Clock) Option { return func(g *Game) { g.clock = c } }

// WithRand injects the shuffle source.
func WithRand(r *rand.Rand) Option { return func(g *Game) { g.rng = r } }

// WithEffectResolver injects the strategy mapping played cards to effects.
func WithEffectResolver(r rules.EffectResolver) Option { return func(g *Game) { g.resolver = r } }

// WithPublisher sends an audit record of every event to p.
func WithPublisher(p ActionPublisher) Option { return func(g *Game) { g.publisher = p } }

// WithLogger sets the parent logger; the game adds its own id field.
func WithLogger(l *logrus.Logger) Option {
	return func(g *Game) { g.log = l.WithField("game", g.ID.String()) }
}

// WithPasswordHash requires joining players to present the password matching hash.
func WithPasswordHash(hash []byte) Option { return func(g *Game) { g.passwordHash = hash } }

// NewGame creates a game in the Waiting state with an empty rotation.
func NewGame(opts ...Option) *Game {
	g := &Game{
		ID:          uuid.New(),
		HouseRules:  DefaultHouseRules(),
		status:      StatusWaiting,
		direction:   Forward,
		drawPile:    engine.NewDeck(),
		discardPile: engine.NewDeck(),
		clock:       SystemClock,
		resolver:    rules.Standard{},
	}
	g.log = logrus.StandardLogger().WithField("game", g.ID.String())
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = engine.NewSecureRand()
	}
	g.CreatedAt = g.clock.Now()
	return g
}

// Authorize reports whether password opens this game. Games created without a
// password accept anything.
func (g *Game) Authorize(password string) bool {
	if len(g.passwordHash) == 0 {
		return true
	}
	return bcrypt.CompareHashAndPassword(g.passwordHash, []byte(password)) == nil
}

// HasPassword reports whether joining requires a password.
func (g *Game) HasPassword() bool { return len(g.passwordHash) > 0 }

// AddPlayer appends a new player to the rotation. Only allowed while Waiting.
func (g *Game) AddPlayer(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Names are stored exactly as given; only blank ones are refused.
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("player name is empty: %w", ErrValidation)
	}
	if g.status != StatusWaiting {
		return ErrGameAlreadyStarted
	}
	if _, p := g.findPlayer(name); p != nil {
		return fmt.Errorf("%q: %w", name, ErrNameTaken)
	}
	if len(g.players) >= g.HouseRules.MaxPlayers {
		return fmt.Errorf("%d players: %w", len(g.players), ErrGameFull)
	}

	g.players = append(g.players, engine.NewPlayer(name))
	g.log.WithField("player", name).Info("Player joined.")
	g.emit(GameEvent{Type: EventPlayerJoined, Player: name})
	return nil
}

// RemovePlayer handles a voluntary leave before the game starts.
func (g *Game) RemovePlayer(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusWaiting {
		return ErrGameAlreadyStarted
	}
	i, p := g.findPlayer(name)
	if p == nil {
		return fmt.Errorf("%q: %w", name, ErrUnknownPlayer)
	}
	g.players = append(g.players[:i], g.players[i+1:]...)
	g.log.WithField("player", name).Info("Player left lobby.")
	g.emit(GameEvent{Type: EventPlayerLeft, Player: name})
	return nil
}

// SetReady marks name as ready and reports whether every present player is.
// The caller starts the game when it returns true.
func (g *Game) SetReady(name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusWaiting {
		return false, ErrGameAlreadyStarted
	}
	_, p := g.findPlayer(name)
	if p == nil {
		return false, fmt.Errorf("%q: %w", name, ErrUnknownPlayer)
	}
	p.Ready = true
	all := g.allReady()
	g.emit(GameEvent{Type: EventPlayerReady, Player: name, AllReady: all})
	return all, nil
}

// StartGame deals a fresh shuffled deck and begins the first turn.
func (g *Game) StartGame() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusWaiting {
		return ErrGameAlreadyStarted
	}
	if !g.allReady() {
		return ErrPlayersNotReady
	}

	deck := engine.NewStandardDeck()
	deck.Shuffle(g.rng)
	for _, p := range g.players {
		for range g.HouseRules.HandSize {
			c, err := deck.Draw()
			if err != nil {
				// MaxPlayers keeps the deal within the deck.
				return fmt.Errorf("dealing to %s: %w", p.Name, err)
			}
			p.Give(c)
		}
	}
	top, err := deck.Draw()
	if err != nil {
		return fmt.Errorf("flipping first discard: %w", err)
	}
	g.drawPile = deck
	g.discardPile = engine.NewDeck(top)
	g.status = StatusPlaying
	g.direction = Forward
	g.current = 0

	topView := ViewCard(top)
	g.log.WithFields(logrus.Fields{"players": len(g.players), "top": top.String()}).Info("Game started.")
	g.emit(GameEvent{Type: EventGameStarted, Card: &topView, DrawPile: g.drawPile.Len(), Direction: g.direction})
	g.startTurn()
	return nil
}

// Status returns the lifecycle stage.
func (g *Game) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Winner returns the winning player's name, empty until the game finishes with one.
func (g *Game) Winner() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.winner
}

// Seq returns the current sequence token.
func (g *Game) Seq() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Drain hands every pending event to the caller and empties the outbox.
func (g *Game) Drain() []GameEvent { return g.outbox.Drain() }

// PendingEvents returns the number of undrained events.
func (g *Game) PendingEvents() int { return g.outbox.Len() }

// findPlayer returns the rotation index and record for name, or -1 and nil.
// Assumes lock is held by caller.
func (g *Game) findPlayer(name string) (int, *engine.Player) {
	for i, p := range g.players {
		if p.Name == name {
			return i, p
		}
	}
	return -1, nil
}

// Assumes lock is held by caller.
func (g *Game) allReady() bool {
	if len(g.players) == 0 {
		return false
	}
	for _, p := range g.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// emit timestamps ev, queues it and records it with the historian.
// Assumes lock is held by caller.
func (g *Game) emit(ev GameEvent) {
	ev.OccurredAt = g.clock.Now()
	ev = g.outbox.Append(ev)
	g.logAction(ev)
}

// logAction publishes an audit record asynchronously. Failures are logged and dropped.
// Assumes lock is held by caller.
func (g *Game) logAction(ev GameEvent) {
	if g.publisher == nil {
		return
	}
	g.actionIndex++
	record := cache.GameActionRecord{
		GameID:        g.ID,
		ActionIndex:   g.actionIndex,
		Actor:         ev.Player,
		ActionType:    string(ev.Type),
		ActionPayload: ev,
		Timestamp:     ev.OccurredAt.UnixMilli(),
	}

	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.publisher.PublishGameAction(ctx, rec); err != nil {
			g.log.WithError(err).WithField("action", rec.ActionIndex).Warn("Failed publishing action.")
		}
	}(record)
}
