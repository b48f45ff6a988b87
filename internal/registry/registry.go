// Package registry owns every game instance in the process and resolves game
// ids for incoming sessions.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/eliyamlevy/MAOnline/internal/game"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound   = errors.New("game not found")
	ErrValidation = errors.New("validation error")
)

// Config is the baseline applied to every game the registry creates.
type Config struct {
	HouseRules game.HouseRules
	// GameOptions are appended to every NewGame call (clock, publisher, resolver).
	GameOptions []game.Option
	BcryptCost  int
}

// Registry maps game ids to live games. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	games     map[uuid.UUID]*game.Game
	defaultID uuid.UUID

	cfg Config
	log *logrus.Entry
}

// New returns an empty registry. A nil logger uses the logrus standard logger.
func New(cfg Config, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Registry{
		games: make(map[uuid.UUID]*game.Game),
		cfg:   cfg,
		log:   logger.WithField("component", "registry"),
	}
}

// CreateGame builds a new Waiting game, optionally password protected, and
// stores it. The first game created becomes the default.
func (r *Registry) CreateGame(password string, turnTimeoutSeconds int) (*game.Game, error) {
	g, err := r.newGame(password, turnTimeoutSeconds)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeLocked(g)
	return g, nil
}

func (r *Registry) newGame(password string, turnTimeoutSeconds int) (*game.Game, error) {
	if turnTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("turn timeout %d: %w", turnTimeoutSeconds, ErrValidation)
	}

	hr := r.cfg.HouseRules
	hr.TurnTimeoutSec = turnTimeoutSeconds
	opts := slices.Clone(r.cfg.GameOptions)
	opts = append(opts, game.WithHouseRules(hr), game.WithLogger(r.log.Logger))
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cfg.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hashing game password: %w", err)
		}
		opts = append(opts, game.WithPasswordHash(hash))
	}

	g := game.NewGame(opts...)
	r.log.WithFields(logrus.Fields{"game": g.ID, "password": password != "", "turn_timeout": turnTimeoutSeconds}).Info("Game created.")
	return g, nil
}

// Assumes r.mu is held for writing.
func (r *Registry) storeLocked(g *game.Game) {
	r.games[g.ID] = g
	if r.defaultID == uuid.Nil {
		r.defaultID = g.ID
	}
}

// GetGame resolves id to a game. An empty id selects the default game.
func (r *Registry) GetGame(id string) (*game.Game, error) {
	id = strings.TrimSpace(id)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if id == "" {
		if g, ok := r.games[r.defaultID]; ok {
			return g, nil
		}
		return nil, fmt.Errorf("no default game: %w", ErrNotFound)
	}
	gid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("game id %q: %w", id, ErrValidation)
	}
	g, ok := r.games[gid]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", gid, ErrNotFound)
	}
	return g, nil
}

// GetOrCreateDefault returns the default game, creating one with the baseline
// configuration if none exists.
func (r *Registry) GetOrCreateDefault() (*game.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.games[r.defaultID]; ok {
		return g, nil
	}
	timeout := r.cfg.HouseRules.TurnTimeoutSec
	if timeout <= 0 {
		timeout = game.DefaultTurnTimeoutSec
	}
	g, err := r.newGame("", timeout)
	if err != nil {
		return nil, err
	}
	r.storeLocked(g)
	return g, nil
}

// Games returns every registered game, oldest first.
func (r *Registry) Games() []*game.Game {
	r.mu.RLock()
	out := make([]*game.Game, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, g)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *game.Game) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// Len returns the number of registered games.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
