// Package server is the WebSocket delivery layer: it turns client messages
// into game operations and periodically drains each game's outbox into
// per-player notifications.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/eliyamlevy/MAOnline/internal/game"
	"github.com/eliyamlevy/MAOnline/internal/registry"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Options tune the delivery layer.
type Options struct {
	DrainInterval        time.Duration // Default 100ms.
	PenalizeInvalidMoves bool          // Draw a penalty card after an illegal play.
	OriginPatterns       []string      // Allowed cross-origin hosts; empty allows any.
	WriteTimeout         time.Duration
	PingInterval         time.Duration
}

// Server routes WebSocket sessions to games held in a registry.
type Server struct {
	reg  *registry.Registry
	opts Options
	log  *logrus.Entry

	mu       sync.RWMutex
	sessions map[uuid.UUID]map[string]*session // game id -> player name -> session
}

// New returns a Server backed by reg. A nil logger uses the logrus standard logger.
func New(reg *registry.Registry, opts Options, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.DrainInterval <= 0 {
		opts.DrainInterval = 100 * time.Millisecond
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 15 * time.Second
	}
	return &Server{
		reg:      reg,
		opts:     opts,
		log:      logger.WithField("component", "server"),
		sessions: make(map[uuid.UUID]map[string]*session),
	}
}

// Handler exposes /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWS)
	mux.HandleFunc("/healthz", s.serveHealth)
	return mux
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "games": s.reg.Len()})
}

// Run drains every game on a fixed interval until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.DrainOnce()
		}
	}
}

// DrainOnce delivers the pending events of every game.
func (s *Server) DrainOnce() {
	for _, g := range s.reg.Games() {
		if evs := g.Drain(); len(evs) > 0 {
			s.route(g, evs)
		}
	}
}

// route fans one game's events out to its sessions, then refreshes hands and
// the shared snapshot.
func (s *Server) route(g *game.Game, evs []game.GameEvent) {
	handsToSend := make(map[string]bool)
	for _, ev := range evs {
		switch ev.Type {
		case game.EventCardDrawn:
			s.sendTo(g.ID, ev.Player, ev)
			public := ev
			public.Card = nil
			s.broadcastExcept(g.ID, ev.Player, public)
			handsToSend[ev.Player] = true
		case game.EventTypingChallenge:
			s.sendTo(g.ID, ev.Player, ev)
		case game.EventCardPlayed, game.EventTurnStarted:
			s.broadcast(g.ID, ev)
			handsToSend[ev.Player] = true
		case game.EventGameStarted:
			s.broadcast(g.ID, ev)
			for _, name := range s.playerNames(g.ID) {
				handsToSend[name] = true
			}
		default:
			s.broadcast(g.ID, ev)
		}
	}

	for name := range handsToSend {
		hand, err := g.Hand(name)
		if err != nil {
			continue // Forfeited or left.
		}
		s.sendTo(g.ID, name, handMessage{Type: "your_hand", Cards: hand})
	}

	st := g.State()
	kind := "game_state"
	if st.Status == game.StatusWaiting {
		kind = "lobby_state"
	}
	s.broadcast(g.ID, stateMessage{Type: kind, GameState: st})
}

func (s *Server) attach(gameID uuid.UUID, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.sessions[gameID]
	if m == nil {
		m = make(map[string]*session)
		s.sessions[gameID] = m
	}
	m[sess.name] = sess
}

func (s *Server) detach(gameID uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.sessions[gameID]; m != nil {
		delete(m, name)
		if len(m) == 0 {
			delete(s.sessions, gameID)
		}
	}
}

func (s *Server) playerNames(gameID uuid.UUID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.sessions[gameID]))
	for name := range s.sessions[gameID] {
		names = append(names, name)
	}
	return names
}

func (s *Server) sendTo(gameID uuid.UUID, name string, msg any) {
	s.mu.RLock()
	sess := s.sessions[gameID][name]
	s.mu.RUnlock()
	if sess != nil {
		sess.enqueue(msg)
	}
}

func (s *Server) broadcast(gameID uuid.UUID, msg any) {
	s.broadcastExcept(gameID, "", msg)
}

func (s *Server) broadcastExcept(gameID uuid.UUID, skip string, msg any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, sess := range s.sessions[gameID] {
		if name != skip {
			sess.enqueue(msg)
		}
	}
}
