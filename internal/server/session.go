package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/eliyamlevy/MAOnline/internal/game"
	"github.com/eliyamlevy/MAOnline/internal/registry"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const sendBuffer = 64

// session is one WebSocket client. Its game, name and playerLog are owned by
// the reader goroutine; the drain loop and writer only touch send and log,
// which never change after construction.
type session struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan any
	game *game.Game
	name string
	log  *logrus.Entry

	playerLog *logrus.Entry // log plus game and player fields, set on join.
}

func newSession(conn *websocket.Conn, log *logrus.Entry) *session {
	id := uuid.New()
	return &session{
		id:   id,
		conn: conn,
		send: make(chan any, sendBuffer),
		log:  log.WithField("session", id.String()),
	}
}

// readerLog is the richest logger available to the reader goroutine.
func (sess *session) readerLog() *logrus.Entry {
	if sess.playerLog != nil {
		return sess.playerLog
	}
	return sess.log
}

// enqueue never blocks; a client too slow to drain its buffer loses messages.
func (sess *session) enqueue(msg any) {
	select {
	case sess.send <- msg:
	default:
		sess.log.Warn("Send buffer full, dropping message.")
	}
}

// writeLoop owns every write to the connection.
func (sess *session) writeLoop(ctx context.Context, writeTimeout, pingInterval time.Duration) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sess.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, sess.conn, msg)
			cancel()
			if err != nil {
				sess.log.WithError(err).Debug("Write failed.")
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := sess.conn.Ping(pctx)
			cancel()
			if err != nil {
				sess.log.WithError(err).Debug("Ping failed.")
				return
			}
		}
	}
}

// ServeWS upgrades the request and runs the session until the client leaves.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     s.opts.OriginPatterns,
		InsecureSkipVerify: len(s.opts.OriginPatterns) == 0,
	})
	if err != nil {
		s.log.WithError(err).Warn("WebSocket upgrade failed.")
		return
	}
	sess := newSession(conn, s.log)
	sess.log.WithField("remote", r.RemoteAddr).Info("Client connected.")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		sess.writeLoop(ctx, s.opts.WriteTimeout, s.opts.PingInterval)
		cancel()
		_ = conn.CloseNow()
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var m clientMessage
		if err := json.Unmarshal(data, &m); err != nil {
			sess.enqueue(newError("INVALID_JSON", "Invalid JSON"))
			continue
		}
		s.handle(sess, m)
	}

	s.disconnect(sess)
	_ = conn.Close(websocket.StatusNormalClosure, "")
	sess.log.Info("Client disconnected.")
}

// handle dispatches one client message. Runs on the session's reader goroutine.
func (s *Server) handle(sess *session, m clientMessage) {
	if m.Type == msgPing {
		sess.enqueue(simpleMessage{Type: "pong"})
		return
	}
	if m.Type == msgJoinGame {
		s.join(sess, m)
		return
	}
	if sess.game == nil {
		switch m.Type {
		case msgReady, msgPlayCard, msgDrawCard, msgTypingResponse, msgLeaveGame, msgGetState:
			sess.enqueue(newError("NOT_IN_GAME", "Not in a game"))
		default:
			sess.enqueue(newError("UNKNOWN_MESSAGE_TYPE", "Unknown message type: "+m.Type))
		}
		return
	}

	g, name := sess.game, sess.name
	var err error
	switch m.Type {
	case msgReady:
		var all bool
		if all, err = g.SetReady(name); err == nil {
			st := g.State()
			ready := 0
			for _, p := range st.Players {
				if p.Ready {
					ready++
				}
			}
			sess.enqueue(readyReceived{Type: "ready_received", PlayersReady: ready, TotalPlayers: len(st.Players)})
			if all {
				if err := g.StartGame(); err != nil && !errors.Is(err, game.ErrGameAlreadyStarted) {
					sess.readerLog().WithError(err).Error("Starting game failed.")
				}
			}
		}
	case msgPlayCard:
		if m.CardIndex == nil {
			sess.enqueue(newError("MISSING_CARD_INDEX", "Missing card_index"))
			return
		}
		_, err = g.PlayCard(name, *m.CardIndex)
		if errors.Is(err, game.ErrInvalidMove) && s.opts.PenalizeInvalidMoves {
			if _, perr := g.PenalizeInvalidMove(name); perr != nil {
				sess.readerLog().WithError(perr).Warn("Invalid move penalty failed.")
			}
		}
	case msgDrawCard:
		_, err = g.DrawCard(name)
	case msgTypingResponse:
		_, err = g.RespondToTyping(name, m.Response)
	case msgLeaveGame:
		s.disconnectAs(sess, true)
		sess.enqueue(simpleMessage{Type: "left_game"})
		return
	case msgGetState:
		s.sendSnapshot(sess)
		return
	default:
		sess.enqueue(newError("UNKNOWN_MESSAGE_TYPE", "Unknown message type: "+m.Type))
		return
	}
	if err != nil {
		sess.enqueue(newError(game.ErrorCode(err), err.Error()))
	}
}

func (s *Server) join(sess *session, m clientMessage) {
	if sess.game != nil {
		sess.enqueue(newError("ALREADY_JOINED", "Already joined a game"))
		return
	}
	if m.PlayerName == "" {
		sess.enqueue(joinFailed{Type: "join_failed", Reason: reasonMissingName})
		return
	}

	var g *game.Game
	var err error
	if m.GameID == "" {
		g, err = s.reg.GetOrCreateDefault()
	} else {
		g, err = s.reg.GetGame(m.GameID)
	}
	switch {
	case errors.Is(err, registry.ErrValidation):
		sess.enqueue(joinFailed{Type: "join_failed", Reason: reasonInvalidGameID})
		return
	case err != nil:
		sess.enqueue(joinFailed{Type: "join_failed", Reason: reasonGameNotFound})
		return
	}
	if !g.Authorize(m.Password) {
		sess.enqueue(joinFailed{Type: "join_failed", Reason: reasonInvalidPassword})
		return
	}

	if err := g.AddPlayer(m.PlayerName); err != nil {
		reason := reasonInvalidName
		switch {
		case errors.Is(err, game.ErrGameAlreadyStarted):
			reason = reasonAlreadyStarted
		case errors.Is(err, game.ErrNameTaken):
			reason = reasonNameTaken
		case errors.Is(err, game.ErrGameFull):
			reason = reasonGameFull
		}
		sess.enqueue(joinFailed{Type: "join_failed", Reason: reason})
		return
	}

	sess.game, sess.name = g, m.PlayerName
	sess.playerLog = sess.log.WithFields(logrus.Fields{"game": g.ID.String(), "player": m.PlayerName})
	s.attach(g.ID, sess)
	sess.playerLog.Info("Player joined game.")
	sess.enqueue(joinSuccess{Type: "join_success", GameID: g.ID, PlayerName: m.PlayerName, LobbyState: g.State()})
}

func (s *Server) sendSnapshot(sess *session) {
	st := sess.game.State()
	kind := "game_state"
	if st.Status == game.StatusWaiting {
		kind = "lobby_state"
	}
	sess.enqueue(stateMessage{Type: kind, GameState: st})
	if hand, err := sess.game.Hand(sess.name); err == nil && st.Status != game.StatusWaiting {
		sess.enqueue(handMessage{Type: "your_hand", Cards: hand})
	}
}

// disconnect is called when the socket closes.
func (s *Server) disconnect(sess *session) { s.disconnectAs(sess, false) }

// disconnectAs detaches sess from its game. Before the game starts the player
// is removed; during play a voluntary leave forfeits and a dropped socket is
// only recorded as disconnected.
func (s *Server) disconnectAs(sess *session, voluntary bool) {
	g, name := sess.game, sess.name
	if g == nil {
		return
	}
	s.detach(g.ID, name)
	log := sess.readerLog()
	sess.game, sess.name, sess.playerLog = nil, "", nil

	err := g.RemovePlayer(name)
	if errors.Is(err, game.ErrGameAlreadyStarted) {
		if voluntary {
			err = g.Forfeit(name)
		} else {
			err = g.SetConnected(name, false)
		}
	}
	if err != nil {
		log.WithError(err).Debug("Leaving game.")
	}
}
