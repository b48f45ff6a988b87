package server

import (
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/eliyamlevy/MAOnline/internal/game"
	"github.com/eliyamlevy/MAOnline/internal/registry"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestServer(t *testing.T, opts Options) (*Server, *registry.Registry) {
	t.Helper()
	l := quietLogger()
	reg := registry.New(registry.Config{
		BcryptCost:  bcrypt.MinCost,
		GameOptions: []game.Option{game.WithRand(rand.New(rand.NewPCG(3, 4)))},
	}, l)
	return New(reg, opts, l), reg
}

// fakeSession is a session without a socket; tests read its send buffer directly.
func fakeSession(srv *Server, g *game.Game, name string) *session {
	sess := &session{id: uuid.New(), send: make(chan any, 256), game: g, name: name, log: srv.log}
	srv.attach(g.ID, sess)
	return sess
}

func pending(sess *session) []any {
	var out []any
	for {
		select {
		case m := <-sess.send:
			out = append(out, m)
		default:
			return out
		}
	}
}

func msgType(t *testing.T, msg any) string {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	var env struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	return env.Type
}

func findEvent(msgs []any, typ game.GameEventType) (game.GameEvent, bool) {
	for _, m := range msgs {
		if ev, ok := m.(game.GameEvent); ok && ev.Type == typ {
			return ev, true
		}
	}
	return game.GameEvent{}, false
}

func startedGame(t *testing.T, srv *Server, reg *registry.Registry) (*game.Game, *session, *session) {
	t.Helper()
	g, err := reg.CreateGame("", 20)
	require.NoError(t, err)
	require.NoError(t, g.AddPlayer("A"))
	require.NoError(t, g.AddPlayer("B"))
	a, b := fakeSession(srv, g, "A"), fakeSession(srv, g, "B")
	for _, n := range []string{"A", "B"} {
		_, err := g.SetReady(n)
		require.NoError(t, err)
	}
	require.NoError(t, g.StartGame())
	return g, a, b
}

func TestRouteGameStart(t *testing.T) {
	srv, reg := newTestServer(t, Options{})
	_, a, b := startedGame(t, srv, reg)

	srv.DrainOnce()

	msgs := pending(a)
	_, ok := findEvent(msgs, game.EventGameStarted)
	assert.True(t, ok)
	turn, ok := findEvent(msgs, game.EventTurnStarted)
	require.True(t, ok)
	assert.Equal(t, "A", turn.Player)

	var hand *handMessage
	for _, m := range msgs {
		if h, ok := m.(handMessage); ok {
			hand = &h
		}
	}
	require.NotNil(t, hand)
	assert.Len(t, hand.Cards, 7)

	last := msgs[len(msgs)-1]
	require.IsType(t, stateMessage{}, last)
	st := last.(stateMessage)
	assert.Equal(t, "game_state", st.Type)
	assert.Equal(t, "A", st.CurrentPlayer)

	bmsgs := pending(b)
	assert.Equal(t, "game_state", msgType(t, bmsgs[len(bmsgs)-1]))
	var bHand []game.CardView
	for _, m := range bmsgs {
		if h, ok := m.(handMessage); ok {
			bHand = h.Cards
		}
	}
	assert.Len(t, bHand, 7, "every player gets their hand at the start")
}

func TestRouteCardDrawnIsPrivate(t *testing.T) {
	srv, reg := newTestServer(t, Options{})
	g, a, b := startedGame(t, srv, reg)
	srv.DrainOnce()
	pending(a)
	pending(b)

	drawn, err := g.DrawCard("A")
	require.NoError(t, err)
	srv.DrainOnce()

	mine, ok := findEvent(pending(a), game.EventCardDrawn)
	require.True(t, ok)
	require.NotNil(t, mine.Card)
	assert.Equal(t, game.ViewCard(drawn), *mine.Card)

	bmsgs := pending(b)
	theirs, ok := findEvent(bmsgs, game.EventCardDrawn)
	require.True(t, ok)
	assert.Nil(t, theirs.Card)
	assert.Equal(t, 8, theirs.HandSize)
	turn, ok := findEvent(bmsgs, game.EventTurnStarted)
	require.True(t, ok)
	assert.Equal(t, "B", turn.Player)
}

func TestHandleRequiresGame(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	sess := &session{id: uuid.New(), send: make(chan any, 16), log: srv.log}

	srv.handle(sess, clientMessage{Type: msgDrawCard})
	srv.handle(sess, clientMessage{Type: "dance"})
	srv.handle(sess, clientMessage{Type: msgPing})

	msgs := pending(sess)
	require.Len(t, msgs, 3)
	assert.Equal(t, "NOT_IN_GAME", msgs[0].(errorMessage).ErrorCode)
	assert.Equal(t, "UNKNOWN_MESSAGE_TYPE", msgs[1].(errorMessage).ErrorCode)
	assert.Equal(t, "pong", msgType(t, msgs[2]))
}

func TestHandleGameErrors(t *testing.T) {
	srv, reg := newTestServer(t, Options{})
	_, _, b := startedGame(t, srv, reg)
	pending(b)

	srv.handle(b, clientMessage{Type: msgDrawCard})
	srv.handle(b, clientMessage{Type: msgPlayCard})
	idx := 1
	srv.handle(b, clientMessage{Type: msgPlayCard, CardIndex: &idx})
	srv.handle(b, clientMessage{Type: msgTypingResponse, Response: "have a nice day"})

	msgs := pending(b)
	require.Len(t, msgs, 4)
	assert.Equal(t, "NOT_YOUR_TURN", msgs[0].(errorMessage).ErrorCode)
	assert.Equal(t, "MISSING_CARD_INDEX", msgs[1].(errorMessage).ErrorCode)
	assert.Equal(t, "NOT_YOUR_TURN", msgs[2].(errorMessage).ErrorCode)
	assert.Equal(t, "NO_TYPING_CHALLENGE", msgs[3].(errorMessage).ErrorCode)
}

func TestInvalidMovePenaltyWhenConfigured(t *testing.T) {
	srv, reg := newTestServer(t, Options{PenalizeInvalidMoves: true})
	g, a, _ := startedGame(t, srv, reg)
	pending(a)

	st := g.State()
	hand, err := g.Hand("A")
	require.NoError(t, err)
	pos := 0
	for i, c := range hand {
		if c.Suit != st.TopCard.Suit && c.Value != st.TopCard.Value {
			pos = i + 1
			break
		}
	}
	if pos == 0 {
		t.Skip("every card in the dealt hand matches the top card")
	}

	srv.handle(a, clientMessage{Type: msgPlayCard, CardIndex: &pos})

	msgs := pending(a)
	require.Len(t, msgs, 1)
	assert.Equal(t, "INVALID_MOVE", msgs[0].(errorMessage).ErrorCode)
	assert.Equal(t, "B", g.CurrentPlayer())
	after, _ := g.Hand("A")
	assert.Len(t, after, 8)
}

func TestLeaveGameForfeitsDuringPlay(t *testing.T) {
	srv, reg := newTestServer(t, Options{})
	g, a, _ := startedGame(t, srv, reg)

	srv.handle(a, clientMessage{Type: msgLeaveGame})

	assert.Nil(t, a.game)
	assert.Equal(t, game.StatusFinished, g.Status())
	assert.Equal(t, "B", g.Winner())
	assert.NotContains(t, srv.playerNames(g.ID), "A")
}

func TestPaddedNameJoinsReadiesAndLeaves(t *testing.T) {
	srv, reg := newTestServer(t, Options{})
	bob := &session{id: uuid.New(), send: make(chan any, 16), log: srv.log}
	ann := &session{id: uuid.New(), send: make(chan any, 16), log: srv.log}

	srv.join(bob, clientMessage{Type: msgJoinGame, PlayerName: " Bob"})
	srv.join(ann, clientMessage{Type: msgJoinGame, PlayerName: "Ann"})
	require.IsType(t, joinSuccess{}, pending(bob)[0])
	assert.Equal(t, " Bob", bob.name)

	srv.handle(bob, clientMessage{Type: msgReady})
	msgs := pending(bob)
	require.Len(t, msgs, 1)
	require.IsType(t, readyReceived{}, msgs[0])
	assert.Equal(t, 1, msgs[0].(readyReceived).PlayersReady)
	assert.Contains(t, srv.playerNames(bob.game.ID), " Bob")

	g := bob.game
	srv.disconnect(bob)
	st := g.State()
	require.Len(t, st.Players, 1)
	assert.Equal(t, "Ann", st.Players[0].Name)

	srv.handle(ann, clientMessage{Type: msgReady})
	assert.Equal(t, game.StatusPlaying, g.Status(), "the lobby is not blocked by a stale seat")
	_, err := reg.GetGame(g.ID.String())
	require.NoError(t, err)
}

// websocket round trips

type wsClient struct {
	t    *testing.T
	ctx  context.Context
	conn *websocket.Conn
}

func dial(t *testing.T, ctx context.Context, ts *httptest.Server) *wsClient {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return &wsClient{t: t, ctx: ctx, conn: conn}
}

func (c *wsClient) send(msg map[string]any) {
	c.t.Helper()
	require.NoError(c.t, wsjson.Write(c.ctx, c.conn, msg))
}

// readUntil skips messages until one of type typ arrives.
func (c *wsClient) readUntil(typ string) map[string]any {
	c.t.Helper()
	for {
		var m map[string]any
		require.NoError(c.t, wsjson.Read(c.ctx, c.conn, &m))
		if m["type"] == typ {
			return m
		}
	}
}

func runServer(t *testing.T, opts Options) (*httptest.Server, *registry.Registry, context.Context) {
	t.Helper()
	opts.DrainInterval = 10 * time.Millisecond
	srv, reg := newTestServer(t, opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	go func() { _ = srv.Run(ctx) }()
	return ts, reg, ctx
}

func TestWebSocketJoinReadyStart(t *testing.T) {
	ts, _, ctx := runServer(t, Options{})
	a, b := dial(t, ctx, ts), dial(t, ctx, ts)

	a.send(map[string]any{"type": "join_game", "player_name": "A"})
	joined := a.readUntil("join_success")
	gameID := joined["game_id"].(string)
	assert.Equal(t, "A", joined["player_name"])

	b.send(map[string]any{"type": "join_game", "player_name": "B", "game_id": gameID})
	b.readUntil("join_success")

	a.send(map[string]any{"type": "ready"})
	rr := a.readUntil("ready_received")
	assert.Equal(t, float64(1), rr["players_ready"])
	b.send(map[string]any{"type": "ready"})

	a.readUntil("game_started")
	turn := a.readUntil("player_turn")
	assert.Equal(t, "A", turn["player_name"])
	hand := a.readUntil("your_hand")
	assert.Len(t, hand["cards"], 7)
	st := a.readUntil("game_state")
	assert.Equal(t, "A", st["current_player"])
	assert.Equal(t, float64(52-14-1), st["draw_pile_size"])

	a.send(map[string]any{"type": "draw_card"})
	drawn := a.readUntil("card_drawn")
	assert.NotNil(t, drawn["card"])
	other := b.readUntil("card_drawn")
	assert.Nil(t, other["card"])

	b.send(map[string]any{"type": "get_state"})
	assert.Equal(t, "B", b.readUntil("game_state")["current_player"])
}

func TestWebSocketProtocolErrors(t *testing.T) {
	ts, reg, ctx := runServer(t, Options{})
	locked, err := reg.CreateGame("pw", 20)
	require.NoError(t, err)
	c := dial(t, ctx, ts)

	c.send(map[string]any{"type": "ping"})
	c.readUntil("pong")

	require.NoError(t, c.conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	assert.Equal(t, "INVALID_JSON", c.readUntil("error")["error_code"])

	c.send(map[string]any{"type": "draw_card"})
	assert.Equal(t, "NOT_IN_GAME", c.readUntil("error")["error_code"])

	for _, tc := range []struct {
		msg    map[string]any
		reason string
	}{
		{map[string]any{"type": "join_game"}, "missing_player_name"},
		{map[string]any{"type": "join_game", "player_name": "A", "game_id": "nope"}, "invalid_game_id"},
		{map[string]any{"type": "join_game", "player_name": "A", "game_id": uuid.NewString()}, "game_not_found"},
		{map[string]any{"type": "join_game", "player_name": "A", "game_id": locked.ID.String(), "password": "bad"}, "invalid_password"},
	} {
		c.send(tc.msg)
		assert.Equal(t, tc.reason, c.readUntil("join_failed")["reason"])
	}

	c.send(map[string]any{"type": "join_game", "player_name": "A", "game_id": locked.ID.String(), "password": "pw"})
	c.readUntil("join_success")
	c.send(map[string]any{"type": "join_game", "player_name": "A"})
	assert.Equal(t, "ALREADY_JOINED", c.readUntil("error")["error_code"])

	d := dial(t, ctx, ts)
	d.send(map[string]any{"type": "join_game", "player_name": "A", "game_id": locked.ID.String(), "password": "pw"})
	assert.Equal(t, "name_taken", d.readUntil("join_failed")["reason"])
}

func TestWebSocketSessionLoggingAfterJoin(t *testing.T) {
	ts, reg, ctx := runServer(t, Options{PingInterval: 2 * time.Millisecond})
	a, b := dial(t, ctx, ts), dial(t, ctx, ts)

	a.send(map[string]any{"type": "join_game", "player_name": "A"})
	a.readUntil("join_success")
	b.send(map[string]any{"type": "join_game", "player_name": "B"})
	b.readUntil("join_success")
	a.send(map[string]any{"type": "ready"})
	b.send(map[string]any{"type": "ready"})
	a.readUntil("game_state")

	// The writer keeps pinging and the drain loop keeps sending while the
	// reader has already switched to its player logger.
	time.Sleep(20 * time.Millisecond)
	_ = a.conn.CloseNow()

	g, err := reg.GetGame("")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		for _, p := range g.State().Players {
			if p.Name == "A" {
				return !p.Connected
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketCloseLeavesLobby(t *testing.T) {
	ts, reg, ctx := runServer(t, Options{})
	c := dial(t, ctx, ts)
	c.send(map[string]any{"type": "join_game", "player_name": "A"})
	c.readUntil("join_success")

	g, err := reg.GetGame("")
	require.NoError(t, err)
	require.Len(t, g.State().Players, 1)

	_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	assert.Eventually(t, func() bool { return len(g.State().Players) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealthz(t *testing.T) {
	srv, reg := newTestServer(t, Options{})
	_, err := reg.CreateGame("", 20)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","games":1}`, rec.Body.String())
}
