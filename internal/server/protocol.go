package server

import (
	"github.com/eliyamlevy/MAOnline/internal/game"
	"github.com/google/uuid"
)

// Client message types.
const (
	msgJoinGame       = "join_game"
	msgReady          = "ready"
	msgPlayCard       = "play_card"
	msgDrawCard       = "draw_card"
	msgTypingResponse = "typing_rule_response"
	msgLeaveGame      = "leave_game"
	msgGetState       = "get_state"
	msgPing           = "ping"
)

// clientMessage is the union of every field a client may send.
type clientMessage struct {
	Type       string `json:"type"`
	GameID     string `json:"game_id,omitempty"`
	Password   string `json:"password,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
	CardIndex  *int   `json:"card_index,omitempty"` // 1-based.
	Response   string `json:"response,omitempty"`
}

// Join failure reasons.
const (
	reasonMissingName     = "missing_player_name"
	reasonInvalidName     = "invalid_player_name"
	reasonInvalidPassword = "invalid_password"
	reasonAlreadyStarted  = "game_already_started"
	reasonNameTaken       = "name_taken"
	reasonGameFull        = "game_full"
	reasonGameNotFound    = "game_not_found"
	reasonInvalidGameID   = "invalid_game_id"
)

type joinSuccess struct {
	Type       string         `json:"type"`
	GameID     uuid.UUID      `json:"game_id"`
	PlayerName string         `json:"player_name"`
	LobbyState game.GameState `json:"lobby_state"`
}

type joinFailed struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type errorMessage struct {
	Type      string `json:"type"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

type readyReceived struct {
	Type         string `json:"type"`
	PlayersReady int    `json:"players_ready"`
	TotalPlayers int    `json:"total_players"`
}

// stateMessage flattens the snapshot next to its type.
type stateMessage struct {
	Type string `json:"type"`
	game.GameState
}

type handMessage struct {
	Type  string          `json:"type"`
	Cards []game.CardView `json:"cards"`
}

type simpleMessage struct {
	Type string `json:"type"`
}

func newError(code, message string) errorMessage {
	return errorMessage{Type: "error", ErrorCode: code, Message: message}
}
