// Package cache publishes game action records to Redis. The list is an
// append-only audit stream for external consumers; the server never reads it
// back.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultActionsKey is the Redis list that receives action records.
const DefaultActionsKey = "mao:game_actions"

// GameActionRecord is one audited game event.
type GameActionRecord struct {
	GameID        uuid.UUID `json:"gameId"`
	ActionIndex   int       `json:"actionIndex"`
	Actor         string    `json:"actor,omitempty"` // Player name; empty for game-level events.
	ActionType    string    `json:"actionType"`
	ActionPayload any       `json:"actionPayload,omitempty"`
	Timestamp     int64     `json:"timestamp"` // Unix milliseconds.
}

// Historian appends action records to a Redis list.
type Historian struct {
	rdb *redis.Client
	key string
}

// NewHistorian wraps an existing client. An empty key selects DefaultActionsKey.
func NewHistorian(rdb *redis.Client, key string) *Historian {
	if key == "" {
		key = DefaultActionsKey
	}
	return &Historian{rdb: rdb, key: key}
}

// Connect parses a redis:// URL, pings the server and returns a Historian.
func Connect(ctx context.Context, url, key string) (*Historian, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return NewHistorian(rdb, key), nil
}

// PublishGameAction serializes rec as JSON and RPUSHes it.
func (h *Historian) PublishGameAction(ctx context.Context, rec GameActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action %d: %w", rec.ActionIndex, err)
	}
	if err := h.rdb.RPush(ctx, h.key, data).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", h.key, err)
	}
	return nil
}

// Close releases the underlying client.
func (h *Historian) Close() error { return h.rdb.Close() }
