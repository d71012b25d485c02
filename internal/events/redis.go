// internal/events/redis.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for session lifecycle events.
var DefaultQueueName = "duelgame_events"

// Event types pushed onto the queue.
const (
	EventLobbyCreated       = "lobby_created"
	EventGameCreated        = "game_created"
	EventTurnChanged        = "turn_changed"
	EventLobbyDeleted       = "lobby_deleted"
	EventPlayerDisconnected = "player_disconnected"
	EventGameTornDown       = "game_torn_down"
)

// Record holds the minimal info an out-of-process consumer (analytics,
// moderation tooling) needs to reconstruct a session's lifecycle.
type Record struct {
	Event     string `json:"event"`
	LobbyID   int64  `json:"lobby_id,omitempty"`
	GameID    int64  `json:"game_id,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Emitter publishes session lifecycle records. Implementations must be safe
// for concurrent use; publishing is best-effort and failures are the caller's
// to log, never to escalate.
type Emitter interface {
	Publish(ctx context.Context, rec Record) error
}

// Nop is an Emitter that discards every record. Used when Redis is not
// configured and in tests.
type Nop struct{}

func (Nop) Publish(context.Context, Record) error { return nil }

// RedisEmitter pushes records onto a Redis list.
type RedisEmitter struct {
	rdb   *redis.Client
	queue string
}

// ConnectRedis initializes a RedisEmitter from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
//   - EVENT_QUEUE_NAME (optional, defaults to DefaultQueueName)
func ConnectRedis() (*RedisEmitter, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisEmitter{
		rdb:   rdb,
		queue: getEnv("EVENT_QUEUE_NAME", DefaultQueueName),
	}, nil
}

// Publish serializes the record to JSON and pushes it onto the queue. This
// does not block the calling logic beyond a quick network send.
func (e *RedisEmitter) Publish(ctx context.Context, rec Record) error {
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal event record: %w", err)
	}
	if err := e.rdb.RPush(ctx, e.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", e.queue, err)
	}
	return nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
