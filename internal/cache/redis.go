// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. It stays nil when no REDIS_ADDR is
// configured, in which case event archiving is a no-op.
var Rdb *redis.Client

// queueName is the Redis list the archiver consumes from.
var queueName = "uno_events"

// EventRecord is the archived form of one game feed event.
type EventRecord struct {
	SessionID  uuid.UUID `json:"session_id"`
	ChannelKey string    `json:"channel_key"`
	EventType  string    `json:"event_type"`
	ActorID    string    `json:"actor_id"`
	Message    string    `json:"message"`
	Timestamp  int64     `json:"timestamp"`
}

// Connect initializes the global Redis client and verifies it with a ping.
func Connect(ctx context.Context, addr string, db int, queue string) error {
	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if queue != "" {
		queueName = queue
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return nil
}

// PublishEvent serializes the record and pushes it onto the archive queue.
// A quick network send at most; game state never waits on the archive.
func PublishEvent(ctx context.Context, record EventRecord) error {
	if Rdb == nil {
		return nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}
	if err := Rdb.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("rpush to %q: %w", queueName, err)
	}
	return nil
}

// Close releases the client.
func Close() error {
	if Rdb != nil {
		return Rdb.Close()
	}
	return nil
}
