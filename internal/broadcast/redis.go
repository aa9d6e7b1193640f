package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publishes deltas on Redis pub/sub channels named
// "room:{roomID}:{topic}". Redis pub/sub gives exactly the delivery model
// the engine promises: at-most-once, no replay, fan-out to whoever is
// subscribed at publish time.
type RedisBroadcaster struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewRedisBroadcaster returns a broadcaster bound to the given client.
func NewRedisBroadcaster(rdb *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, timeout: 2 * time.Second}
}

// Channel returns the pub/sub channel name for a room topic. Exposed so
// subscribing transports use the same naming.
func Channel(roomID, topic string) string {
	return fmt.Sprintf("room:%s:%s", roomID, topic)
}

// Publish marshals the delta and publishes it. Errors are logged and
// returned; callers in mutation paths ignore them so a broker hiccup never
// fails a state change that already committed to the store.
func (b *RedisBroadcaster) Publish(roomID, topic string, d Delta) error {
	body, err := json.Marshal(d)
	if err != nil {
		log.Printf("broadcast: marshal delta failed: %v", err)
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.rdb.Publish(ctx, Channel(roomID, topic), body).Err(); err != nil {
		log.Printf("broadcast: publish to %s failed: %v", Channel(roomID, topic), err)
		return err
	}
	return nil
}
