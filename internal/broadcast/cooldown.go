package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown suppresses repeated restoration broadcasts to the same
// (user, room) pair within a short window. Rapid reconnects otherwise cause
// a feedback storm: each reconnect triggers a full-state broadcast which
// triggers client refreshes which look like reconnects.
type Cooldown struct {
	rdb    *redis.Client
	window time.Duration
}

// NewCooldown returns a cooldown gate with the given suppression window.
// A nil client disables suppression (every call is allowed).
func NewCooldown(rdb *redis.Client, window time.Duration) *Cooldown {
	return &Cooldown{rdb: rdb, window: window}
}

// Allow reports whether a restoration broadcast for the pair may go out now.
// The check and the marker write are a single SET NX PX so two racing
// restores cannot both pass.
func (c *Cooldown) Allow(ctx context.Context, userID, roomID string) bool {
	if c.rdb == nil || c.window <= 0 {
		return true
	}
	key := fmt.Sprintf("broadcast:cooldown:%s:%s", roomID, userID)
	ok, err := c.rdb.SetNX(ctx, key, 1, c.window).Result()
	if err != nil {
		// Store trouble must not silence legitimate broadcasts.
		return true
	}
	return ok
}
