package store

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/virtual-cafe/internal/model"
)

// ConsumableStore persists each user's per-room consumable list as one JSON
// value. The key TTL doubles as the grace-period mechanism: a normal save
// carries the standard TTL, a leave shortens it to the grace window, and a
// rejoin restores it. Data inside the window is recoverable, data beyond it
// is gone without any sweep having to touch it.
type ConsumableStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewConsumableStore returns a ConsumableStore whose live records carry the
// given TTL.
func NewConsumableStore(rdb *redis.Client, ttl time.Duration) *ConsumableStore {
	return &ConsumableStore{rdb: rdb, ttl: ttl}
}

// List loads a user's consumables in a room. Absent or corrupt records come
// back empty; corrupt ones are deleted.
func (s *ConsumableStore) List(ctx context.Context, roomID, userID string) ([]model.Consumable, error) {
	raw, err := s.rdb.Get(ctx, consumablesKey(roomID, userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []model.Consumable
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		log.Printf("consumable-store: list for %s/%s is corrupt, deleting: %v", roomID, userID, err)
		s.rdb.Del(ctx, consumablesKey(roomID, userID))
		return nil, nil
	}
	return list, nil
}

// Mutate applies fn to a user's consumable list inside an optimistic
// transaction. fn receives the current list and returns the replacement;
// returning an empty list deletes the key, anything else is written back
// with the standard TTL. The per-second tick and the serve path race on the
// same key from different instances, so plain read-then-write would lose
// whichever update lands first. On contention the cycle retries with a
// fresh snapshot.
func (s *ConsumableStore) Mutate(ctx context.Context, roomID, userID string, fn func(list []model.Consumable) ([]model.Consumable, error)) error {
	key := consumablesKey(roomID, userID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		var list []model.Consumable
		if err == nil {
			if uerr := json.Unmarshal([]byte(raw), &list); uerr != nil {
				log.Printf("consumable-store: list for %s/%s is corrupt, starting empty: %v", roomID, userID, uerr)
				list = nil
			}
		}

		next, err := fn(list)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(next) == 0 {
				pipe.Del(ctx, key)
				return nil
			}
			body, err := json.Marshal(next)
			if err != nil {
				return err
			}
			pipe.Set(ctx, key, body, s.ttl)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < watchRetries; i++ {
		err = s.rdb.Watch(ctx, txn, key)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return err
}

// ExpireAfter shortens the record's lifetime to the grace window without
// touching its content. Used on leave: the UI shows the seat as cleared but
// the data survives a quick reconnect.
func (s *ConsumableStore) ExpireAfter(ctx context.Context, roomID, userID string, grace time.Duration) error {
	return s.rdb.Expire(ctx, consumablesKey(roomID, userID), grace).Err()
}

// Restore cancels a pending grace expiry by resetting the standard TTL.
func (s *ConsumableStore) Restore(ctx context.Context, roomID, userID string) error {
	return s.rdb.Expire(ctx, consumablesKey(roomID, userID), s.ttl).Err()
}

// Owner identifies one stored consumable list.
type Owner struct {
	RoomID string
	UserID string
}

// Owners scans the key space for every stored consumable list, connected
// users or not. The per-second tick iterates this set so timers keep
// advancing through disconnects.
func (s *ConsumableStore) Owners(ctx context.Context) ([]Owner, error) {
	var owners []Owner
	iter := s.rdb.Scan(ctx, 0, consumablesPattern, 100).Iterator()
	for iter.Next(ctx) {
		parts := strings.SplitN(iter.Val(), ":", 3)
		if len(parts) != 3 {
			continue
		}
		owners = append(owners, Owner{RoomID: parts[1], UserID: parts[2]})
	}
	return owners, iter.Err()
}
