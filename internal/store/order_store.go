package store

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/virtual-cafe/internal/model"
)

// OrderStore persists orders, the per-user order sets, the FIFO preparation
// queue and the single preparer slot. Orders expire with a TTL slightly
// beyond the inactivity timeout so abandoned sessions cannot leak records.
type OrderStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewOrderStore returns an OrderStore whose records carry the given TTL.
func NewOrderStore(rdb *redis.Client, ttl time.Duration) *OrderStore {
	return &OrderStore{rdb: rdb, ttl: ttl}
}

// SaveOrder writes the order record, refreshing its TTL.
func (s *OrderStore) SaveOrder(ctx context.Context, o *model.Order) error {
	body, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, orderKey(o.ID), body, s.ttl).Err()
}

// GetOrder loads an order. Missing or corrupt records return ErrNotFound;
// corrupt ones are deleted on the way out.
func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	raw, err := s.rdb.Get(ctx, orderKey(orderID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var o model.Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		log.Printf("order-store: order %s is corrupt, deleting: %v", orderID, err)
		s.rdb.Del(ctx, orderKey(orderID))
		return nil, ErrNotFound
	}
	return &o, nil
}

// AllOrders scans every stored order. The served-order sweep iterates this
// set, so it must see orders of disconnected users too. Corrupt records are
// deleted and skipped.
func (s *OrderStore) AllOrders(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	iter := s.rdb.Scan(ctx, 0, "order:*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.rdb.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var o model.Order
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			log.Printf("order-store: %s is corrupt, deleting: %v", iter.Val(), err)
			s.rdb.Del(ctx, iter.Val())
			continue
		}
		out = append(out, o)
	}
	return out, iter.Err()
}

// DeleteOrder removes the order record.
func (s *OrderStore) DeleteOrder(ctx context.Context, orderID string) error {
	return s.rdb.Del(ctx, orderKey(orderID)).Err()
}

// UserOrders loads the order-ID set for a user. Absent or corrupt records
// come back as an empty set.
func (s *OrderStore) UserOrders(ctx context.Context, userID string) ([]string, error) {
	raw, err := s.rdb.Get(ctx, userOrdersKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		log.Printf("order-store: order set for user %s is corrupt, deleting: %v", userID, err)
		s.rdb.Del(ctx, userOrdersKey(userID))
		return nil, nil
	}
	return ids, nil
}

// MutateUserOrders applies fn to a user's order-ID set inside an optimistic
// transaction. fn receives the current set and returns the replacement; an
// empty result deletes the key. Order placement and the deferred removals
// both rewrite this set, so the read-apply-write cycle must be serialized
// per key. On contention it retries with a fresh snapshot.
func (s *OrderStore) MutateUserOrders(ctx context.Context, userID string, fn func(ids []string) ([]string, error)) error {
	key := userOrdersKey(userID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		var ids []string
		if err == nil {
			if uerr := json.Unmarshal([]byte(raw), &ids); uerr != nil {
				log.Printf("order-store: order set for user %s is corrupt, starting empty: %v", userID, uerr)
				ids = nil
			}
		}

		next, err := fn(ids)
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

// EnqueueOrder appends an order ID to the FIFO preparation queue.
func (s *OrderStore) EnqueueOrder(ctx context.Context, orderID string) error {
	return s.rdb.RPush(ctx, orderQueueKey, orderID).Err()
}

// RequeueOrder pushes an order ID back to the head of the queue. Used when a
// dequeued order loses the preparer-slot race; the head position preserves
// FIFO order.
func (s *OrderStore) RequeueOrder(ctx context.Context, orderID string) error {
	return s.rdb.LPush(ctx, orderQueueKey, orderID).Err()
}

// DequeueOrder pops the queue head, returning "" when the queue is empty.
func (s *OrderStore) DequeueOrder(ctx context.Context) (string, error) {
	id, err := s.rdb.LPop(ctx, orderQueueKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

// QueueDepth reports the number of orders waiting behind the preparer slot.
func (s *OrderStore) QueueDepth(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, orderQueueKey).Result()
}

// ClaimPreparing claims the single preparer slot for an order. SET NX makes
// the claim atomic across instances: only one tick loop wins.
func (s *OrderStore) ClaimPreparing(ctx context.Context, orderID string) (bool, error) {
	return s.rdb.SetNX(ctx, orderPreparingKey, orderID, 0).Result()
}

// Preparing returns the ID of the order currently in the preparer slot, or
// "" when the slot is free.
func (s *OrderStore) Preparing(ctx context.Context) (string, error) {
	id, err := s.rdb.Get(ctx, orderPreparingKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

// ClearPreparing frees the preparer slot.
func (s *OrderStore) ClearPreparing(ctx context.Context) error {
	return s.rdb.Del(ctx, orderPreparingKey).Err()
}
