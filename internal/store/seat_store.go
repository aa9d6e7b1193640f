package store

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/virtual-cafe/internal/model"
)

// SeatStore persists per-room seat occupancy as a Redis hash keyed by seat
// index. All read-modify-write cycles on a room map go through Mutate, which
// wraps them in a WATCH transaction so concurrent joins cannot lose updates.
type SeatStore struct {
	rdb *redis.Client
}

// NewSeatStore returns a SeatStore bound to the provided client.
func NewSeatStore(rdb *redis.Client) *SeatStore { return &SeatStore{rdb: rdb} }

// watchRetries bounds optimistic-transaction retries before giving up and
// surfacing the conflict to the caller.
const watchRetries = 5

// Room loads the full occupancy map for a room. Hash fields that fail to
// decode are deleted and skipped; they are recreated by the next join.
func (s *SeatStore) Room(ctx context.Context, roomID string) (map[int]model.SeatAssignment, error) {
	fields, err := s.rdb.HGetAll(ctx, roomSeatsKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	return s.decodeRoom(ctx, roomID, fields), nil
}

// Mutate applies fn to the room's occupancy map inside an optimistic
// transaction. fn mutates the map in place and returns true when the map
// changed and must be written back. The whole hash is rewritten atomically
// (DEL + HSET in one MULTI) so removals are never left behind. On contention
// the read-apply-write cycle is retried with a fresh snapshot.
func (s *SeatStore) Mutate(ctx context.Context, roomID string, fn func(seats map[int]model.SeatAssignment) (bool, error)) error {
	key := roomSeatsKey(roomID)

	txn := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		seats := s.decodeRoom(ctx, roomID, fields)

		changed, err := fn(seats)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(seats) > 0 {
				values := make(map[string]any, len(seats))
				for seatID, a := range seats {
					body, err := json.Marshal(a)
					if err != nil {
						return err
					}
					values[strconv.Itoa(seatID)] = body
				}
				pipe.HSet(ctx, key, values)
			}
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

// decodeRoom turns raw hash fields into assignments, deleting any field that
// cannot be decoded. Seat state is always re-creatable from user action, so
// a corrupt field is cheaper gone than fatal.
func (s *SeatStore) decodeRoom(ctx context.Context, roomID string, fields map[string]string) map[int]model.SeatAssignment {
	seats := make(map[int]model.SeatAssignment, len(fields))
	for field, raw := range fields {
		seatID, err := strconv.Atoi(field)
		if err != nil {
			log.Printf("seat-store: room %s has non-numeric seat field %q, deleting", roomID, field)
			s.rdb.HDel(ctx, roomSeatsKey(roomID), field)
			continue
		}
		var a model.SeatAssignment
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			log.Printf("seat-store: room %s seat %d is corrupt, deleting: %v", roomID, seatID, err)
			s.rdb.HDel(ctx, roomSeatsKey(roomID), field)
			continue
		}
		seats[seatID] = a
	}
	return seats
}

// NextGeneration draws the next value from the store-wide session counter.
// INCR is atomic across process instances, which is the whole point: two
// sessions created anywhere can always be ordered.
func (s *SeatStore) NextGeneration(ctx context.Context) (int64, error) {
	return s.rdb.Incr(ctx, sessionCounterKey).Result()
}
