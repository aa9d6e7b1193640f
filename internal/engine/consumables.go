package engine

import (
	"context"
	"log"
	"time"

	"github.com/samber/lo"

	"github.com/iliyamo/virtual-cafe/internal/broadcast"
	"github.com/iliyamo/virtual-cafe/internal/model"
)

// ConsumableTracker owns per-user, per-room timed consumption entries. The
// tick advances timers for every persisted list, connected user or not, so
// a disconnect never pauses anyone's drink. Leaves shorten the record to a
// grace window instead of deleting it; a quick rejoin gets everything back.
type ConsumableTracker struct {
	store      ConsumableStore
	bc         broadcast.Broadcaster
	cooldown   CooldownGate
	leaveGrace time.Duration
	now        func() time.Time
}

// NewConsumableTracker returns a tracker with the given leave-grace window.
func NewConsumableTracker(cs ConsumableStore, bc broadcast.Broadcaster, cooldown CooldownGate, leaveGrace time.Duration, now func() time.Time) *ConsumableTracker {
	return &ConsumableTracker{store: cs, bc: bc, cooldown: cooldown, leaveGrace: leaveGrace, now: now}
}

// Add records the consumable for a freshly served order with the item's full
// consumption window.
func (t *ConsumableTracker) Add(ctx context.Context, roomID, userID string, seatID int, orderID string, item model.MenuItem, assetRef string) error {
	return t.addWithStart(ctx, roomID, userID, seatID, orderID, item, assetRef, t.now())
}

// AddRestored records a consumable whose consumption began at startedAt,
// keeping the remaining time an earlier session had already burned down.
// Used by the order-restore path after a reconnect; a window that ran out
// while the user was away removes whatever entry the order left behind.
func (t *ConsumableTracker) AddRestored(ctx context.Context, roomID, userID string, seatID int, orderID string, item model.MenuItem, assetRef string, startedAt time.Time) error {
	return t.addWithStart(ctx, roomID, userID, seatID, orderID, item, assetRef, startedAt)
}

func (t *ConsumableTracker) addWithStart(ctx context.Context, roomID, userID string, seatID int, orderID string, item model.MenuItem, assetRef string, startedAt time.Time) error {
	remaining := item.ConsumptionSeconds - int(t.now().Sub(startedAt).Seconds())
	var (
		result  []model.Consumable
		changed bool
	)
	err := t.store.Mutate(ctx, roomID, userID, func(list []model.Consumable) ([]model.Consumable, error) {
		// At most one entry per order. The restore path can run after the
		// serve-time entry already persisted; replacing keeps reconnects from
		// doubling a drink up.
		kept := lo.Reject(list, func(c model.Consumable, _ int) bool { return c.OrderID == orderID })
		changed = len(kept) != len(list)
		if remaining > 0 {
			kept = append(kept, model.Consumable{
				OrderID:          orderID,
				ItemID:           item.ID,
				ItemName:         item.Name,
				Category:         item.Category,
				StartedAt:        startedAt,
				TotalSeconds:     item.ConsumptionSeconds,
				RemainingSeconds: remaining,
				RoomID:           roomID,
				SeatID:           seatID,
				UserID:           userID,
				AssetRef:         assetRef,
			})
			changed = true
		}
		result = kept
		return kept, nil
	})
	if err != nil {
		return err
	}
	if changed {
		t.publish(roomID, userID, seatID, result)
	}
	return nil
}

// Tick decrements every persisted consumable by one second, removes entries
// that reach zero, and publishes updated lists for owners whose state
// changed. A failure on one owner is logged and does not stop the rest.
func (t *ConsumableTracker) Tick(ctx context.Context) error {
	owners, err := t.store.Owners(ctx)
	if err != nil {
		return err
	}
	for _, o := range owners {
		if err := t.tickOwner(ctx, o.RoomID, o.UserID); err != nil {
			log.Printf("consumables: tick for %s/%s failed: %v", o.RoomID, o.UserID, err)
		}
	}
	return nil
}

func (t *ConsumableTracker) tickOwner(ctx context.Context, roomID, userID string) error {
	var (
		result  []model.Consumable
		changed bool
	)
	err := t.store.Mutate(ctx, roomID, userID, func(list []model.Consumable) ([]model.Consumable, error) {
		kept := make([]model.Consumable, 0, len(list))
		for _, c := range list {
			c.RemainingSeconds--
			if c.RemainingSeconds <= 0 {
				continue
			}
			kept = append(kept, c)
		}
		result = kept
		changed = len(list) > 0
		return kept, nil
	})
	if err != nil || !changed {
		return err
	}
	seatID := 0
	if len(result) > 0 {
		seatID = result[0].SeatID
	}
	t.publish(roomID, userID, seatID, result)
	return nil
}

// Broadcast re-publishes the full consumable state of every owner with
// active entries. Coarse updates for clients that do not follow the
// per-second stream.
func (t *ConsumableTracker) Broadcast(ctx context.Context) error {
	owners, err := t.store.Owners(ctx)
	if err != nil {
		return err
	}
	for _, o := range owners {
		list, err := t.store.List(ctx, o.RoomID, o.UserID)
		if err != nil {
			log.Printf("consumables: broadcast read for %s/%s failed: %v", o.RoomID, o.UserID, err)
			continue
		}
		if len(list) == 0 {
			continue
		}
		t.publish(o.RoomID, o.UserID, list[0].SeatID, list)
	}
	return nil
}

// ClearForLeave hides the user's consumables without destroying them: the
// record's lifetime shrinks to the grace window and an empty status goes out
// so the UI clears the seat. A rejoin inside the window restores everything.
func (t *ConsumableTracker) ClearForLeave(ctx context.Context, roomID, userID string, seatID int) error {
	if err := t.store.ExpireAfter(ctx, roomID, userID, t.leaveGrace); err != nil {
		return err
	}
	t.publish(roomID, userID, seatID, nil)
	return nil
}

// RestoreForJoin cancels a pending grace expiry, drops entries whose window
// ran out while the user was away, moves survivors to the new seat with
// their remaining time untouched, and republishes. The republish is gated by
// the restoration cooldown to keep rapid reconnects from storming the room.
func (t *ConsumableTracker) RestoreForJoin(ctx context.Context, roomID, userID string, newSeatID int) ([]model.Consumable, error) {
	if err := t.store.Restore(ctx, roomID, userID); err != nil {
		return nil, err
	}
	now := t.now()
	var kept []model.Consumable
	err := t.store.Mutate(ctx, roomID, userID, func(list []model.Consumable) ([]model.Consumable, error) {
		kept = lo.FilterMap(list, func(c model.Consumable, _ int) (model.Consumable, bool) {
			remaining := c.TotalSeconds - int(now.Sub(c.StartedAt).Seconds())
			if remaining <= 0 {
				return c, false
			}
			if remaining < c.RemainingSeconds {
				c.RemainingSeconds = remaining
			}
			c.SeatID = newSeatID
			return c, true
		})
		return kept, nil
	})
	if err != nil {
		return nil, err
	}
	if t.cooldown == nil || t.cooldown.Allow(ctx, userID, roomID) {
		t.publish(roomID, userID, newSeatID, kept)
	}
	return kept, nil
}

// TransferSeat moves all of a user's consumables to a new seat, timers
// untouched. The old seat's empty state is published before the new seat's
// populated state so no client ever renders the item at two seats at once.
func (t *ConsumableTracker) TransferSeat(ctx context.Context, roomID, userID string, oldSeatID, newSeatID int) error {
	var moved []model.Consumable
	err := t.store.Mutate(ctx, roomID, userID, func(list []model.Consumable) ([]model.Consumable, error) {
		for i := range list {
			list[i].SeatID = newSeatID
		}
		moved = list
		return list, nil
	})
	if err != nil || len(moved) == 0 {
		return err
	}
	t.publish(roomID, userID, oldSeatID, nil)
	t.publish(roomID, userID, newSeatID, moved)
	return nil
}

// HasActive reports whether the user currently holds any live consumable.
// The avatar state machine uses this for its eating/idle priority rules.
func (t *ConsumableTracker) HasActive(ctx context.Context, roomID, userID string) bool {
	list, err := t.store.List(ctx, roomID, userID)
	return err == nil && len(list) > 0
}

func (t *ConsumableTracker) publish(roomID, userID string, seatID int, list []model.Consumable) {
	if list == nil {
		list = []model.Consumable{}
	}
	_ = t.bc.Publish(roomID, broadcast.TopicConsumables, broadcast.Delta{
		Type:      "consumable_status",
		RoomID:    roomID,
		UserID:    userID,
		SeatID:    seatID,
		Payload:   list,
		Timestamp: t.now(),
	})
}
