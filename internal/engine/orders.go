package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/iliyamo/virtual-cafe/internal/broadcast"
	"github.com/iliyamo/virtual-cafe/internal/generator"
	"github.com/iliyamo/virtual-cafe/internal/model"
	"github.com/iliyamo/virtual-cafe/internal/store"
)

// ItemSource produces an item for a free-form request. Satisfied by
// *generator.ItemGenerator; the indirection keeps the external generator out
// of lifecycle tests.
type ItemSource interface {
	Generate(ctx context.Context, catalogSummary, request string) model.MenuItem
}

// OrderObserver is notified after every persisted order status change.
// Presentation-level status displays subscribe here instead of being wired
// into the lifecycle.
type OrderObserver interface {
	OrderStatusChanged(o model.Order)
}

// OrderLifecycle owns the single-preparer order pipeline:
//
//	ORDERED -> PREPARING -> READY -> SERVED -> CONSUMING -> removed
//
// At most one order is preparing system-wide; everything else waits in a
// FIFO queue. The queue tick advances the pipeline, the served sweep
// force-completes orders whose consumption end was lost.
type OrderLifecycle struct {
	orders       OrderStore
	menu         Catalog
	items        ItemSource
	seats        *SeatRegistry
	consumables  *ConsumableTracker
	bc           broadcast.Broadcaster
	consumeGrace time.Duration
	now          func() time.Time

	mu        sync.Mutex
	observers []OrderObserver
}

// NewOrderLifecycle wires the lifecycle to its collaborators.
func NewOrderLifecycle(os OrderStore, menu Catalog, items ItemSource, seats *SeatRegistry, consumables *ConsumableTracker, bc broadcast.Broadcaster, consumeGrace time.Duration, now func() time.Time) *OrderLifecycle {
	return &OrderLifecycle{
		orders:       os,
		menu:         menu,
		items:        items,
		seats:        seats,
		consumables:  consumables,
		bc:           bc,
		consumeGrace: consumeGrace,
		now:          now,
	}
}

// Observe registers a status observer. Safe to call before Run starts.
func (l *OrderLifecycle) Observe(obs OrderObserver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, obs)
}

// PlaceOrder enqueues a catalog item for the user. Returns
// store.ErrItemNotFound when the item does not exist.
func (l *OrderLifecycle) PlaceOrder(ctx context.Context, userID, displayName, roomID, itemID string, seatID int) (*model.Order, error) {
	item, err := l.menu.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return l.enqueue(ctx, userID, displayName, roomID, seatID, *item)
}

// PlaceFreeformOrder asks the item generator to invent an item for the
// request and enqueues it exactly like a catalog order. Generator failures
// degrade to keyword synthesis inside the source; the order itself cannot
// fail on generation. Asset generation for the item happens out of band and
// attaches to the order later.
func (l *OrderLifecycle) PlaceFreeformOrder(ctx context.Context, userID, displayName, roomID, request string, seatID int) (*model.Order, error) {
	summary := ""
	if catalog, err := l.menu.ListActive(ctx); err == nil {
		summary = generator.Summarize(catalog)
	}
	item := l.items.Generate(ctx, summary, request)
	if err := l.menu.InsertGenerated(ctx, &item); err != nil {
		// Audit row only; the order goes ahead regardless.
		log.Printf("orders: recording generated item %q failed: %v", item.Name, err)
	}
	return l.enqueue(ctx, userID, displayName, roomID, seatID, item)
}

func (l *OrderLifecycle) enqueue(ctx context.Context, userID, displayName, roomID string, seatID int, item model.MenuItem) (*model.Order, error) {
	o := &model.Order{
		ID:          uuid.NewString(),
		UserID:      userID,
		DisplayName: displayName,
		RoomID:      roomID,
		Item:        item,
		Status:      model.OrderStatusOrdered,
		OrderedAt:   l.now(),
		SeatID:      seatID,
	}
	if err := l.orders.SaveOrder(ctx, o); err != nil {
		return nil, err
	}
	err := l.orders.MutateUserOrders(ctx, userID, func(ids []string) ([]string, error) {
		return append(ids, o.ID), nil
	})
	if err != nil {
		return nil, err
	}
	if err := l.orders.EnqueueOrder(ctx, o.ID); err != nil {
		return nil, err
	}
	l.notify(*o)
	return o, nil
}

// QueueTick advances the pipeline one step. If the preparing order's
// estimated-ready time has passed it becomes READY and immediately SERVED,
// spawning a consumable at the user's current seat (original seat when the
// user is standing), and the preparer slot is freed. Then, if the slot is
// free and the queue non-empty, the head starts preparing.
func (l *OrderLifecycle) QueueTick(ctx context.Context) error {
	if err := l.finishPreparing(ctx); err != nil {
		return err
	}
	return l.startNext(ctx)
}

func (l *OrderLifecycle) finishPreparing(ctx context.Context) error {
	prepID, err := l.orders.Preparing(ctx)
	if err != nil || prepID == "" {
		return err
	}
	o, err := l.orders.GetOrder(ctx, prepID)
	if err == store.ErrNotFound {
		// The record expired or was deleted under us; free the slot so the
		// queue is not wedged forever.
		return l.orders.ClearPreparing(ctx)
	}
	if err != nil {
		return err
	}
	if l.now().Before(o.EstimatedReadyAt) {
		return nil
	}

	if err := l.transition(ctx, o, model.OrderStatusReady); err != nil {
		return err
	}
	if err := l.serve(ctx, o); err != nil {
		return err
	}
	return l.orders.ClearPreparing(ctx)
}

// serve moves a READY order to SERVED and creates its consumable. The seat
// is the user's current one; if the user stood up mid-preparation the
// order's original seat is used so the item still lands somewhere visible.
func (l *OrderLifecycle) serve(ctx context.Context, o *model.Order) error {
	o.ServedAt = l.now()
	if err := l.transition(ctx, o, model.OrderStatusServed); err != nil {
		return err
	}
	seatID, err := l.seats.GetUserSeat(ctx, o.RoomID, o.UserID)
	if err != nil || seatID == 0 {
		seatID = o.SeatID
	}
	if err := l.consumables.Add(ctx, o.RoomID, o.UserID, seatID, o.ID, o.Item, o.AssetRef); err != nil {
		log.Printf("orders: consumable for order %s failed: %v", o.ID, err)
	}
	return nil
}

func (l *OrderLifecycle) startNext(ctx context.Context) error {
	prepID, err := l.orders.Preparing(ctx)
	if err != nil || prepID != "" {
		return err
	}
	nextID, err := l.orders.DequeueOrder(ctx)
	if err != nil || nextID == "" {
		return err
	}
	claimed, err := l.orders.ClaimPreparing(ctx, nextID)
	if err != nil {
		return err
	}
	if !claimed {
		// Another instance claimed the slot between our check and ours; put
		// the order back at the head.
		return l.orders.RequeueOrder(ctx, nextID)
	}
	o, err := l.orders.GetOrder(ctx, nextID)
	if err == store.ErrNotFound {
		return l.orders.ClearPreparing(ctx)
	}
	if err != nil {
		return err
	}
	o.EstimatedReadyAt = l.now().Add(time.Duration(o.Item.PreparationSeconds) * time.Second)
	return l.transition(ctx, o, model.OrderStatusPreparing)
}

// CompleteOrder moves a SERVED order to CONSUMING and schedules its removal
// after the grace window. Only the owner may complete an order.
func (l *OrderLifecycle) CompleteOrder(ctx context.Context, userID, orderID string) error {
	o, err := l.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o.UserID != userID {
		return store.ErrForbidden
	}
	if o.Status != model.OrderStatusServed {
		return store.ErrNotFound
	}
	if err := l.transition(ctx, o, model.OrderStatusConsuming); err != nil {
		return err
	}
	time.AfterFunc(l.consumeGrace, func() {
		if err := l.removeConsumed(context.Background(), orderID); err != nil {
			log.Printf("orders: removing consumed order %s failed: %v", orderID, err)
		}
	})
	return nil
}

// removeConsumed deletes a consumed order once its grace window passes. The
// stale check (still CONSUMING) stands in for cancelling the timer.
func (l *OrderLifecycle) removeConsumed(ctx context.Context, orderID string) error {
	o, err := l.orders.GetOrder(ctx, orderID)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if o.Status != model.OrderStatusConsuming {
		return nil
	}
	if err := l.orders.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	return l.orders.MutateUserOrders(ctx, o.UserID, func(ids []string) ([]string, error) {
		return lo.Without(ids, orderID), nil
	})
}

// ServedSweep force-completes every SERVED order whose consumption window
// has fully elapsed. This is the safety net for consumption-end events lost
// to disconnects or restarts; without it an order could sit SERVED forever.
func (l *OrderLifecycle) ServedSweep(ctx context.Context) error {
	all, err := l.orders.AllOrders(ctx)
	if err != nil {
		return err
	}
	now := l.now()
	for i := range all {
		o := all[i]
		if o.Status != model.OrderStatusServed {
			continue
		}
		if now.Sub(o.ServedAt) <= time.Duration(o.Item.ConsumptionSeconds)*time.Second {
			continue
		}
		if err := l.transition(ctx, &o, model.OrderStatusConsuming); err != nil {
			log.Printf("orders: sweep force-complete of %s failed: %v", o.ID, err)
			continue
		}
		if err := l.removeConsumed(ctx, o.ID); err != nil {
			log.Printf("orders: sweep removal of %s failed: %v", o.ID, err)
		}
	}
	return nil
}

// RestoreUserOrders replays a reconnecting user's persisted orders. SERVED
// orders whose window already ran out are marked CONSUMING and lose whatever
// consumable entry they left behind; the rest get their consumable back at
// the user's current seat with the elapsed time honored, not reset.
func (l *OrderLifecycle) RestoreUserOrders(ctx context.Context, userID, roomID string, seatID int) ([]model.Order, error) {
	ids, err := l.orders.UserOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	var restored []model.Order
	missing := map[string]bool{}
	for _, id := range ids {
		o, err := l.orders.GetOrder(ctx, id)
		if err == store.ErrNotFound {
			missing[id] = true
			continue
		}
		if err != nil {
			return nil, err
		}
		if o.Status == model.OrderStatusServed {
			elapsed := l.now().Sub(o.ServedAt)
			if elapsed > time.Duration(o.Item.ConsumptionSeconds)*time.Second {
				if err := l.transition(ctx, o, model.OrderStatusConsuming); err != nil {
					return nil, err
				}
			}
			// AddRestored reconciles against the entry the serve already
			// persisted: in-window it replaces, past-window it removes.
			if err := l.consumables.AddRestored(ctx, roomID, userID, seatID, o.ID, o.Item, o.AssetRef, o.ServedAt); err != nil {
				log.Printf("orders: restoring consumable for %s failed: %v", o.ID, err)
			}
		}
		restored = append(restored, *o)
	}
	if len(missing) > 0 {
		err := l.orders.MutateUserOrders(ctx, userID, func(ids []string) ([]string, error) {
			return lo.Reject(ids, func(id string, _ int) bool { return missing[id] }), nil
		})
		if err != nil {
			return nil, err
		}
	}
	return restored, nil
}

// QueueInfo reports queue depth and the order currently in the preparer
// slot, for the introspection surface.
func (l *OrderLifecycle) QueueInfo(ctx context.Context) (depth int64, preparing *model.Order, err error) {
	depth, err = l.orders.QueueDepth(ctx)
	if err != nil {
		return 0, nil, err
	}
	prepID, err := l.orders.Preparing(ctx)
	if err != nil || prepID == "" {
		return depth, nil, err
	}
	o, err := l.orders.GetOrder(ctx, prepID)
	if err == store.ErrNotFound {
		return depth, nil, nil
	}
	return depth, o, err
}

// transition advances an order one status forward, persists it, and tells
// the world. Regressions and skips are programming errors and refused.
func (l *OrderLifecycle) transition(ctx context.Context, o *model.Order, next model.OrderStatus) error {
	if !o.Status.CanAdvanceTo(next) {
		log.Printf("orders: refusing transition %s -> %s for %s", o.Status, next, o.ID)
		return nil
	}
	o.Status = next
	if err := l.orders.SaveOrder(ctx, o); err != nil {
		return err
	}
	l.notify(*o)
	return nil
}

func (l *OrderLifecycle) notify(o model.Order) {
	l.mu.Lock()
	observers := make([]OrderObserver, len(l.observers))
	copy(observers, l.observers)
	l.mu.Unlock()
	for _, obs := range observers {
		obs.OrderStatusChanged(o)
	}
	_ = l.bc.Publish(o.RoomID, broadcast.TopicOrders, broadcast.Delta{
		Type:      "order_status",
		RoomID:    o.RoomID,
		UserID:    o.UserID,
		SeatID:    o.SeatID,
		Payload:   o,
		Timestamp: l.now(),
	})
}
