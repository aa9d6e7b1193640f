// Package engine implements the concurrent session/state-synchronization
// core: seat occupancy, the order lifecycle, timed consumables, avatar
// presence and activity-based eviction. All state lives in the shared store;
// the engine's periodic sweeps and user-initiated calls mutate it and fan
// deltas out through the broadcaster. Multiple process instances may run the
// same sweeps against the same store.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/virtual-cafe/internal/broadcast"
	"github.com/iliyamo/virtual-cafe/internal/model"
	"github.com/iliyamo/virtual-cafe/internal/store"
)

// SeatStore is the persistence seam for room occupancy maps.
type SeatStore interface {
	Room(ctx context.Context, roomID string) (map[int]model.SeatAssignment, error)
	Mutate(ctx context.Context, roomID string, fn func(seats map[int]model.SeatAssignment) (bool, error)) error
	NextGeneration(ctx context.Context) (int64, error)
}

// OrderStore is the persistence seam for orders, user order sets, the FIFO
// queue and the preparer slot.
type OrderStore interface {
	SaveOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
	AllOrders(ctx context.Context) ([]model.Order, error)
	UserOrders(ctx context.Context, userID string) ([]string, error)
	MutateUserOrders(ctx context.Context, userID string, fn func(ids []string) ([]string, error)) error
	EnqueueOrder(ctx context.Context, orderID string) error
	RequeueOrder(ctx context.Context, orderID string) error
	DequeueOrder(ctx context.Context) (string, error)
	QueueDepth(ctx context.Context) (int64, error)
	ClaimPreparing(ctx context.Context, orderID string) (bool, error)
	Preparing(ctx context.Context) (string, error)
	ClearPreparing(ctx context.Context) error
}

// ConsumableStore is the persistence seam for per-user consumable lists.
// Mutate must serialize concurrent read-apply-write cycles on the same list.
type ConsumableStore interface {
	List(ctx context.Context, roomID, userID string) ([]model.Consumable, error)
	Mutate(ctx context.Context, roomID, userID string, fn func(list []model.Consumable) ([]model.Consumable, error)) error
	ExpireAfter(ctx context.Context, roomID, userID string, grace time.Duration) error
	Restore(ctx context.Context, roomID, userID string) error
	Owners(ctx context.Context) ([]store.Owner, error)
}

// ActivityStore is the persistence seam for activity records, avatar states
// and chat marks.
type ActivityStore interface {
	Get(ctx context.Context, userID string) (*model.UserActivity, error)
	Save(ctx context.Context, a *model.UserActivity) error
	Delete(ctx context.Context, userID string) error
	All(ctx context.Context) ([]model.UserActivity, error)
	Avatar(ctx context.Context, userID string) (model.AvatarState, error)
	SetAvatar(ctx context.Context, userID string, state model.AvatarState) error
	SetChatMark(ctx context.Context, userID string, at time.Time) error
	ChatMark(ctx context.Context, userID string) (time.Time, error)
}

// Catalog provides menu lookups and records generated items.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*model.MenuItem, error)
	ListActive(ctx context.Context) ([]model.MenuItem, error)
	InsertGenerated(ctx context.Context, it *model.MenuItem) error
}

// Notifier delivers room-level system notifications to the out-of-band feed.
type Notifier interface {
	NotifyRoom(ctx context.Context, roomID, kind, message string) error
}

// CooldownGate rate-limits restoration broadcasts per (user, room).
type CooldownGate interface {
	Allow(ctx context.Context, userID, roomID string) bool
}

// Config carries every interval, window and limit the engine uses. Zero
// values are replaced by the defaults below.
type Config struct {
	RoomIDs      []string
	SeatsPerRoom int

	QueueTickInterval           time.Duration
	ServedSweepInterval         time.Duration
	ConsumableTickInterval      time.Duration
	ConsumableBroadcastInterval time.Duration
	IdleSweepInterval           time.Duration
	EatingSweepInterval         time.Duration
	EvictionSweepInterval       time.Duration
	GhostSeatSweepInterval      time.Duration

	ChatHold          time.Duration // CHATTING countdown before re-evaluation
	IdleAfter         time.Duration // inactivity before IDLE
	InactivityTimeout time.Duration // inactivity before eviction
	LeaveGrace        time.Duration // consumable retention after leave
	ConsumeGrace      time.Duration // CONSUMING retention before removal
}

func (c Config) withDefaults() Config {
	if len(c.RoomIDs) == 0 {
		c.RoomIDs = []string{"lobby"}
	}
	if c.SeatsPerRoom <= 0 {
		c.SeatsPerRoom = 12
	}
	def := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	def(&c.QueueTickInterval, 5*time.Second)
	def(&c.ServedSweepInterval, 5*time.Minute)
	def(&c.ConsumableTickInterval, time.Second)
	def(&c.ConsumableBroadcastInterval, 10*time.Second)
	def(&c.IdleSweepInterval, 30*time.Second)
	def(&c.EatingSweepInterval, 5*time.Second)
	def(&c.EvictionSweepInterval, 2*time.Minute)
	def(&c.GhostSeatSweepInterval, 2*time.Minute)
	def(&c.ChatHold, 10*time.Second)
	def(&c.IdleAfter, 30*time.Second)
	def(&c.InactivityTimeout, 10*time.Minute)
	def(&c.LeaveGrace, 5*time.Minute)
	def(&c.ConsumeGrace, 30*time.Second)
	return c
}

// Deps bundles the collaborators an Engine needs.
type Deps struct {
	Seats       SeatStore
	Orders      OrderStore
	Consumables ConsumableStore
	Activity    ActivityStore
	Catalog     Catalog
	Generator   ItemSource
	Broadcast   broadcast.Broadcaster
	Notifier    Notifier
	Cooldown    CooldownGate
}

// Engine owns the five components and their periodic sweeps.
type Engine struct {
	cfg Config

	Seats       *SeatRegistry
	OrderFlow   *OrderLifecycle
	Consumables *ConsumableTracker
	Avatars     *AvatarStateMachine
	Activity    *ActivityMonitor
}

// New wires the components together. now is injectable for tests; pass nil
// for time.Now.
func New(cfg Config, d Deps, now func() time.Time) *Engine {
	cfg = cfg.withDefaults()
	if now == nil {
		now = time.Now
	}

	seats := NewSeatRegistry(d.Seats, d.Broadcast, cfg.SeatsPerRoom, now)
	consumables := NewConsumableTracker(d.Consumables, d.Broadcast, d.Cooldown, cfg.LeaveGrace, now)
	orders := NewOrderLifecycle(d.Orders, d.Catalog, d.Generator, seats, consumables, d.Broadcast, cfg.ConsumeGrace, now)
	avatars := NewAvatarStateMachine(d.Activity, consumables, d.Broadcast, cfg.ChatHold, cfg.IdleAfter, now)
	activity := NewActivityMonitor(d.Activity, seats, d.Notifier, cfg.RoomIDs, cfg.InactivityTimeout, now)

	return &Engine{
		cfg:         cfg,
		Seats:       seats,
		OrderFlow:   orders,
		Consumables: consumables,
		Avatars:     avatars,
		Activity:    activity,
	}
}

// Run starts every periodic sweep and blocks until ctx is cancelled. A sweep
// iteration that fails is logged and retried on the next tick; nothing here
// ever takes the scheduler down.
func (e *Engine) Run(ctx context.Context) {
	sweeps := []struct {
		name     string
		interval time.Duration
		fn       func(context.Context) error
	}{
		{"order-queue-tick", e.cfg.QueueTickInterval, e.OrderFlow.QueueTick},
		{"served-order-sweep", e.cfg.ServedSweepInterval, e.OrderFlow.ServedSweep},
		{"consumable-tick", e.cfg.ConsumableTickInterval, e.Consumables.Tick},
		{"consumable-broadcast", e.cfg.ConsumableBroadcastInterval, e.Consumables.Broadcast},
		{"avatar-idle-sweep", e.cfg.IdleSweepInterval, e.Avatars.IdleSweep},
		{"avatar-eating-sweep", e.cfg.EatingSweepInterval, e.Avatars.EatingSweep},
		{"activity-eviction-sweep", e.cfg.EvictionSweepInterval, e.Activity.EvictionSweep},
		{"ghost-seat-sweep", e.cfg.GhostSeatSweepInterval, e.Activity.GhostSeatSweep},
	}

	var wg sync.WaitGroup
	for _, s := range sweeps {
		wg.Add(1)
		go func(name string, interval time.Duration, fn func(context.Context) error) {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					log.Printf("engine: stopping %s", name)
					return
				case <-ticker.C:
					if err := fn(ctx); err != nil {
						log.Printf("engine: %s failed, retrying next tick: %v", name, err)
					}
				}
			}
		}(s.name, s.interval, s.fn)
	}
	wg.Wait()
}
