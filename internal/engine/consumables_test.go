package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/virtual-cafe/internal/broadcast"
	"github.com/iliyamo/virtual-cafe/internal/model"
)

func newTestTracker(t *testing.T) (*ConsumableTracker, *fakeConsumableStore, *fakeBroadcaster, *fakeClock) {
	t.Helper()
	cs := newFakeConsumableStore()
	bc := &fakeBroadcaster{}
	clock := newFakeClock()
	return NewConsumableTracker(cs, bc, &fakeCooldown{}, 5*time.Minute, clock.Now), cs, bc, clock
}

func testItem(consumption int) model.MenuItem {
	return model.MenuItem{
		ID:                 "latte",
		Name:               "Latte",
		Category:           model.CategoryDrink,
		PreparationSeconds: 60,
		ConsumptionSeconds: consumption,
	}
}

func TestTickDecrementsAndRemoves(t *testing.T) {
	req := require.New(t)
	tr, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	req.NoError(tr.Add(ctx, "lobby", "u1", 2, "o1", testItem(3), ""))

	for i := 0; i < 2; i++ {
		req.NoError(tr.Tick(ctx))
		list, err := tr.store.List(ctx, "lobby", "u1")
		req.NoError(err)
		req.Len(list, 1)
		req.Equal(2-i, list[0].RemainingSeconds)
	}

	req.NoError(tr.Tick(ctx))
	list, err := tr.store.List(ctx, "lobby", "u1")
	req.NoError(err)
	req.Empty(list)
	req.False(tr.HasActive(ctx, "lobby", "u1"))
}

func TestTickNeverGoesNegative(t *testing.T) {
	req := require.New(t)
	tr, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	req.NoError(tr.Add(ctx, "lobby", "u1", 2, "o1", testItem(1), ""))
	for i := 0; i < 5; i++ {
		req.NoError(tr.Tick(ctx))
	}
	list, err := tr.store.List(ctx, "lobby", "u1")
	req.NoError(err)
	req.Empty(list)
}

func TestAddRestoredHonorsElapsedTime(t *testing.T) {
	req := require.New(t)
	tr, _, _, clock := newTestTracker(t)
	ctx := context.Background()

	started := clock.Now()
	clock.Advance(595 * time.Second)
	req.NoError(tr.AddRestored(ctx, "lobby", "u1", 2, "o1", testItem(600), "", started))

	list, err := tr.store.List(ctx, "lobby", "u1")
	req.NoError(err)
	req.Len(list, 1)
	req.Equal(5, list[0].RemainingSeconds)
}

func TestAddRestoredSkipsExpired(t *testing.T) {
	req := require.New(t)
	tr, _, _, clock := newTestTracker(t)
	ctx := context.Background()

	started := clock.Now()
	clock.Advance(601 * time.Second)
	req.NoError(tr.AddRestored(ctx, "lobby", "u1", 2, "o1", testItem(600), "", started))
	req.False(tr.HasActive(ctx, "lobby", "u1"))
}

func TestAddReplacesEntryForSameOrder(t *testing.T) {
	req := require.New(t)
	tr, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	req.NoError(tr.Add(ctx, "lobby", "u1", 2, "o1", testItem(600), ""))
	req.NoError(tr.Add(ctx, "lobby", "u1", 5, "o1", testItem(600), ""))

	list, err := tr.store.List(ctx, "lobby", "u1")
	req.NoError(err)
	req.Len(list, 1)
	req.Equal(5, list[0].SeatID)
}

func TestConcurrentTickAndAddLoseNothing(t *testing.T) {
	req := require.New(t)
	tr, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	req.NoError(tr.Add(ctx, "lobby", "u1", 2, "o1", testItem(600), ""))

	// A serve landing while the per-second tick rewrites the same list must
	// not be erased by the tick's write, nor the other way around.
	var wg sync.WaitGroup
	wg.Add(2)
	var tickErr, addErr error
	go func() {
		defer wg.Done()
		tickErr = tr.Tick(ctx)
	}()
	go func() {
		defer wg.Done()
		addErr = tr.Add(ctx, "lobby", "u1", 2, "o2", testItem(600), "")
	}()
	wg.Wait()
	req.NoError(tickErr)
	req.NoError(addErr)

	list, err := tr.store.List(ctx, "lobby", "u1")
	req.NoError(err)
	req.Len(list, 2)
}

func TestTransferSeatKeepsTimersAndPublishOrder(t *testing.T) {
	req := require.New(t)
	tr, _, bc, _ := newTestTracker(t)
	ctx := context.Background()

	req.NoError(tr.Add(ctx, "lobby", "u1", 2, "o1", testItem(300), ""))
	req.NoError(tr.Tick(ctx))
	before := len(bc.byTopic(broadcast.TopicConsumables))

	req.NoError(tr.TransferSeat(ctx, "lobby", "u1", 2, 7))

	list, err := tr.store.List(ctx, "lobby", "u1")
	req.NoError(err)
	req.Len(list, 1)
	req.Equal(7, list[0].SeatID)
	req.Equal(299, list[0].RemainingSeconds)

	// The old seat is cleared before the new seat is populated so no client
	// renders the item twice.
	events := bc.byTopic(broadcast.TopicConsumables)
	req.Len(events, before+2)
	empty := events[before]
	full := events[before+1]
	req.Equal(2, empty.delta.SeatID)
	req.Empty(empty.delta.Payload.([]model.Consumable))
	req.Equal(7, full.delta.SeatID)
	req.Len(full.delta.Payload.([]model.Consumable), 1)
}

func TestTransferSeatNoopWhenEmpty(t *testing.T) {
	req := require.New(t)
	tr, _, bc, _ := newTestTracker(t)
	ctx := context.Background()

	req.NoError(tr.TransferSeat(ctx, "lobby", "u1", 2, 7))
	req.Empty(bc.byTopic(broadcast.TopicConsumables))
}

func TestClearForLeaveAndRestore(t *testing.T) {
	req := require.New(t)
	tr, cs, bc, clock := newTestTracker(t)
	ctx := context.Background()

	req.NoError(tr.Add(ctx, "lobby", "u1", 2, "o1", testItem(600), ""))
	req.NoError(tr.ClearForLeave(ctx, "lobby", "u1", 2))

	// The record still exists behind a grace expiry while the published state
	// is empty.
	req.Len(cs.expires, 1)
	events := bc.byTopic(broadcast.TopicConsumables)
	last := events[len(events)-1]
	req.Empty(last.delta.Payload.([]model.Consumable))

	clock.Advance(30 * time.Second)
	kept, err := tr.RestoreForJoin(ctx, "lobby", "u1", 9)
	req.NoError(err)
	req.Len(kept, 1)
	req.Equal(9, kept[0].SeatID)
	req.Equal(570, kept[0].RemainingSeconds)
	req.Empty(cs.expires)
}

func TestRestoreForJoinDropsExpiredEntries(t *testing.T) {
	req := require.New(t)
	tr, _, _, clock := newTestTracker(t)
	ctx := context.Background()

	req.NoError(tr.Add(ctx, "lobby", "u1", 2, "o1", testItem(60), ""))
	req.NoError(tr.Add(ctx, "lobby", "u1", 2, "o2", testItem(600), ""))

	clock.Advance(90 * time.Second)
	kept, err := tr.RestoreForJoin(ctx, "lobby", "u1", 2)
	req.NoError(err)
	req.Len(kept, 1)
	req.Equal(510, kept[0].RemainingSeconds)
}

func TestRestoreForJoinSuppressedByCooldown(t *testing.T) {
	req := require.New(t)
	cs := newFakeConsumableStore()
	bc := &fakeBroadcaster{}
	clock := newFakeClock()
	tr := NewConsumableTracker(cs, bc, &fakeCooldown{deny: true}, 5*time.Minute, clock.Now)
	ctx := context.Background()

	req.NoError(tr.Add(ctx, "lobby", "u1", 2, "o1", testItem(600), ""))
	before := len(bc.byTopic(broadcast.TopicConsumables))

	kept, err := tr.RestoreForJoin(ctx, "lobby", "u1", 2)
	req.NoError(err)
	req.Len(kept, 1)
	// State is restored either way; only the republish is suppressed.
	req.Len(bc.byTopic(broadcast.TopicConsumables), before)
}
