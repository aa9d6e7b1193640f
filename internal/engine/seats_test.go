package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/virtual-cafe/internal/broadcast"
	"github.com/iliyamo/virtual-cafe/internal/store"
)

func newTestRegistry(t *testing.T) (*SeatRegistry, *fakeSeatStore, *fakeBroadcaster, *fakeClock) {
	t.Helper()
	seats := newFakeSeatStore()
	bc := &fakeBroadcaster{}
	clock := newFakeClock()
	return NewSeatRegistry(seats, bc, 12, clock.Now), seats, bc, clock
}

func TestJoinSeatRejectsOutOfRange(t *testing.T) {
	req := require.New(t)
	reg, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	req.ErrorIs(reg.JoinSeat(ctx, "lobby", 0, "u1", "Mina", 1), store.ErrInvalidSeat)
	req.ErrorIs(reg.JoinSeat(ctx, "lobby", 13, "u1", "Mina", 1), store.ErrInvalidSeat)
}

func TestJoinSeatOccupiedByOtherUser(t *testing.T) {
	req := require.New(t)
	reg, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	req.NoError(reg.JoinSeat(ctx, "lobby", 3, "u1", "Mina", 1))
	err := reg.JoinSeat(ctx, "lobby", 3, "u2", "Theo", 2)
	req.ErrorIs(err, store.ErrSeatOccupied)

	occ, err := reg.GetOccupant(ctx, "lobby", 3)
	req.NoError(err)
	req.NotNil(occ)
	req.Equal("u1", occ.UserID)
}

func TestJoinSeatEvictsGhostWithNewerGeneration(t *testing.T) {
	req := require.New(t)
	reg, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	// Old session seated, then the same person reconnects under a fresh
	// user identifier with a newer generation.
	req.NoError(reg.JoinSeat(ctx, "lobby", 5, "u-old", "Mina", 1))
	req.NoError(reg.JoinSeat(ctx, "lobby", 5, "u-new", "Mina", 2))

	occ, err := reg.GetOccupant(ctx, "lobby", 5)
	req.NoError(err)
	req.Equal("u-new", occ.UserID)
	req.Equal(int64(2), occ.Generation)
}

func TestJoinSeatRefusesStaleGeneration(t *testing.T) {
	req := require.New(t)
	reg, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	req.NoError(reg.JoinSeat(ctx, "lobby", 5, "u-new", "Mina", 7))

	// A delayed join from the older session must not steal the seat back.
	err := reg.JoinSeat(ctx, "lobby", 5, "u-old", "Mina", 7)
	req.ErrorIs(err, store.ErrSeatOccupied)
	err = reg.JoinSeat(ctx, "lobby", 5, "u-old", "Mina", 3)
	req.ErrorIs(err, store.ErrSeatOccupied)
}

func TestJoinSeatReleasesPreviousSeat(t *testing.T) {
	req := require.New(t)
	reg, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	req.NoError(reg.JoinSeat(ctx, "lobby", 2, "u1", "Mina", 1))
	req.NoError(reg.JoinSeat(ctx, "lobby", 9, "u1", "Mina", 1))

	occ, err := reg.GetOccupant(ctx, "lobby", 2)
	req.NoError(err)
	req.Nil(occ)

	seat, err := reg.GetUserSeat(ctx, "lobby", "u1")
	req.NoError(err)
	req.Equal(9, seat)
}

func TestLeaveSeat(t *testing.T) {
	req := require.New(t)
	reg, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	removed, err := reg.LeaveSeat(ctx, "lobby", "u1")
	req.NoError(err)
	req.False(removed)

	req.NoError(reg.JoinSeat(ctx, "lobby", 4, "u1", "Mina", 1))
	removed, err = reg.LeaveSeat(ctx, "lobby", "u1")
	req.NoError(err)
	req.True(removed)

	seat, err := reg.GetUserSeat(ctx, "lobby", "u1")
	req.NoError(err)
	req.Equal(0, seat)
}

func TestJoinSeatPublishesFullOccupancy(t *testing.T) {
	req := require.New(t)
	reg, _, bc, _ := newTestRegistry(t)
	ctx := context.Background()

	req.NoError(reg.JoinSeat(ctx, "lobby", 1, "u1", "Mina", 1))
	req.NoError(reg.JoinSeat(ctx, "lobby", 2, "u2", "Theo", 2))

	events := bc.byTopic(broadcast.TopicSeats)
	req.Len(events, 2)
	req.Equal("seat_occupancy", events[1].delta.Type)
	req.Equal("lobby", events[1].roomID)
}

func TestListRoomOrderedBySeat(t *testing.T) {
	req := require.New(t)
	reg, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	req.NoError(reg.JoinSeat(ctx, "lobby", 8, "u1", "Mina", 1))
	req.NoError(reg.JoinSeat(ctx, "lobby", 3, "u2", "Theo", 2))
	req.NoError(reg.JoinSeat(ctx, "lobby", 11, "u3", "Ada", 3))

	list, err := reg.ListRoom(ctx, "lobby")
	req.NoError(err)
	req.Len(list, 3)
	req.Equal([]int{3, 8, 11}, []int{list[0].SeatID, list[1].SeatID, list[2].SeatID})
}

func TestNewSessionGenerationsIncrease(t *testing.T) {
	req := require.New(t)
	reg, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	s1, err := reg.NewSession(ctx, "s1")
	req.NoError(err)
	s2, err := reg.NewSession(ctx, "s2")
	req.NoError(err)
	req.Greater(s2.Generation, s1.Generation)
	req.True(s2.Newer(s1.Generation))
	req.False(s1.Newer(s2.Generation))
}
