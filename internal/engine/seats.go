package engine

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/iliyamo/virtual-cafe/internal/broadcast"
	"github.com/iliyamo/virtual-cafe/internal/model"
	"github.com/iliyamo/virtual-cafe/internal/store"
)

// SeatRegistry owns the room/seat/user occupancy map. It enforces both
// directions of the uniqueness invariant (one user per seat, one seat per
// user within a room) and reconciles ghost sessions left behind by client
// reconnects. Every successful mutation publishes the room's full occupancy
// on the seat topic.
type SeatRegistry struct {
	seats        SeatStore
	bc           broadcast.Broadcaster
	seatsPerRoom int
	now          func() time.Time
}

// NewSeatRegistry returns a registry for rooms with seat indices in
// [1, seatsPerRoom].
func NewSeatRegistry(seats SeatStore, bc broadcast.Broadcaster, seatsPerRoom int, now func() time.Time) *SeatRegistry {
	return &SeatRegistry{seats: seats, bc: bc, seatsPerRoom: seatsPerRoom, now: now}
}

// NewSession mints a session with the next store-wide generation. Callers
// attach the generation to joins so the registry can order sessions for the
// same identity without parsing identifier formats.
func (r *SeatRegistry) NewSession(ctx context.Context, id string) (model.Session, error) {
	gen, err := r.seats.NextGeneration(ctx)
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{ID: id, Generation: gen, IssuedAt: r.now()}, nil
}

// JoinSeat seats a user. The seat must be in range. If the seat is held by a
// different user, the join only proceeds when the occupant looks like a
// ghost of the same person: identical display name and a strictly older
// session generation. The ghost is silently evicted. Any other occupant
// fails the join with store.ErrSeatOccupied. On success the user's previous
// seat in the room, if any, is released in the same atomic mutation.
func (r *SeatRegistry) JoinSeat(ctx context.Context, roomID string, seatID int, userID, displayName string, generation int64) error {
	if seatID < 1 || seatID > r.seatsPerRoom {
		return store.ErrInvalidSeat
	}

	var snapshot map[int]model.SeatAssignment
	err := r.seats.Mutate(ctx, roomID, func(seats map[int]model.SeatAssignment) (bool, error) {
		if occ, held := seats[seatID]; held && occ.UserID != userID {
			if occ.DisplayName != displayName || generation <= occ.Generation {
				return false, store.ErrSeatOccupied
			}
			// Same name, strictly older session: a reconnect beat the
			// teardown of its predecessor. Evict the ghost.
			delete(seats, seatID)
		}
		for sid, a := range seats {
			if a.UserID == userID && sid != seatID {
				delete(seats, sid)
			}
		}
		seats[seatID] = model.SeatAssignment{
			RoomID:      roomID,
			SeatID:      seatID,
			UserID:      userID,
			DisplayName: displayName,
			Generation:  generation,
			JoinedAt:    r.now(),
		}
		snapshot = copySeats(seats)
		return true, nil
	})
	if err != nil {
		return err
	}
	r.publishOccupancy(roomID, snapshot)
	return nil
}

// LeaveSeat releases whichever seat the user holds in the room. Returns
// false when the user held none.
func (r *SeatRegistry) LeaveSeat(ctx context.Context, roomID, userID string) (bool, error) {
	removed := false
	var snapshot map[int]model.SeatAssignment
	err := r.seats.Mutate(ctx, roomID, func(seats map[int]model.SeatAssignment) (bool, error) {
		for sid, a := range seats {
			if a.UserID == userID {
				delete(seats, sid)
				removed = true
			}
		}
		if removed {
			snapshot = copySeats(seats)
		}
		return removed, nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		r.publishOccupancy(roomID, snapshot)
	}
	return removed, nil
}

// GetOccupant returns the assignment for a seat, or nil when it is free.
func (r *SeatRegistry) GetOccupant(ctx context.Context, roomID string, seatID int) (*model.SeatAssignment, error) {
	seats, err := r.seats.Room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if a, ok := seats[seatID]; ok {
		return &a, nil
	}
	return nil, nil
}

// GetUserSeat returns the seat the user holds in the room, 0 when standing.
func (r *SeatRegistry) GetUserSeat(ctx context.Context, roomID, userID string) (int, error) {
	seats, err := r.seats.Room(ctx, roomID)
	if err != nil {
		return 0, err
	}
	for sid, a := range seats {
		if a.UserID == userID {
			return sid, nil
		}
	}
	return 0, nil
}

// ListRoom returns every assignment in the room ordered by seat index.
func (r *SeatRegistry) ListRoom(ctx context.Context, roomID string) ([]model.SeatAssignment, error) {
	seats, err := r.seats.Room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	list := lo.Values(seats)
	sort.Slice(list, func(i, j int) bool { return list[i].SeatID < list[j].SeatID })
	return list, nil
}

func (r *SeatRegistry) publishOccupancy(roomID string, seats map[int]model.SeatAssignment) {
	list := lo.Values(seats)
	sort.Slice(list, func(i, j int) bool { return list[i].SeatID < list[j].SeatID })
	_ = r.bc.Publish(roomID, broadcast.TopicSeats, broadcast.Delta{
		Type:      "seat_occupancy",
		RoomID:    roomID,
		Payload:   list,
		Timestamp: r.now(),
	})
}

func copySeats(seats map[int]model.SeatAssignment) map[int]model.SeatAssignment {
	out := make(map[int]model.SeatAssignment, len(seats))
	for k, v := range seats {
		out[k] = v
	}
	return out
}
