package model

import "time"

// SeatAssignment records which user currently occupies a seat in a room.
// Within a room a seat holds at most one user and a user holds at most one
// seat; the registry enforces both directions on every mutation.
//
// Fields:
//
//	RoomID      – room the seat belongs to.
//	SeatID      – seat index within the room (1-based).
//	UserID      – occupying user.
//	DisplayName – name shown at the seat.
//	Generation  – monotonic generation of the session that took the seat,
//	              used to resolve ghost sessions on reconnect.
//	JoinedAt    – when the seat was taken.
type SeatAssignment struct {
	RoomID      string    `json:"room_id"`
	SeatID      int       `json:"seat_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Generation  int64     `json:"generation"`
	JoinedAt    time.Time `json:"joined_at"`
}
