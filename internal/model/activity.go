package model

import "time"

// UserActivity is the authoritative record of a user's presence in a room.
// It is created on the first action, refreshed on every action, and deleted
// by the activity monitor when the session goes stale. A user without an
// activity record does not exist as far as the engine is concerned.
//
// Fields:
//
//	UserID         – user identifier.
//	DisplayName    – last known display name.
//	RoomID         – room the user is present in.
//	CurrentSeat    – seat currently held, 0 when standing.
//	LastActivityAt – timestamp of the most recent action.
//	Active         – false once the user has announced a clean leave but is
//	                 still inside the reconnect grace window.
type UserActivity struct {
	UserID         string    `json:"user_id"`
	DisplayName    string    `json:"display_name"`
	RoomID         string    `json:"room_id"`
	CurrentSeat    int       `json:"current_seat"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Active         bool      `json:"active"`
}
