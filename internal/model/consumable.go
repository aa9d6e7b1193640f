package model

import "time"

// Consumable is a served item being consumed at a seat. Remaining time only
// ever decreases; when it hits zero the entry is removed. Seat changes
// rewrite SeatID without touching the timer.
//
// Fields:
//
//	OrderID          – order that produced the entry; at most one entry per order.
//	ItemID           – identifier of the served item.
//	ItemName         – display name, denormalized for broadcasts.
//	Category         – item category.
//	StartedAt        – when consumption began (the SERVED transition).
//	TotalSeconds     – full consumption window.
//	RemainingSeconds – seconds left; 0 ≤ remaining ≤ total.
//	RoomID, SeatID   – where the item is displayed.
//	UserID           – consuming user.
//	AssetRef         – optional generated asset reference.
type Consumable struct {
	OrderID          string    `json:"order_id"`
	ItemID           string    `json:"item_id"`
	ItemName         string    `json:"item_name"`
	Category         Category  `json:"category"`
	StartedAt        time.Time `json:"started_at"`
	TotalSeconds     int       `json:"total_seconds"`
	RemainingSeconds int       `json:"remaining_seconds"`
	RoomID           string    `json:"room_id"`
	SeatID           int       `json:"seat_id"`
	UserID           string    `json:"user_id"`
	AssetRef         string    `json:"asset_ref,omitempty"`
}
