package model

import "time"

// OrderStatus is the lifecycle state of an order. Statuses only ever move
// forward: ORDERED, PREPARING, READY, SERVED, CONSUMING, after which the
// order is swept away.
type OrderStatus string

const (
	OrderStatusOrdered   OrderStatus = "ORDERED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusServed    OrderStatus = "SERVED"
	OrderStatusConsuming OrderStatus = "CONSUMING"
)

// rank maps each status to its position in the lifecycle so transitions can
// be checked for regression.
var rank = map[OrderStatus]int{
	OrderStatusOrdered:   0,
	OrderStatusPreparing: 1,
	OrderStatusReady:     2,
	OrderStatusServed:    3,
	OrderStatusConsuming: 4,
}

// CanAdvanceTo reports whether moving from s to next is a single forward
// step. Skipping states or moving backwards is never allowed.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	rs, ok1 := rank[s]
	rn, ok2 := rank[next]
	return ok1 && ok2 && rn == rs+1
}

// Order tracks a single user request through the preparation pipeline.
// Orders are owned exclusively by the order lifecycle component; nothing
// else mutates them.
//
// Fields:
//
//	ID               – unique order identifier.
//	UserID           – ordering user.
//	DisplayName      – name shown on status broadcasts.
//	RoomID           – room the order was placed from.
//	Item             – the ordered item, catalog or generated.
//	Status           – current lifecycle state.
//	OrderedAt        – placement timestamp.
//	EstimatedReadyAt – set when preparation starts: now + PreparationSeconds.
//	ServedAt         – set on the SERVED transition.
//	SeatID           – seat the order was placed from; serving prefers the
//	                   user's current seat and falls back to this one.
//	AssetRef         – reference to an asynchronously generated visual asset,
//	                   empty until the asset pipeline attaches one.
type Order struct {
	ID               string      `json:"id"`
	UserID           string      `json:"user_id"`
	DisplayName      string      `json:"display_name"`
	RoomID           string      `json:"room_id"`
	Item             MenuItem    `json:"item"`
	Status           OrderStatus `json:"status"`
	OrderedAt        time.Time   `json:"ordered_at"`
	EstimatedReadyAt time.Time   `json:"estimated_ready_at,omitzero"`
	ServedAt         time.Time   `json:"served_at,omitzero"`
	SeatID           int         `json:"seat_id"`
	AssetRef         string      `json:"asset_ref,omitempty"`
}
