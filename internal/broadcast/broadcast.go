// Package broadcast fans state-change deltas out to room-scoped topics.
// Delivery is best-effort and at-most-once: subscribers must treat every
// delta as authoritative at publish time, not as an entry in an ordered log.
package broadcast

import "time"

// Topic names. Each is scoped per room when published.
const (
	TopicSeats       = "seats"
	TopicConsumables = "consumables"
	TopicAvatars     = "avatars"
	TopicOrders      = "orders"
)

// Delta is one state-change message. Payload carries the topic-specific body
// (occupancy map, consumable list, avatar state, order status).
type Delta struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id,omitempty"`
	SeatID    int       `json:"seat_id,omitempty"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster delivers a delta to every subscriber of a room topic.
// Implementations must not block the caller beyond their own I/O; a failed
// publish is the subscriber's loss, never the mutation's.
type Broadcaster interface {
	Publish(roomID, topic string, d Delta) error
}
