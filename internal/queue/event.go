// Package queue defines message payloads exchanged over the message broker
// and the background consumer that drains them.
package queue

// RoomNotificationEvent is published when the engine emits a room-level
// system notification: inactivity evictions, order-ready announcements and
// similar. It carries enough information for downstream consumers to log or
// relay without querying the store.
type RoomNotificationEvent struct {
	RoomID     string `json:"room_id"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	OccurredAt string `json:"occurred_at"`
}
