package store

import "fmt"

// Key builders for the engine's Redis key space. Kept together so the whole
// layout is visible at a glance.
//
//	room:{room}:seats            hash: seat index to SeatAssignment JSON
//	consumables:{room}:{user}    JSON list of Consumable, TTL'd
//	order:{id}                   JSON Order
//	orders:user:{user}           JSON list of order IDs
//	orders:queue                 list of order IDs, FIFO
//	orders:preparing             ID of the order in the preparer slot
//	activity:{user}              JSON UserActivity
//	avatar:{user}                avatar state string, short TTL
//	avatar:chatmark:{user}       unix-milli timestamp of the last chat mark
//	session:generation           monotonic session counter
func roomSeatsKey(roomID string) string { return fmt.Sprintf("room:%s:seats", roomID) }

func consumablesKey(roomID, userID string) string {
	return fmt.Sprintf("consumables:%s:%s", roomID, userID)
}

func orderKey(orderID string) string { return "order:" + orderID }

func userOrdersKey(userID string) string { return "orders:user:" + userID }

const (
	orderQueueKey      = "orders:queue"
	orderPreparingKey  = "orders:preparing"
	sessionCounterKey  = "session:generation"
	consumablesPattern = "consumables:*"
)

func activityKey(userID string) string { return "activity:" + userID }

func avatarKey(userID string) string { return "avatar:" + userID }

func chatMarkKey(userID string) string { return "avatar:chatmark:" + userID }
