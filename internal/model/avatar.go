package model

// AvatarState is the presence state displayed for a user. States carry a
// priority so that automatic sweeps never demote a user out of a
// higher-priority state: CHATTING > EATING > IDLE > NORMAL.
type AvatarState string

const (
	AvatarNormal   AvatarState = "NORMAL"
	AvatarIdle     AvatarState = "IDLE"
	AvatarChatting AvatarState = "CHATTING"
	AvatarEating   AvatarState = "EATING"
)

var avatarPriority = map[AvatarState]int{
	AvatarNormal:   0,
	AvatarIdle:     1,
	AvatarEating:   2,
	AvatarChatting: 3,
}

// Priority returns the pre-emption rank of the state. Unknown states rank
// lowest so corrupt records never block transitions.
func (s AvatarState) Priority() int { return avatarPriority[s] }
