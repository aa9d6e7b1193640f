package engine

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/virtual-cafe/internal/broadcast"
	"github.com/iliyamo/virtual-cafe/internal/model"
)

// AvatarStateMachine derives each user's displayed presence state from
// activity, conversation and consumable signals. Priority is
// CHATTING > EATING > IDLE > NORMAL: automatic sweeps never pre-empt a
// higher-priority state. State and chat marks live in the store with a short
// TTL so they evaporate with the session.
type AvatarStateMachine struct {
	acts        ActivityStore
	consumables *ConsumableTracker
	bc          broadcast.Broadcaster
	chatHold    time.Duration
	idleAfter   time.Duration
	now         func() time.Time

	// schedule defers the chat-timeout re-evaluation. Overridable in tests;
	// defaults to time.AfterFunc.
	schedule func(d time.Duration, fn func())
}

// NewAvatarStateMachine returns a state machine with the given chat hold and
// idle threshold.
func NewAvatarStateMachine(acts ActivityStore, consumables *ConsumableTracker, bc broadcast.Broadcaster, chatHold, idleAfter time.Duration, now func() time.Time) *AvatarStateMachine {
	m := &AvatarStateMachine{
		acts:        acts,
		consumables: consumables,
		bc:          bc,
		chatHold:    chatHold,
		idleAfter:   idleAfter,
		now:         now,
	}
	m.schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	return m
}

// MarkChatting puts the user into CHATTING immediately and starts the hold
// countdown. Every message restarts the countdown: the deferred task only
// acts if its chat mark is still the latest one, which substitutes for
// cancelling the previous timer.
func (m *AvatarStateMachine) MarkChatting(ctx context.Context, userID, roomID string) error {
	mark := m.now()
	if err := m.acts.SetChatMark(ctx, userID, mark); err != nil {
		return err
	}
	if err := m.setAndPublish(ctx, userID, roomID, model.AvatarChatting); err != nil {
		return err
	}
	m.schedule(m.chatHold, func() {
		m.ChatTimeout(context.Background(), userID, roomID, mark)
	})
	return nil
}

// ChatTimeout re-evaluates the user once the chat hold expires. Stale
// timeouts (a newer message re-marked the user) are no-ops. Otherwise the
// user lands on EATING when they still hold consumables, NORMAL when not.
func (m *AvatarStateMachine) ChatTimeout(ctx context.Context, userID, roomID string, mark time.Time) {
	current, err := m.acts.ChatMark(ctx, userID)
	if err != nil {
		log.Printf("avatar: chat mark read for %s failed: %v", userID, err)
		return
	}
	// Marks persist at millisecond precision; compare at that grain so a
	// mark never looks stale against its own stored copy.
	if current.UnixMilli() != mark.UnixMilli() {
		return
	}
	next := model.AvatarNormal
	if m.consumables.HasActive(ctx, roomID, userID) {
		next = model.AvatarEating
	}
	if err := m.setAndPublish(ctx, userID, roomID, next); err != nil {
		log.Printf("avatar: chat timeout for %s failed: %v", userID, err)
	}
}

// IdleSweep marks users idle after the inactivity threshold. States ranking
// at or above IDLE are never demoted, and users with active consumables stay
// out of IDLE even from NORMAL (eating outranks idle).
func (m *AvatarStateMachine) IdleSweep(ctx context.Context) error {
	users, err := m.acts.All(ctx)
	if err != nil {
		return err
	}
	now := m.now()
	for _, u := range users {
		if now.Sub(u.LastActivityAt) <= m.idleAfter {
			continue
		}
		state, err := m.acts.Avatar(ctx, u.UserID)
		if err != nil {
			log.Printf("avatar: idle sweep read for %s failed: %v", u.UserID, err)
			continue
		}
		if state.Priority() >= model.AvatarIdle.Priority() {
			continue
		}
		if m.consumables.HasActive(ctx, u.RoomID, u.UserID) {
			continue
		}
		if err := m.setAndPublish(ctx, u.UserID, u.RoomID, model.AvatarIdle); err != nil {
			log.Printf("avatar: idle sweep for %s failed: %v", u.UserID, err)
		}
	}
	return nil
}

// EatingSweep keeps EATING in sync with consumable state: set it for users
// with live consumables who are not chatting, clear it back to NORMAL once
// the consumables run out.
func (m *AvatarStateMachine) EatingSweep(ctx context.Context) error {
	users, err := m.acts.All(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		state, err := m.acts.Avatar(ctx, u.UserID)
		if err != nil {
			log.Printf("avatar: eating sweep read for %s failed: %v", u.UserID, err)
			continue
		}
		has := m.consumables.HasActive(ctx, u.RoomID, u.UserID)
		switch {
		case has && state.Priority() < model.AvatarEating.Priority():
			err = m.setAndPublish(ctx, u.UserID, u.RoomID, model.AvatarEating)
		case !has && state == model.AvatarEating:
			err = m.setAndPublish(ctx, u.UserID, u.RoomID, model.AvatarNormal)
		}
		if err != nil {
			log.Printf("avatar: eating sweep for %s failed: %v", u.UserID, err)
		}
	}
	return nil
}

// State returns the user's current avatar state.
func (m *AvatarStateMachine) State(ctx context.Context, userID string) (model.AvatarState, error) {
	return m.acts.Avatar(ctx, userID)
}

func (m *AvatarStateMachine) setAndPublish(ctx context.Context, userID, roomID string, state model.AvatarState) error {
	if err := m.acts.SetAvatar(ctx, userID, state); err != nil {
		return err
	}
	_ = m.bc.Publish(roomID, broadcast.TopicAvatars, broadcast.Delta{
		Type:      "avatar_state",
		RoomID:    roomID,
		UserID:    userID,
		Payload:   state,
		Timestamp: m.now(),
	})
	return nil
}
