package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/virtual-cafe/internal/model"
	"github.com/iliyamo/virtual-cafe/internal/store"
)

// ActivityMonitor tracks per-user last-activity timestamps and evicts stale
// sessions. Eviction releases the seat and announces the departure; order
// and consumable cleanup is deliberately left to those components' own
// sweeps so no side effect ever runs twice.
type ActivityMonitor struct {
	acts       ActivityStore
	seats      *SeatRegistry
	notifier   Notifier
	roomIDs    []string
	inactivity time.Duration
	now        func() time.Time
}

// NewActivityMonitor returns a monitor sweeping the given rooms with the
// given inactivity timeout.
func NewActivityMonitor(acts ActivityStore, seats *SeatRegistry, notifier Notifier, roomIDs []string, inactivity time.Duration, now func() time.Time) *ActivityMonitor {
	return &ActivityMonitor{
		acts:       acts,
		seats:      seats,
		notifier:   notifier,
		roomIDs:    roomIDs,
		inactivity: inactivity,
		now:        now,
	}
}

// RecordActivity upserts the user's activity record with a fresh timestamp.
// The first action a user ever takes creates the record; every later action
// refreshes it and its TTL.
func (m *ActivityMonitor) RecordActivity(ctx context.Context, userID, displayName, roomID string) error {
	a, err := m.acts.Get(ctx, userID)
	if err == store.ErrNotFound {
		a = &model.UserActivity{UserID: userID}
	} else if err != nil {
		return err
	}
	a.DisplayName = displayName
	a.RoomID = roomID
	a.LastActivityAt = m.now()
	a.Active = true
	return m.acts.Save(ctx, a)
}

// SetSeat records the seat a user currently holds (0 when standing). Called
// by the action layer after seat mutations so the activity record mirrors
// the registry.
func (m *ActivityMonitor) SetSeat(ctx context.Context, userID string, seatID int) error {
	a, err := m.acts.Get(ctx, userID)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	a.CurrentSeat = seatID
	return m.acts.Save(ctx, a)
}

// MarkLeft flags a clean leave. The record survives (the reconnect grace
// depends on it) but Active turns false so presence listings can distinguish
// "gone for now" from "here".
func (m *ActivityMonitor) MarkLeft(ctx context.Context, userID string) error {
	a, err := m.acts.Get(ctx, userID)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	a.Active = false
	a.CurrentSeat = 0
	return m.acts.Save(ctx, a)
}

// Get returns the activity record for a user.
func (m *ActivityMonitor) Get(ctx context.Context, userID string) (*model.UserActivity, error) {
	return m.acts.Get(ctx, userID)
}

// EvictionSweep removes every user whose last activity is older than the
// inactivity timeout. The activity record itself is always deleted, even
// when releasing the seat fails: a leaked seat is caught by the ghost-seat
// sweep, a leaked activity record would keep a dead user "present" forever.
func (m *ActivityMonitor) EvictionSweep(ctx context.Context) error {
	users, err := m.acts.All(ctx)
	if err != nil {
		return err
	}
	now := m.now()
	for _, u := range users {
		if now.Sub(u.LastActivityAt) <= m.inactivity {
			continue
		}
		m.evict(ctx, u)
	}
	return nil
}

func (m *ActivityMonitor) evict(ctx context.Context, u model.UserActivity) {
	log.Printf("activity: evicting %s (%s) from %s after inactivity", u.UserID, u.DisplayName, u.RoomID)

	if _, err := m.seats.LeaveSeat(ctx, u.RoomID, u.UserID); err != nil {
		log.Printf("activity: seat release for %s failed: %v", u.UserID, err)
	}
	// Orders and consumables are left to their own sweeps; running their
	// cleanup here as well would double every side effect.
	if m.notifier != nil {
		msg := fmt.Sprintf("%s drifted away from the café.", u.DisplayName)
		if err := m.notifier.NotifyRoom(ctx, u.RoomID, "user_evicted", msg); err != nil {
			log.Printf("activity: eviction notice for %s failed: %v", u.UserID, err)
		}
	}
	if err := m.acts.Delete(ctx, u.UserID); err != nil {
		log.Printf("activity: deleting record for %s failed: %v", u.UserID, err)
	}
}

// GhostSeatSweep releases seats whose occupant has no activity record at
// all. These are not timeout victims but leftovers of races (a seat written
// whose owning record never landed, or expired first). It is the second,
// narrower net behind the join-time ghost reconciliation.
func (m *ActivityMonitor) GhostSeatSweep(ctx context.Context) error {
	for _, roomID := range m.roomIDs {
		assignments, err := m.seats.ListRoom(ctx, roomID)
		if err != nil {
			log.Printf("activity: ghost sweep of %s failed: %v", roomID, err)
			continue
		}
		for _, a := range assignments {
			_, err := m.acts.Get(ctx, a.UserID)
			if err == nil {
				continue
			}
			if err != store.ErrNotFound {
				log.Printf("activity: ghost check for %s failed: %v", a.UserID, err)
				continue
			}
			log.Printf("activity: releasing ghost seat %d in %s held by %s", a.SeatID, roomID, a.UserID)
			if _, err := m.seats.LeaveSeat(ctx, roomID, a.UserID); err != nil {
				log.Printf("activity: ghost release for %s failed: %v", a.UserID, err)
			}
		}
	}
	return nil
}

// Stats summarizes presence for the introspection surface.
type Stats struct {
	TrackedUsers int            `json:"tracked_users"`
	ByRoom       map[string]int `json:"by_room"`
}

// ActivityStats counts tracked users per room.
func (m *ActivityMonitor) ActivityStats(ctx context.Context) (Stats, error) {
	users, err := m.acts.All(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{TrackedUsers: len(users), ByRoom: map[string]int{}}
	for _, u := range users {
		s.ByRoom[u.RoomID]++
	}
	return s, nil
}
