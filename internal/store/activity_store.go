package store

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/virtual-cafe/internal/model"
)

// ActivityStore persists user activity records, avatar states and chat
// marks. Activity records carry the inactivity TTL plus margin; avatar
// records carry a short TTL so they self-expire when never refreshed.
type ActivityStore struct {
	rdb       *redis.Client
	ttl       time.Duration
	avatarTTL time.Duration
}

// NewActivityStore returns an ActivityStore with the given record lifetimes.
func NewActivityStore(rdb *redis.Client, ttl, avatarTTL time.Duration) *ActivityStore {
	return &ActivityStore{rdb: rdb, ttl: ttl, avatarTTL: avatarTTL}
}

// Get loads one activity record. Missing or corrupt records return
// ErrNotFound; corrupt ones are deleted.
func (s *ActivityStore) Get(ctx context.Context, userID string) (*model.UserActivity, error) {
	raw, err := s.rdb.Get(ctx, activityKey(userID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var a model.UserActivity
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		log.Printf("activity-store: record for %s is corrupt, deleting: %v", userID, err)
		s.rdb.Del(ctx, activityKey(userID))
		return nil, ErrNotFound
	}
	return &a, nil
}

// Save upserts an activity record, refreshing its TTL.
func (s *ActivityStore) Save(ctx context.Context, a *model.UserActivity) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, activityKey(a.UserID), body, s.ttl).Err()
}

// Delete removes an activity record.
func (s *ActivityStore) Delete(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, activityKey(userID)).Err()
}

// All scans every activity record. Corrupt entries are skipped (and deleted
// by the Get they would fail in) rather than aborting the sweep.
func (s *ActivityStore) All(ctx context.Context) ([]model.UserActivity, error) {
	var out []model.UserActivity
	iter := s.rdb.Scan(ctx, 0, "activity:*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.rdb.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var a model.UserActivity
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			log.Printf("activity-store: %s is corrupt, deleting: %v", iter.Val(), err)
			s.rdb.Del(ctx, iter.Val())
			continue
		}
		out = append(out, a)
	}
	return out, iter.Err()
}

// Avatar returns the stored avatar state for a user, defaulting to NORMAL
// when absent or expired.
func (s *ActivityStore) Avatar(ctx context.Context, userID string) (model.AvatarState, error) {
	raw, err := s.rdb.Get(ctx, avatarKey(userID)).Result()
	if err == redis.Nil {
		return model.AvatarNormal, nil
	}
	if err != nil {
		return model.AvatarNormal, err
	}
	return model.AvatarState(raw), nil
}

// SetAvatar writes the avatar state with the short self-expiring TTL.
func (s *ActivityStore) SetAvatar(ctx context.Context, userID string, state model.AvatarState) error {
	return s.rdb.Set(ctx, avatarKey(userID), string(state), s.avatarTTL).Err()
}

// SetChatMark records when the user last entered CHATTING. The chat-timeout
// task compares against this mark before demoting, which substitutes for
// cancelling the timer when a newer message arrives.
func (s *ActivityStore) SetChatMark(ctx context.Context, userID string, at time.Time) error {
	return s.rdb.Set(ctx, chatMarkKey(userID), strconv.FormatInt(at.UnixMilli(), 10), s.avatarTTL).Err()
}

// ChatMark returns the last chat mark, zero when absent.
func (s *ActivityStore) ChatMark(ctx context.Context, userID string) (time.Time, error) {
	raw, err := s.rdb.Get(ctx, chatMarkKey(userID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.rdb.Del(ctx, chatMarkKey(userID))
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}
