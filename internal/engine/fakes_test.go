package engine

// In-memory fakes for the store seams plus a manual clock. The engine's
// logic is deterministic once time is injected, so these are plain maps
// behind a mutex; the Redis implementations carry the real atomicity.

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/virtual-cafe/internal/broadcast"
	"github.com/iliyamo/virtual-cafe/internal/model"
	"github.com/iliyamo/virtual-cafe/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeSeatStore struct {
	mu    sync.Mutex
	rooms map[string]map[int]model.SeatAssignment
	gen   int64

	mutateErr error
}

func newFakeSeatStore() *fakeSeatStore {
	return &fakeSeatStore{rooms: map[string]map[int]model.SeatAssignment{}}
}

func (s *fakeSeatStore) Room(_ context.Context, roomID string) (map[int]model.SeatAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]model.SeatAssignment, len(s.rooms[roomID]))
	for k, v := range s.rooms[roomID] {
		out[k] = v
	}
	return out, nil
}

func (s *fakeSeatStore) Mutate(_ context.Context, roomID string, fn func(map[int]model.SeatAssignment) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutateErr != nil {
		return s.mutateErr
	}
	seats := s.rooms[roomID]
	if seats == nil {
		seats = map[int]model.SeatAssignment{}
	}
	changed, err := fn(seats)
	if err != nil {
		return err
	}
	if changed {
		s.rooms[roomID] = seats
	}
	return nil
}

func (s *fakeSeatStore) NextGeneration(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen, nil
}

type fakeOrderStore struct {
	mu         sync.Mutex
	orders     map[string]model.Order
	userOrders map[string][]string
	queue      []string
	preparing  string
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[string]model.Order{}, userOrders: map[string][]string{}}
}

func (s *fakeOrderStore) SaveOrder(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = *o
	return nil
}

func (s *fakeOrderStore) GetOrder(_ context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (s *fakeOrderStore) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
	return nil
}

func (s *fakeOrderStore) AllOrders(context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out, nil
}

func (s *fakeOrderStore) UserOrders(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userOrders[userID]...), nil
}

func (s *fakeOrderStore) SetUserOrders(_ context.Context, userID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) == 0 {
		delete(s.userOrders, userID)
		return nil
	}
	s.userOrders[userID] = append([]string(nil), ids...)
	return nil
}

func (s *fakeOrderStore) MutateUserOrders(_ context.Context, userID string, fn func([]string) ([]string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(append([]string(nil), s.userOrders[userID]...))
	if err != nil {
		return err
	}
	if len(next) == 0 {
		delete(s.userOrders, userID)
		return nil
	}
	s.userOrders[userID] = append([]string(nil), next...)
	return nil
}

func (s *fakeOrderStore) EnqueueOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, id)
	return nil
}

func (s *fakeOrderStore) RequeueOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append([]string{id}, s.queue...)
	return nil
}

func (s *fakeOrderStore) DequeueOrder(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return "", nil
	}
	id := s.queue[0]
	s.queue = s.queue[1:]
	return id, nil
}

func (s *fakeOrderStore) QueueDepth(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.queue)), nil
}

func (s *fakeOrderStore) ClaimPreparing(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preparing != "" {
		return false, nil
	}
	s.preparing = id
	return true, nil
}

func (s *fakeOrderStore) Preparing(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preparing, nil
}

func (s *fakeOrderStore) ClearPreparing(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preparing = ""
	return nil
}

type fakeConsumableStore struct {
	mu      sync.Mutex
	lists   map[store.Owner][]model.Consumable
	expires map[store.Owner]time.Duration
}

func newFakeConsumableStore() *fakeConsumableStore {
	return &fakeConsumableStore{
		lists:   map[store.Owner][]model.Consumable{},
		expires: map[store.Owner]time.Duration{},
	}
}

func (s *fakeConsumableStore) List(_ context.Context, roomID, userID string) ([]model.Consumable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Consumable(nil), s.lists[store.Owner{RoomID: roomID, UserID: userID}]...), nil
}

func (s *fakeConsumableStore) Mutate(_ context.Context, roomID, userID string, fn func([]model.Consumable) ([]model.Consumable, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := store.Owner{RoomID: roomID, UserID: userID}
	next, err := fn(append([]model.Consumable(nil), s.lists[key]...))
	if err != nil {
		return err
	}
	if len(next) == 0 {
		delete(s.lists, key)
		delete(s.expires, key)
		return nil
	}
	s.lists[key] = append([]model.Consumable(nil), next...)
	delete(s.expires, key)
	return nil
}

func (s *fakeConsumableStore) ExpireAfter(_ context.Context, roomID, userID string, grace time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires[store.Owner{RoomID: roomID, UserID: userID}] = grace
	return nil
}

func (s *fakeConsumableStore) Restore(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expires, store.Owner{RoomID: roomID, UserID: userID})
	return nil
}

func (s *fakeConsumableStore) Owners(context.Context) ([]store.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Owner, 0, len(s.lists))
	for o := range s.lists {
		out = append(out, o)
	}
	return out, nil
}

type fakeActivityStore struct {
	mu        sync.Mutex
	records   map[string]model.UserActivity
	avatars   map[string]model.AvatarState
	chatMarks map[string]time.Time
}

func newFakeActivityStore() *fakeActivityStore {
	return &fakeActivityStore{
		records:   map[string]model.UserActivity{},
		avatars:   map[string]model.AvatarState{},
		chatMarks: map[string]time.Time{},
	}
}

func (s *fakeActivityStore) Get(_ context.Context, userID string) (*model.UserActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := a
	return &cp, nil
}

func (s *fakeActivityStore) Save(_ context.Context, a *model.UserActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[a.UserID] = *a
	return nil
}

func (s *fakeActivityStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

func (s *fakeActivityStore) All(context.Context) ([]model.UserActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.UserActivity, 0, len(s.records))
	for _, a := range s.records {
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeActivityStore) Avatar(_ context.Context, userID string) (model.AvatarState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.avatars[userID]; ok {
		return st, nil
	}
	return model.AvatarNormal, nil
}

func (s *fakeActivityStore) SetAvatar(_ context.Context, userID string, state model.AvatarState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avatars[userID] = state
	return nil
}

func (s *fakeActivityStore) SetChatMark(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The real store persists marks as UnixMilli; round-trip through the
	// same precision so tests see what production reads back.
	s.chatMarks[userID] = time.UnixMilli(at.UnixMilli())
	return nil
}

func (s *fakeActivityStore) ChatMark(_ context.Context, userID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatMarks[userID], nil
}

type published struct {
	roomID string
	topic  string
	delta  broadcast.Delta
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []published
}

func (b *fakeBroadcaster) Publish(roomID, topic string, d broadcast.Delta) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{roomID: roomID, topic: topic, delta: d})
	return nil
}

func (b *fakeBroadcaster) byTopic(topic string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, e := range b.events {
		if e.topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type fakeCatalog struct {
	items     map[string]model.MenuItem
	generated []model.MenuItem
}

func newFakeCatalog(items ...model.MenuItem) *fakeCatalog {
	c := &fakeCatalog{items: map[string]model.MenuItem{}}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

func (c *fakeCatalog) GetByID(_ context.Context, id string) (*model.MenuItem, error) {
	it, ok := c.items[id]
	if !ok {
		return nil, store.ErrItemNotFound
	}
	return &it, nil
}

func (c *fakeCatalog) ListActive(context.Context) ([]model.MenuItem, error) {
	out := make([]model.MenuItem, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	return out, nil
}

func (c *fakeCatalog) InsertGenerated(_ context.Context, it *model.MenuItem) error {
	c.generated = append(c.generated, *it)
	return nil
}

type fakeItemSource struct {
	item model.MenuItem
}

func (f *fakeItemSource) Generate(context.Context, string, string) model.MenuItem {
	return f.item
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []string
}

func (n *fakeNotifier) NotifyRoom(_ context.Context, roomID, kind, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, roomID+"/"+kind+": "+message)
	return nil
}

type fakeCooldown struct {
	deny bool
}

func (c *fakeCooldown) Allow(context.Context, string, string) bool { return !c.deny }
