package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"loftwire/internal/db"
	"loftwire/internal/event"
	"loftwire/internal/model"
	"loftwire/internal/push"
	"loftwire/internal/repo"
)

// -----------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------

type fakeStore struct {
	mu sync.Mutex

	owners      map[string]repo.ChannelOwner // channel ID -> owner
	members     map[string][]string          // space ID -> member IDs
	spaces      []model.Space
	channelDocs map[string][]model.Channel // space ID -> channels
	messages    map[string]*model.Message
	attachments map[string][]model.Attachment
	backlog     map[string][]model.Message // channel ID -> recent messages

	insertErr error
	attachErr error
	inserted  []string
	updated   []string
	deleted   []string
	readMarks []string // "channelID/userID/messageID"
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		owners:      make(map[string]repo.ChannelOwner),
		members:     make(map[string][]string),
		channelDocs: make(map[string][]model.Channel),
		messages:    make(map[string]*model.Message),
		attachments: make(map[string][]model.Attachment),
		backlog:     make(map[string][]model.Message),
	}
}

func (f *fakeStore) GetChannelOwner(_ context.Context, channelID string) (repo.ChannelOwner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owners[channelID]
	if !ok {
		return repo.ChannelOwner{}, repo.ErrNotFound
	}
	return owner, nil
}

func (f *fakeStore) IsSpaceMember(_ context.Context, spaceID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.members[spaceID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListSpaceMemberIDs(_ context.Context, spaceID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.members[spaceID]...), nil
}

func (f *fakeStore) ListSpacesForUser(_ context.Context, userID string) ([]model.Space, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Space
	for _, sp := range f.spaces {
		for _, id := range sp.MemberIDs {
			if id == userID {
				out = append(out, sp)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ListChannels(_ context.Context, spaceID string) ([]model.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Channel(nil), f.channelDocs[spaceID]...), nil
}

func (f *fakeStore) InsertMessage(_ context.Context, msg *model.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return "", f.insertErr
	}
	stored := *msg
	stored.ID = primitive.NewObjectID()
	id := stored.ID.Hex()
	f.messages[id] = &stored
	f.inserted = append(f.inserted, id)
	return id, nil
}

func (f *fakeStore) InsertAttachments(_ context.Context, messageID string, attachments []model.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attachments[messageID] = append(f.attachments[messageID], attachments...)
	return nil
}

func (f *fakeStore) GetMessage(_ context.Context, messageID string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

func (f *fakeStore) UpdateMessage(_ context.Context, messageID, content string, editedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[messageID]
	if !ok {
		return repo.ErrNotFound
	}
	msg.Content = content
	msg.EditedAt = &editedAt
	f.updated = append(f.updated, messageID)
	return nil
}

func (f *fakeStore) DeleteMessage(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[messageID]; !ok {
		return repo.ErrNotFound
	}
	delete(f.messages, messageID)
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeStore) ListAttachments(_ context.Context, messageID string) ([]model.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Attachment(nil), f.attachments[messageID]...), nil
}

func (f *fakeStore) RecentMessages(_ context.Context, channelID string, _ int64) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.backlog[channelID]...), nil
}

func (f *fakeStore) ChannelMessages(context.Context, string, int64) (*db.PaginatedResult[model.Message], error) {
	return &db.PaginatedResult[model.Message]{}, nil
}

func (f *fakeStore) UpsertReaction(_ context.Context, messageID, userID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[messageID]
	if !ok {
		return repo.ErrNotFound
	}
	for _, r := range msg.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			return nil
		}
	}
	msg.Reactions = append(msg.Reactions, model.Reaction{UserID: userID, Emoji: emoji})
	return nil
}

func (f *fakeStore) RemoveReaction(_ context.Context, messageID, userID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[messageID]
	if !ok {
		return repo.ErrNotFound
	}
	kept := msg.Reactions[:0]
	for _, r := range msg.Reactions {
		if r.UserID != userID || r.Emoji != emoji {
			kept = append(kept, r)
		}
	}
	msg.Reactions = kept
	return nil
}

func (f *fakeStore) ReactionCounts(ctx context.Context, messageID, viewerID string) ([]repo.ReactionCount, error) {
	msg, err := f.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return repo.FoldReactions(msg.Reactions, viewerID), nil
}

func (f *fakeStore) MarkReadUpTo(_ context.Context, channelID, userID, cutoffMessageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readMarks = append(f.readMarks, channelID+"/"+userID+"/"+cutoffMessageID)
	return nil
}

type fakeUsers struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
}

func (f *fakeUsers) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, repo.ErrNotFound
}

type fakePush struct {
	mu    sync.Mutex
	calls [][]string
	notes []push.Notification
}

func (f *fakePush) NotifyOffline(_ context.Context, userIDs []string, note push.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), userIDs...))
	f.notes = append(f.notes, note)
}

func (f *fakePush) calledWith() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// -----------------------------------------------------------------
// Harness
// -----------------------------------------------------------------

type testHarness struct {
	hub   *Hub
	store *fakeStore
	users *fakeUsers
	push  *fakePush
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	store := newFakeStore()
	users := &fakeUsers{profiles: make(map[string]*model.Profile)}
	pusher := &fakePush{}

	h := NewHub(Deps{
		Store:   store,
		Users:   users,
		Push:    pusher,
		Metrics: NewMetrics(prometheus.NewRegistry()),
		Logger:  zap.NewNop(),
	})
	t.Cleanup(h.Stop)

	return &testHarness{hub: h, store: store, users: users, push: pusher}
}

// connect builds a client without a socket and registers it directly,
// bypassing the register channel so tests stay deterministic.
func (th *testHarness) connect(userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		ID:          uuid.New().String(),
		UserID:      userID,
		DisplayName: userID,
		hub:         th.hub,
		egress:      make(chan event.WsEvent, sendBufSize),
		cancel:      cancel,
		ctx:         ctx,
		connClosed:  make(chan struct{}),
	}
	th.hub.addClient(c)
	return c
}

func (th *testHarness) disconnect(c *Client) {
	th.hub.removeClient(c)
}

// drain empties a client's egress buffer and returns what was queued.
func drain(c *Client) []event.WsEvent {
	var events []event.WsEvent
	for {
		select {
		case ev := <-c.egress:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventNames(events []event.WsEvent) []string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.Event)
	}
	return names
}

func findEvent(events []event.WsEvent, name string) (event.WsEvent, bool) {
	for _, ev := range events {
		if ev.Event == name {
			return ev, true
		}
	}
	return event.WsEvent{}, false
}

// seedChannel registers a channel and its owning space with members.
func (th *testHarness) seedChannel(channelID, spaceID, kind string, memberIDs ...string) {
	th.store.mu.Lock()
	defer th.store.mu.Unlock()
	th.store.owners[channelID] = repo.ChannelOwner{SpaceID: spaceID, Kind: kind}
	th.store.members[spaceID] = memberIDs
}

func mustEvent(t *testing.T, name string, payload any) event.WsEvent {
	t.Helper()
	ev, err := event.New(name, payload)
	if err != nil {
		t.Fatalf("failed to build %s event: %v", name, err)
	}
	return ev
}
