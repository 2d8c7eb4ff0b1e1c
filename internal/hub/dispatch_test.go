package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"loftwire/internal/event"
	"loftwire/internal/model"
)

func TestSpaceListReturnsMemberships(t *testing.T) {
	th := newHarness(t)

	sp := model.Space{ID: primitive.NewObjectID(), Name: "Design", MemberIDs: []string{"alice"}}
	th.store.spaces = []model.Space{sp}

	a := th.connect("alice")
	drain(a)

	th.hub.handleEvent(event.WsEvent{Event: event.EventSpaceList}, a)

	got := drain(a)
	require.Len(t, got, 1)
	assert.Equal(t, event.EventSpaceListResult, got[0].Event)

	var result event.SpaceListResultPayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &result))
	require.Len(t, result.Spaces, 1)
	assert.Equal(t, sp.ID.Hex(), result.Spaces[0].ID)
	assert.Equal(t, "Design", result.Spaces[0].Name)
}

func TestSpaceSwitchJoinsRoomAndBroadcastsPresence(t *testing.T) {
	th := newHarness(t)
	th.store.members["space-1"] = []string{"alice", "bob"}

	a := th.connect("alice")
	drain(a)

	th.hub.handleEvent(mustEvent(t, event.EventSpaceSwitch,
		event.SpaceSwitchPayload{SpaceID: "space-1"}), a)

	assert.Equal(t, "space-1", a.SpaceID())
	assert.Equal(t, []string{"alice"}, th.hub.roomMembers(SpaceRoom("space-1")))

	got := drain(a)
	ev, ok := findEvent(got, event.EventPresenceSpace)
	require.True(t, ok)

	var presence event.PresencePayload
	require.NoError(t, json.Unmarshal(ev.Payload, &presence))
	assert.Equal(t, "space-1", presence.RoomID)
	assert.Equal(t, []string{"alice"}, presence.UserIDs)
}

func TestSpaceSwitchRejectsNonMemberSilently(t *testing.T) {
	th := newHarness(t)
	th.store.members["space-1"] = []string{"bob"}

	a := th.connect("alice")
	drain(a)

	th.hub.handleEvent(mustEvent(t, event.EventSpaceSwitch,
		event.SpaceSwitchPayload{SpaceID: "space-1"}), a)

	assert.Empty(t, a.SpaceID())
	assert.Empty(t, th.hub.roomMembers(SpaceRoom("space-1")))
	assert.Empty(t, drain(a))
}

func TestSpaceSwitchVacatesPreviousRooms(t *testing.T) {
	th := newHarness(t)
	th.store.members["space-1"] = []string{"alice"}
	th.store.members["space-2"] = []string{"alice"}
	th.seedChannel("chan-1", "space-1", model.ChannelKindText, "alice")
	th.store.members["space-1"] = []string{"alice"}

	a := th.connect("alice")
	th.hub.handleEvent(mustEvent(t, event.EventSpaceSwitch,
		event.SpaceSwitchPayload{SpaceID: "space-1"}), a)
	th.hub.handleEvent(mustEvent(t, event.EventChannelSwitch,
		event.ChannelSwitchPayload{ChannelID: "chan-1"}), a)
	drain(a)

	th.hub.handleEvent(mustEvent(t, event.EventSpaceSwitch,
		event.SpaceSwitchPayload{SpaceID: "space-2"}), a)

	assert.Equal(t, "space-2", a.SpaceID())
	assert.Empty(t, a.ChannelID())
	assert.Empty(t, th.hub.roomMembers(SpaceRoom("space-1")))
	assert.Empty(t, th.hub.roomMembers(ChannelRoom("chan-1")))
}

func TestChannelListRequiresMembership(t *testing.T) {
	th := newHarness(t)
	th.store.members["space-1"] = []string{"bob"}
	th.store.channelDocs["space-1"] = []model.Channel{
		{ID: primitive.NewObjectID(), Name: "general", Kind: model.ChannelKindText},
	}

	a := th.connect("alice")
	drain(a)

	th.hub.handleEvent(mustEvent(t, event.EventChannelList,
		event.ChannelListPayload{SpaceID: "space-1"}), a)
	assert.Empty(t, drain(a))

	b := th.connect("bob")
	drain(b)

	th.hub.handleEvent(mustEvent(t, event.EventChannelList,
		event.ChannelListPayload{SpaceID: "space-1"}), b)

	got := drain(b)
	require.Len(t, got, 1)
	var result event.ChannelListResultPayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &result))
	require.Len(t, result.Channels, 1)
	assert.Equal(t, "general", result.Channels[0].Name)
}

func TestChannelSwitchDeliversPresenceAndBacklog(t *testing.T) {
	th := newHarness(t)
	th.seedChannel("chan-1", "space-1", model.ChannelKindText, "alice", "bob")

	older := model.Message{
		ID:        primitive.NewObjectID(),
		ChannelID: primitive.NewObjectID(),
		AuthorID:  "bob",
		Content:   "first",
		CreatedAt: time.Now().Add(-time.Minute),
	}
	newer := older
	newer.ID = primitive.NewObjectID()
	newer.Content = "second"
	newer.CreatedAt = time.Now()
	th.store.backlog["chan-1"] = []model.Message{older, newer}
	th.users.profiles["bob"] = &model.Profile{UserID: "bob", DisplayName: "Bob", NameColor: "#ff0000"}

	a := th.connect("alice")
	drain(a)

	th.hub.handleEvent(mustEvent(t, event.EventChannelSwitch,
		event.ChannelSwitchPayload{ChannelID: "chan-1"}), a)

	assert.Equal(t, "chan-1", a.ChannelID())

	got := drain(a)
	_, ok := findEvent(got, event.EventPresenceChannel)
	assert.True(t, ok)

	ev, ok := findEvent(got, event.EventMessageBacklog)
	require.True(t, ok)

	var backlog event.MessageBacklogPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &backlog))
	assert.Equal(t, "chan-1", backlog.ChannelID)
	require.Len(t, backlog.Messages, 2)
	assert.Equal(t, "first", backlog.Messages[0].Content)
	assert.Equal(t, "second", backlog.Messages[1].Content)
	assert.Equal(t, "Bob", backlog.Messages[0].AuthorName)
	assert.Equal(t, "#ff0000", backlog.Messages[0].AuthorColor)
}

func TestChannelSwitchToSameChannelIsNoOp(t *testing.T) {
	th := newHarness(t)
	th.seedChannel("chan-1", "space-1", model.ChannelKindText, "alice")

	a := th.connect("alice")
	th.hub.handleEvent(mustEvent(t, event.EventChannelSwitch,
		event.ChannelSwitchPayload{ChannelID: "chan-1"}), a)
	drain(a)

	th.hub.handleEvent(mustEvent(t, event.EventChannelSwitch,
		event.ChannelSwitchPayload{ChannelID: "chan-1"}), a)

	assert.Empty(t, drain(a))
	assert.Len(t, th.hub.roomClients(ChannelRoom("chan-1")), 1)
}

func TestChannelSwitchRejectsNonMember(t *testing.T) {
	th := newHarness(t)
	th.seedChannel("chan-1", "space-1", model.ChannelKindText, "bob")

	a := th.connect("alice")
	drain(a)

	th.hub.handleEvent(mustEvent(t, event.EventChannelSwitch,
		event.ChannelSwitchPayload{ChannelID: "chan-1"}), a)

	assert.Empty(t, a.ChannelID())
	assert.Empty(t, drain(a))
}

func TestChannelSwitchUnknownChannelDropsSilently(t *testing.T) {
	th := newHarness(t)

	a := th.connect("alice")
	drain(a)

	th.hub.handleEvent(mustEvent(t, event.EventChannelSwitch,
		event.ChannelSwitchPayload{ChannelID: "nope"}), a)

	assert.Empty(t, a.ChannelID())
	assert.Empty(t, drain(a))
}

func TestTypingSetRequiresBeingInChannel(t *testing.T) {
	th := newHarness(t)
	th.seedChannel("chan-1", "space-1", model.ChannelKindText, "alice", "bob")

	a := th.connect("alice")
	b := th.connect("bob")
	th.hub.handleEvent(mustEvent(t, event.EventChannelSwitch,
		event.ChannelSwitchPayload{ChannelID: "chan-1"}), b)
	drain(a)
	drain(b)

	// alice never switched into the channel
	th.hub.handleEvent(mustEvent(t, event.EventTypingSet,
		event.TypingPayload{ChannelID: "chan-1", IsTyping: true}), a)
	assert.Empty(t, drain(b))

	th.hub.handleEvent(mustEvent(t, event.EventChannelSwitch,
		event.ChannelSwitchPayload{ChannelID: "chan-1"}), a)
	drain(a)
	drain(b)

	th.hub.handleEvent(mustEvent(t, event.EventTypingSet,
		event.TypingPayload{ChannelID: "chan-1", IsTyping: true}), a)

	got := drain(b)
	require.Len(t, got, 1)
	assert.Equal(t, event.EventTypingStart, got[0].Event)
}

func TestUnknownEventIsIgnored(t *testing.T) {
	th := newHarness(t)
	a := th.connect("alice")
	drain(a)

	th.hub.handleEvent(event.WsEvent{Event: "no:such_event"}, a)
	assert.Empty(t, drain(a))
}

func TestMalformedPayloadDropsSilently(t *testing.T) {
	th := newHarness(t)
	a := th.connect("alice")
	drain(a)

	th.hub.handleEvent(event.WsEvent{
		Event:   event.EventChannelSwitch,
		Payload: json.RawMessage(`{"channelId": 42}`),
	}, a)

	assert.Empty(t, a.ChannelID())
	assert.Empty(t, drain(a))
}
