package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loftwire/internal/event"
	"loftwire/internal/model"
)

func TestMonitorStatsIdleWithoutConnections(t *testing.T) {
	th := newHarness(t)
	ms := NewMonitorService(th.hub)

	stats := ms.GetStats()
	assert.Equal(t, "idle", stats.Status)
	assert.Zero(t, stats.Connections.TotalConnections)
	assert.Empty(t, stats.Clients)
}

func TestMonitorStatsReflectHubState(t *testing.T) {
	th := newHarness(t)
	th.seedChannel("chan-1", "space-1", model.ChannelKindText, "alice", "bob")
	th.seedChannel("voice-1", "space-1", model.ChannelKindVoice, "alice", "bob")

	a1 := th.connect("alice")
	a2 := th.connect("alice")
	b := th.connect("bob")
	switchInto(t, th, a1, "chan-1")
	switchInto(t, th, b, "chan-1")
	joinVoice(t, th, a2, "voice-1")
	th.hub.handleEvent(mustEvent(t, event.EventTypingSet,
		event.TypingPayload{ChannelID: "chan-1", IsTyping: true}), a1)

	ms := NewMonitorService(th.hub)
	stats := ms.GetStats()

	assert.Equal(t, "healthy", stats.Status)
	assert.Equal(t, 3, stats.Connections.TotalConnections)
	assert.Equal(t, 2, stats.Connections.DistinctUsers)
	assert.Len(t, stats.Clients, 3)

	var channelRoom *model.RoomInfo
	for i := range stats.Rooms.RoomDetails {
		if stats.Rooms.RoomDetails[i].Name == ChannelRoom("chan-1") {
			channelRoom = &stats.Rooms.RoomDetails[i]
		}
	}
	require.NotNil(t, channelRoom)
	assert.Equal(t, 2, channelRoom.Connections)
	assert.Equal(t, []string{"alice", "bob"}, channelRoom.MemberIDs)
	assert.Equal(t, []string{"alice"}, channelRoom.Typing)

	require.Equal(t, 1, stats.Voice.TotalVoiceRooms)
	assert.Equal(t, "voice-1", stats.Voice.VoiceDetails[0].ChannelID)
	assert.Equal(t, 1, stats.Voice.VoiceDetails[0].PeerCount)
	assert.Equal(t, []string{"alice"}, stats.Voice.VoiceDetails[0].UserIDs)

	// voice rooms never appear in the general room table
	for _, room := range stats.Rooms.RoomDetails {
		assert.NotContains(t, room.Name, "voice:")
	}
}
