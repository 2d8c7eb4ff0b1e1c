package hub

import (
	"crypto/sha1"
	"encoding/binary"
	"sort"
	"sync"

	"go.uber.org/zap"

	"loftwire/internal/event"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load

	// GlobalRoom holds every live connection.
	GlobalRoom = "global"
)

// Room name constructors. Every room lives in one flat namespace; the
// prefix keeps channel, space, voice, and per-user rooms from colliding.
func ChannelRoom(channelID string) string { return "channel:" + channelID }
func SpaceRoom(spaceID string) string     { return "space:" + spaceID }
func VoiceRoom(channelID string) string   { return "voice:" + channelID }
func UserRoom(userID string) string       { return "user:" + userID }

type roomBucket struct {
	sync.RWMutex
	rooms map[string]map[string]*Client // room name -> connection ID -> client
}

func getShard(roomID string) uint32 {
	if roomID == "" {
		return 0
	}

	h := sha1.Sum([]byte(roomID))
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

// joinRoom is idempotent: joining a room the connection is already in
// is a no-op.
func (h *Hub) joinRoom(roomID string, c *Client) {
	b := h.shards[getShard(roomID)]
	b.Lock()
	defer b.Unlock()

	room, ok := b.rooms[roomID]
	if !ok {
		room = make(map[string]*Client)
		b.rooms[roomID] = room
	}
	room[c.ID] = c
}

// leaveRoom is idempotent: leaving a room the connection is not in is
// a no-op. Empty rooms are reclaimed immediately.
func (h *Hub) leaveRoom(roomID string, c *Client) {
	b := h.shards[getShard(roomID)]
	b.Lock()
	defer b.Unlock()

	room, ok := b.rooms[roomID]
	if !ok {
		return
	}
	delete(room, c.ID)
	if len(room) == 0 {
		delete(b.rooms, roomID)
	}
}

// roomClients snapshots the connections of a room. Delivery never
// happens while a bucket lock is held.
func (h *Hub) roomClients(roomID string) []*Client {
	b := h.shards[getShard(roomID)]
	b.RLock()
	defer b.RUnlock()

	room, ok := b.rooms[roomID]
	if !ok || len(room) == 0 {
		return nil
	}

	clients := make([]*Client, 0, len(room))
	for _, c := range room {
		clients = append(clients, c)
	}
	return clients
}

// roomMembers returns the distinct user IDs present in a room, sorted.
// A user with several connections in the room appears once.
func (h *Hub) roomMembers(roomID string) []string {
	clients := h.roomClients(roomID)
	seen := make(map[string]bool, len(clients))
	members := make([]string, 0, len(clients))
	for _, c := range clients {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			members = append(members, c.UserID)
		}
	}
	sort.Strings(members)
	return members
}

// userInRoom reports whether any connection of the user is in the room.
func (h *Hub) userInRoom(roomID, userID string) bool {
	for _, c := range h.roomClients(roomID) {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) broadcastRoom(roomID string, ev event.WsEvent) {
	h.broadcastRoomExcept(roomID, ev, "")
}

// broadcastRoomExcept delivers to every connection in the room except
// the named one. Clients are collected under RLock and delivery runs
// lock-free; a connection whose egress stays full past the send
// timeout is kicked.
func (h *Hub) broadcastRoomExcept(roomID string, ev event.WsEvent, exceptConnID string) {
	clients := h.roomClients(roomID)
	if len(clients) == 0 {
		return
	}

	h.metrics.BroadcastsTotal.Inc()

	for _, c := range clients {
		if c.ID == exceptConnID {
			continue
		}
		h.deliver(c, ev)
	}
}

func (h *Hub) deliver(c *Client, ev event.WsEvent) {
	if c.SafeSend(ev, sendTimeout) {
		return
	}
	if c.IsClosed() {
		return
	}

	h.metrics.DroppedDeliveries.Inc()
	h.logger.Warn("egress full, kicking client",
		zap.String("connection_id", c.ID),
		zap.String("user_id", c.UserID))
	h.requestUnregister(c)
}

// -----------------------------------------------------------------
// Presence
// -----------------------------------------------------------------

// Presence broadcasts are full snapshots computed from the room table
// at send time, so stale or reordered deliveries self-correct.

func (h *Hub) broadcastChannelPresence(channelID string) {
	room := ChannelRoom(channelID)
	h.broadcastPresence(room, event.EventPresenceChannel, channelID)
}

func (h *Hub) broadcastSpacePresence(spaceID string) {
	room := SpaceRoom(spaceID)
	h.broadcastPresence(room, event.EventPresenceSpace, spaceID)
}

func (h *Hub) broadcastGlobalPresence() {
	h.broadcastPresence(GlobalRoom, event.EventPresenceGlobal, "")
}

func (h *Hub) broadcastPresence(roomID, eventName, scopeID string) {
	members := h.roomMembers(roomID)

	ev, err := event.New(eventName, event.PresencePayload{RoomID: scopeID, UserIDs: members})
	if err != nil {
		h.logger.Error("failed to build presence event", zap.Error(err))
		return
	}
	h.broadcastRoom(roomID, ev)
}

// -----------------------------------------------------------------
// Typing indicators
// -----------------------------------------------------------------

// setTyping updates the typing table and fans the transition out to
// the channel room, excluding the originator. Re-announcing the same
// state is a no-op.
func (h *Hub) setTyping(c *Client, channelID string, isTyping bool) {
	room := ChannelRoom(channelID)

	h.typingMu.Lock()
	users, ok := h.typing[room]
	if isTyping {
		if !ok {
			users = make(map[string]bool)
			h.typing[room] = users
		}
		if users[c.UserID] {
			h.typingMu.Unlock()
			return
		}
		users[c.UserID] = true
	} else {
		if !ok || !users[c.UserID] {
			h.typingMu.Unlock()
			return
		}
		delete(users, c.UserID)
		if len(users) == 0 {
			delete(h.typing, room)
		}
	}
	h.typingMu.Unlock()

	name := event.EventTypingStop
	if isTyping {
		name = event.EventTypingStart
	}

	ev, err := event.New(name, event.TypingEventPayload{ChannelID: channelID, UserID: c.UserID})
	if err != nil {
		h.logger.Error("failed to build typing event", zap.Error(err))
		return
	}
	h.broadcastRoomExcept(room, ev, c.ID)
}

// clearTypingOnLeave retracts a typing indicator when the last
// connection of the user has left the channel room. Other connections
// of the same user keep the indicator alive.
func (h *Hub) clearTypingOnLeave(c *Client, channelID string) {
	if h.userInRoom(ChannelRoom(channelID), c.UserID) {
		return
	}
	h.setTyping(c, channelID, false)
}

func (h *Hub) typingUsers(room string) []string {
	h.typingMu.RLock()
	defer h.typingMu.RUnlock()

	users := make([]string, 0, len(h.typing[room]))
	for userID := range h.typing[room] {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}
