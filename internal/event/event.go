package event

import "encoding/json"

// WsEvent is the wire envelope for every message exchanged over a
// WebSocket connection, in both directions. Payload stays opaque until
// the event name selects a concrete payload type.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds a WsEvent by marshaling payload. All payload types are
// plain structs, so a marshal failure is a programming error and is
// surfaced to the caller rather than swallowed.
func New(name string, payload any) (WsEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, err
	}
	return WsEvent{Event: name, Payload: raw}, nil
}

// Event Types - Client to Server
const (
	// EventSpaceList - request the list of spaces the user belongs to
	EventSpaceList = "space:list"

	// EventSpaceSwitch - select a space; moves the connection into the
	// space room and triggers a space presence broadcast
	EventSpaceSwitch = "space:switch"

	// EventChannelList - request the channels of a space
	EventChannelList = "channel:list"

	// EventChannelSwitch - select a channel; membership is re-checked
	// against the channel's owning space at switch time
	EventChannelSwitch = "channel:switch"

	// EventMessageSend - post a message to a channel
	EventMessageSend = "message:send"

	// EventMessageEdit - edit a previously sent message (author only)
	EventMessageEdit = "message:edit"

	// EventMessageDelete - delete a previously sent message (author only)
	EventMessageDelete = "message:delete"

	// EventReactionAdd - add a reaction to a message
	EventReactionAdd = "reaction:add"

	// EventReactionRemove - remove a reaction from a message
	EventReactionRemove = "reaction:remove"

	// EventMessageRead - mark everything up to a message as read
	EventMessageRead = "message:read"

	// EventTypingSet - announce or retract a typing indicator
	EventTypingSet = "typing:set"

	// EventVoiceJoin - join the voice room of a voice channel
	EventVoiceJoin = "voice:join"

	// EventVoiceLeave - leave the current voice room
	EventVoiceLeave = "voice:leave"

	// EventVoiceSignal - relay an opaque signaling payload to a peer
	EventVoiceSignal = "voice:signal"
)

// Event Types - Server to Client
const (
	// EventPresenceChannel - full member snapshot of a channel room
	EventPresenceChannel = "presence:channel"

	// EventPresenceSpace - full member snapshot of a space room
	EventPresenceSpace = "presence:space"

	// EventPresenceGlobal - full member snapshot of the global room
	EventPresenceGlobal = "presence:global"

	// EventTypingStart - a user started typing in a channel
	EventTypingStart = "typing:start"

	// EventTypingStop - a user stopped typing in a channel
	EventTypingStop = "typing:stop"

	// EventMessageNew - a fully built message envelope for the channel room
	EventMessageNew = "message:new"

	// EventMessageEdited - content of an existing message changed
	EventMessageEdited = "message:edited"

	// EventMessageDeleted - a message was removed
	EventMessageDeleted = "message:deleted"

	// EventReactionAggregate - full recomputed reaction counts for a message
	EventReactionAggregate = "reaction:aggregate"

	// EventMessageSeen - read-receipt hint carrying only the cutoff message
	EventMessageSeen = "message:seen"

	// EventSpaceListResult - response to space:list
	EventSpaceListResult = "space:list_result"

	// EventChannelListResult - response to channel:list
	EventChannelListResult = "channel:list_result"

	// EventMessageBacklog - recent messages delivered after channel:switch
	EventMessageBacklog = "message:backlog"

	// EventVoiceRoster - current peers, sent to a connection joining voice
	EventVoiceRoster = "voice:roster"

	// EventVoicePeerJoined - a new connection entered the voice room
	EventVoicePeerJoined = "voice:peer_joined"

	// EventVoicePeerLeft - a connection left the voice room
	EventVoicePeerLeft = "voice:peer_left"

	// EventNotify - lightweight in-app notification for space members not
	// currently viewing the channel
	EventNotify = "notify"
)
