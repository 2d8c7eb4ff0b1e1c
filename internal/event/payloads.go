package event

import "encoding/json"

// -----------------------------------------------------------------
// Payloads - Client to Server
// -----------------------------------------------------------------

// SpaceSwitchPayload selects the active space for the connection.
type SpaceSwitchPayload struct {
	SpaceID string `json:"spaceId"`
}

// ChannelListPayload requests the channel list of a space.
type ChannelListPayload struct {
	SpaceID string `json:"spaceId"`
}

// ChannelSwitchPayload selects the active channel for the connection.
// The owning space is always re-derived server-side; any client-sent
// space ID is ignored.
type ChannelSwitchPayload struct {
	ChannelID string `json:"channelId"`
}

// AttachmentDescriptor describes one uploaded file referenced by a send.
type AttachmentDescriptor struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
}

// MessageSendPayload posts a message. Content may be empty only when at
// least one attachment is present. TempID is an opaque client token
// echoed back so the sender can reconcile its optimistic UI; the server
// never interprets it.
type MessageSendPayload struct {
	ChannelID   string                 `json:"channelId"`
	Content     string                 `json:"content"`
	Spoiler     bool                   `json:"spoiler,omitempty"`
	ReplyTo     *string                `json:"replyTo,omitempty"`
	Attachments []AttachmentDescriptor `json:"attachments,omitempty"`
	TempID      string                 `json:"tempId,omitempty"`
}

// MessageEditPayload replaces the content of an existing message.
type MessageEditPayload struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

// MessageDeletePayload removes an existing message.
type MessageDeletePayload struct {
	MessageID string `json:"messageId"`
}

// ReactionPayload adds or removes a single reaction symbol.
type ReactionPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// MessageReadPayload marks all messages in the channel up to and
// including MessageID as read by the acting user.
type MessageReadPayload struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
}

// TypingPayload announces or retracts a typing indicator.
type TypingPayload struct {
	ChannelID string `json:"channelId"`
	IsTyping  bool   `json:"isTyping"`
}

// VoiceJoinPayload joins the voice room of a voice channel.
type VoiceJoinPayload struct {
	ChannelID string `json:"channelId"`
}

// VoiceSignalPayload relays Data verbatim to the target connection.
// Data is never parsed, validated, or persisted by the server.
type VoiceSignalPayload struct {
	TargetConnectionID string          `json:"targetConnectionId"`
	Data               json.RawMessage `json:"data"`
}

// -----------------------------------------------------------------
// Payloads - Server to Client
// -----------------------------------------------------------------

// PresencePayload is a full member-list snapshot for one room. RoomID
// is the channel or space identifier (empty for the global scope).
// Snapshots are computed from the authoritative set at send time, so
// out-of-order delivery self-corrects.
type PresencePayload struct {
	RoomID  string   `json:"roomId,omitempty"`
	UserIDs []string `json:"userIds"`
}

// TypingEventPayload identifies who is typing where.
type TypingEventPayload struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
}

// ReactionCount is one entry of a reaction aggregate. Me reports
// whether the viewing user has used the symbol; it is only meaningful
// on per-viewer deliveries and is omitted from room-wide aggregates.
type ReactionCount struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
	Me    bool   `json:"me,omitempty"`
}

// ReactionAggregatePayload carries the full recomputed counts for one
// message. Always a snapshot, never an increment, so lost or reordered
// broadcasts self-heal on the next change.
type ReactionAggregatePayload struct {
	MessageID string          `json:"messageId"`
	ChannelID string          `json:"channelId"`
	Counts    []ReactionCount `json:"counts"`
}

// MessageSeenPayload is the read-receipt hint for a channel.
type MessageSeenPayload struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

// MessageDeletedPayload names the removed message.
type MessageDeletedPayload struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
}

// NotifyPayload is the lightweight signal sent to a member's private
// room when a message lands in a channel they are not viewing.
type NotifyPayload struct {
	SpaceID    string `json:"spaceId"`
	ChannelID  string `json:"channelId"`
	MessageID  string `json:"messageId"`
	AuthorName string `json:"authorName"`
	Preview    string `json:"preview"`
}

// SpaceSummary is one entry of a space:list_result response.
type SpaceSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// SpaceListResultPayload answers space:list.
type SpaceListResultPayload struct {
	Spaces []SpaceSummary `json:"spaces"`
}

// ChannelSummary is one entry of a channel:list_result response.
type ChannelSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Topic string `json:"topic,omitempty"`
}

// ChannelListResultPayload answers channel:list.
type ChannelListResultPayload struct {
	SpaceID  string           `json:"spaceId"`
	Channels []ChannelSummary `json:"channels"`
}

// VoicePeer identifies one connection inside a voice room.
type VoicePeer struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	DisplayName  string `json:"displayName"`
}

// VoiceRosterPayload is sent to a connection that just joined voice.
type VoiceRosterPayload struct {
	ChannelID string      `json:"channelId"`
	Peers     []VoicePeer `json:"peers"`
}

// VoicePeerJoinedPayload announces a new voice-room peer.
type VoicePeerJoinedPayload struct {
	ChannelID string    `json:"channelId"`
	Peer      VoicePeer `json:"peer"`
}

// VoicePeerLeftPayload announces a departed voice-room peer.
type VoicePeerLeftPayload struct {
	ChannelID    string `json:"channelId"`
	ConnectionID string `json:"connectionId"`
}

// VoiceSignalEventPayload is the relayed form of VoiceSignalPayload,
// stamped with the sender's connection ID so the receiver can answer.
type VoiceSignalEventPayload struct {
	FromConnectionID string          `json:"fromConnectionId"`
	Data             json.RawMessage `json:"data"`
}
