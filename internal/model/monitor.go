package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API.
type MonitorResponse struct {
	Status      string          `json:"status"` // "healthy" or "idle"
	Connections ConnectionStats `json:"connections"`
	Rooms       RoomStats       `json:"rooms"`
	Voice       VoiceStats      `json:"voice"`
	Clients     []ClientInfo    `json:"clients"`
}

// ConnectionStats holds connection-level statistics.
type ConnectionStats struct {
	TotalConnections int `json:"totalConnections"` // live WebSocket connections
	DistinctUsers    int `json:"distinctUsers"`    // users with at least one connection
}

// RoomStats holds room statistics across all namespaces.
type RoomStats struct {
	TotalRooms  int        `json:"totalRooms"`
	RoomDetails []RoomInfo `json:"roomDetails"`
}

// RoomInfo describes a single live room.
type RoomInfo struct {
	Name        string   `json:"name"`
	Connections int      `json:"connections"`
	MemberIDs   []string `json:"memberIds"` // distinct user IDs present
	Typing      []string `json:"typing,omitempty"`
}

// VoiceStats holds voice-room statistics.
type VoiceStats struct {
	TotalVoiceRooms int         `json:"totalVoiceRooms"`
	VoiceDetails    []VoiceInfo `json:"voiceDetails"`
}

// VoiceInfo describes a single voice room.
type VoiceInfo struct {
	ChannelID string   `json:"channelId"`
	PeerCount int      `json:"peerCount"`
	UserIDs   []string `json:"userIds"`
}

// ClientInfo describes a connected client.
type ClientInfo struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	DisplayName  string `json:"displayName"`
	ChannelRoom  string `json:"channelRoom,omitempty"`
	SpaceRoom    string `json:"spaceRoom,omitempty"`
	VoiceRoom    string `json:"voiceRoom,omitempty"`
}
