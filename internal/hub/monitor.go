package hub

import (
	"sort"
	"strings"

	"loftwire/internal/model"
)

// MonitorService gathers hub statistics for the operator API.
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service.
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics.
func (ms *MonitorService) GetStats() model.MonitorResponse {
	connectionStats := ms.getConnectionStats()
	roomStats, voiceStats := ms.getRoomStats()
	clients := ms.getClientList()

	status := "healthy"
	if connectionStats.TotalConnections == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status:      status,
		Connections: connectionStats,
		Rooms:       roomStats,
		Voice:       voiceStats,
		Clients:     clients,
	}
}

func (ms *MonitorService) getConnectionStats() model.ConnectionStats {
	ms.hub.connsMu.RLock()
	defer ms.hub.connsMu.RUnlock()

	return model.ConnectionStats{
		TotalConnections: len(ms.hub.conns),
		DistinctUsers:    len(ms.hub.userConns),
	}
}

// getRoomStats walks every shard and splits rooms into the general
// table and the voice table.
func (ms *MonitorService) getRoomStats() (model.RoomStats, model.VoiceStats) {
	roomStats := model.RoomStats{RoomDetails: make([]model.RoomInfo, 0)}
	voiceStats := model.VoiceStats{VoiceDetails: make([]model.VoiceInfo, 0)}

	for _, bucket := range ms.hub.shards {
		bucket.RLock()
		names := make([]string, 0, len(bucket.rooms))
		for name := range bucket.rooms {
			names = append(names, name)
		}
		bucket.RUnlock()

		for _, name := range names {
			clients := ms.hub.roomClients(name)
			if len(clients) == 0 {
				continue
			}
			members := ms.hub.roomMembers(name)

			if channelID, ok := strings.CutPrefix(name, "voice:"); ok {
				voiceStats.VoiceDetails = append(voiceStats.VoiceDetails, model.VoiceInfo{
					ChannelID: channelID,
					PeerCount: len(clients),
					UserIDs:   members,
				})
				voiceStats.TotalVoiceRooms++
				continue
			}

			roomStats.RoomDetails = append(roomStats.RoomDetails, model.RoomInfo{
				Name:        name,
				Connections: len(clients),
				MemberIDs:   members,
				Typing:      ms.hub.typingUsers(name),
			})
			roomStats.TotalRooms++
		}
	}

	sort.Slice(roomStats.RoomDetails, func(i, j int) bool {
		return roomStats.RoomDetails[i].Name < roomStats.RoomDetails[j].Name
	})
	sort.Slice(voiceStats.VoiceDetails, func(i, j int) bool {
		return voiceStats.VoiceDetails[i].ChannelID < voiceStats.VoiceDetails[j].ChannelID
	})

	return roomStats, voiceStats
}

func (ms *MonitorService) getClientList() []model.ClientInfo {
	ms.hub.connsMu.RLock()
	clients := make([]*Client, 0, len(ms.hub.conns))
	for _, c := range ms.hub.conns {
		clients = append(clients, c)
	}
	ms.hub.connsMu.RUnlock()

	infos := make([]model.ClientInfo, 0, len(clients))
	for _, c := range clients {
		infos = append(infos, model.ClientInfo{
			ConnectionID: c.ID,
			UserID:       c.UserID,
			DisplayName:  c.DisplayName,
			ChannelRoom:  c.ChannelID(),
			SpaceRoom:    c.SpaceID(),
			VoiceRoom:    c.VoiceChannelID(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectionID < infos[j].ConnectionID
	})
	return infos
}
