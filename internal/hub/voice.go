package hub

import (
	"encoding/json"

	"go.uber.org/zap"

	"loftwire/internal/event"
	"loftwire/internal/model"
)

// Voice rooms are keyed by connection, not user: the same user joining
// from two devices is two distinct peers. The server relays signaling
// payloads verbatim and never inspects them.

func (h *Hub) handleVoiceJoin(ev event.WsEvent, c *Client) {
	var payload event.VoiceJoinPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.ChannelID == "" {
		h.dropEvent(c, ev.Event, "bad payload")
		return
	}

	owner, ok := h.authorizeChannel(c, payload.ChannelID)
	if !ok {
		return
	}
	if owner.Kind != model.ChannelKindVoice {
		h.dropEvent(c, ev.Event, "not a voice channel")
		return
	}

	// One voice room per connection; joining another leaves the first.
	if prev := c.VoiceChannelID(); prev != "" {
		if prev == payload.ChannelID {
			return
		}
		h.leaveVoiceRoom(c, prev)
	}

	room := VoiceRoom(payload.ChannelID)
	peers := h.roomClients(room)

	h.joinRoom(room, c)
	c.setVoiceChannelID(payload.ChannelID)

	// Roster for the joiner, snapshot taken before the join so the
	// joiner is not their own peer.
	roster := make([]event.VoicePeer, 0, len(peers))
	for _, p := range peers {
		roster = append(roster, event.VoicePeer{
			ConnectionID: p.ID,
			UserID:       p.UserID,
			DisplayName:  p.DisplayName,
		})
	}
	h.reply(c, event.EventVoiceRoster, event.VoiceRosterPayload{
		ChannelID: payload.ChannelID,
		Peers:     roster,
	})

	joinedEv, err := event.New(event.EventVoicePeerJoined, event.VoicePeerJoinedPayload{
		ChannelID: payload.ChannelID,
		Peer: event.VoicePeer{
			ConnectionID: c.ID,
			UserID:       c.UserID,
			DisplayName:  c.DisplayName,
		},
	})
	if err != nil {
		h.logger.Error("failed to build peer joined event", zap.Error(err))
		return
	}
	h.broadcastRoomExcept(room, joinedEv, c.ID)
}

func (h *Hub) handleVoiceLeave(c *Client) {
	channelID := c.VoiceChannelID()
	if channelID == "" {
		return
	}
	h.leaveVoiceRoom(c, channelID)
}

// leaveVoiceRoom removes the connection from its voice room and
// announces the departure. Also runs on disconnect, so peers always
// observe a leave.
func (h *Hub) leaveVoiceRoom(c *Client, channelID string) {
	room := VoiceRoom(channelID)
	h.leaveRoom(room, c)
	c.setVoiceChannelID("")

	leftEv, err := event.New(event.EventVoicePeerLeft, event.VoicePeerLeftPayload{
		ChannelID:    channelID,
		ConnectionID: c.ID,
	})
	if err != nil {
		h.logger.Error("failed to build peer left event", zap.Error(err))
		return
	}
	h.broadcastRoom(room, leftEv)
}

// handleVoiceSignal relays an opaque payload to one peer in the same
// voice room. A target that is unknown, or in a different room, drops
// the signal silently.
func (h *Hub) handleVoiceSignal(ev event.WsEvent, c *Client) {
	var payload event.VoiceSignalPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.TargetConnectionID == "" {
		h.dropEvent(c, ev.Event, "bad payload")
		return
	}

	channelID := c.VoiceChannelID()
	if channelID == "" {
		h.dropEvent(c, ev.Event, "not in a voice room")
		return
	}

	target := h.clientByID(payload.TargetConnectionID)
	if target == nil || target.VoiceChannelID() != channelID {
		h.dropEvent(c, ev.Event, "unknown target")
		return
	}

	h.reply(target, event.EventVoiceSignal, event.VoiceSignalEventPayload{
		FromConnectionID: c.ID,
		Data:             payload.Data,
	})
}
