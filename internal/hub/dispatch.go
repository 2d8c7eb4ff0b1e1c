package hub

import (
	"encoding/json"

	"go.uber.org/zap"

	"loftwire/internal/event"
	"loftwire/internal/repo"
)

// handleEvent routes one inbound event. It runs inline on the
// connection's read goroutine, so events from a single connection are
// always handled serially and in arrival order.
//
// Failed authorization and validation drop the event silently; the
// client is never told what exists.
func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	h.metrics.EventsInbound.WithLabelValues(ev.Event).Inc()

	switch ev.Event {
	case event.EventSpaceList:
		h.handleSpaceList(c)
	case event.EventSpaceSwitch:
		h.handleSpaceSwitch(ev, c)
	case event.EventChannelList:
		h.handleChannelList(ev, c)
	case event.EventChannelSwitch:
		h.handleChannelSwitch(ev, c)
	case event.EventMessageSend:
		h.handleMessageSend(ev, c)
	case event.EventMessageEdit:
		h.handleMessageEdit(ev, c)
	case event.EventMessageDelete:
		h.handleMessageDelete(ev, c)
	case event.EventReactionAdd:
		h.handleReaction(ev, c, true)
	case event.EventReactionRemove:
		h.handleReaction(ev, c, false)
	case event.EventMessageRead:
		h.handleMessageRead(ev, c)
	case event.EventTypingSet:
		h.handleTypingSet(ev, c)
	case event.EventVoiceJoin:
		h.handleVoiceJoin(ev, c)
	case event.EventVoiceLeave:
		h.handleVoiceLeave(c)
	case event.EventVoiceSignal:
		h.handleVoiceSignal(ev, c)
	default:
		h.logger.Debug("unknown event type",
			zap.String("event", ev.Event),
			zap.String("connection_id", c.ID))
	}
}

func (h *Hub) handleSpaceList(c *Client) {
	spaces, err := h.store.ListSpacesForUser(c.ctx, c.UserID)
	if err != nil {
		h.logger.Warn("space list failed",
			zap.String("user_id", c.UserID), zap.Error(err))
		return
	}

	summaries := make([]event.SpaceSummary, 0, len(spaces))
	for _, sp := range spaces {
		summaries = append(summaries, event.SpaceSummary{
			ID:     sp.ID.Hex(),
			Name:   sp.Name,
			Avatar: sp.Avatar,
		})
	}

	h.reply(c, event.EventSpaceListResult, event.SpaceListResultPayload{Spaces: summaries})
}

// handleSpaceSwitch moves the connection into a space room. Leaving
// the previous space also vacates the channel room; the client follows
// up with its own channel:switch.
func (h *Hub) handleSpaceSwitch(ev event.WsEvent, c *Client) {
	var payload event.SpaceSwitchPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.SpaceID == "" {
		h.dropEvent(c, ev.Event, "bad payload")
		return
	}

	if !h.authorizeSpace(c, payload.SpaceID) {
		return
	}

	if prev := c.ChannelID(); prev != "" {
		h.leaveChannelRoom(c, prev)
	}
	if prev := c.SpaceID(); prev != "" && prev != payload.SpaceID {
		h.leaveRoom(SpaceRoom(prev), c)
		h.broadcastSpacePresence(prev)
	}

	h.joinRoom(SpaceRoom(payload.SpaceID), c)
	c.setSpaceID(payload.SpaceID)
	h.broadcastSpacePresence(payload.SpaceID)
}

func (h *Hub) handleChannelList(ev event.WsEvent, c *Client) {
	var payload event.ChannelListPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.SpaceID == "" {
		h.dropEvent(c, ev.Event, "bad payload")
		return
	}

	if !h.authorizeSpace(c, payload.SpaceID) {
		return
	}

	channels, err := h.store.ListChannels(c.ctx, payload.SpaceID)
	if err != nil {
		h.logger.Warn("channel list failed",
			zap.String("space_id", payload.SpaceID), zap.Error(err))
		return
	}

	summaries := make([]event.ChannelSummary, 0, len(channels))
	for _, ch := range channels {
		summaries = append(summaries, event.ChannelSummary{
			ID:    ch.ID.Hex(),
			Name:  ch.Name,
			Kind:  ch.Kind,
			Topic: ch.Topic,
		})
	}

	h.reply(c, event.EventChannelListResult, event.ChannelListResultPayload{
		SpaceID:  payload.SpaceID,
		Channels: summaries,
	})
}

// handleChannelSwitch moves the connection into a channel room. The
// owning space is always re-derived from the channel document, never
// taken from the client, and membership is re-checked at switch time.
func (h *Hub) handleChannelSwitch(ev event.WsEvent, c *Client) {
	var payload event.ChannelSwitchPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.ChannelID == "" {
		h.dropEvent(c, ev.Event, "bad payload")
		return
	}

	if _, ok := h.authorizeChannel(c, payload.ChannelID); !ok {
		return
	}

	if prev := c.ChannelID(); prev != "" {
		if prev == payload.ChannelID {
			return
		}
		h.leaveChannelRoom(c, prev)
	}

	h.joinRoom(ChannelRoom(payload.ChannelID), c)
	c.setChannelID(payload.ChannelID)
	h.broadcastChannelPresence(payload.ChannelID)

	h.sendBacklog(c, payload.ChannelID)
}

// sendBacklog delivers the channel's recent messages to the switching
// connection only.
func (h *Hub) sendBacklog(c *Client, channelID string) {
	messages, err := h.store.RecentMessages(c.ctx, channelID, 0)
	if err != nil {
		h.logger.Warn("backlog load failed",
			zap.String("channel_id", channelID), zap.Error(err))
		return
	}

	profiles := newProfileCache(h)
	envelopes := make([]event.MessageEnvelope, 0, len(messages))
	for i := range messages {
		envelopes = append(envelopes, h.buildEnvelope(c.ctx, &messages[i], c.UserID, "", profiles))
	}

	h.reply(c, event.EventMessageBacklog, event.MessageBacklogPayload{
		ChannelID: channelID,
		Messages:  envelopes,
	})
}

func (h *Hub) handleTypingSet(ev event.WsEvent, c *Client) {
	var payload event.TypingPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.ChannelID == "" {
		h.dropEvent(c, ev.Event, "bad payload")
		return
	}

	// Typing only fans out inside the room the connection occupies.
	if c.ChannelID() != payload.ChannelID {
		h.dropEvent(c, ev.Event, "not in channel")
		return
	}

	h.setTyping(c, payload.ChannelID, payload.IsTyping)
}

// -----------------------------------------------------------------
// Shared authorization and helpers
// -----------------------------------------------------------------

// authorizeSpace re-checks membership against the store. Authorization
// is never cached on the connection; a revoked membership takes effect
// on the next action.
func (h *Hub) authorizeSpace(c *Client, spaceID string) bool {
	ok, err := h.store.IsSpaceMember(c.ctx, spaceID, c.UserID)
	if err != nil {
		h.logger.Warn("membership check failed",
			zap.String("space_id", spaceID),
			zap.String("user_id", c.UserID),
			zap.Error(err))
		return false
	}
	if !ok {
		h.dropEvent(c, "space access", "not a member")
	}
	return ok
}

// authorizeChannel resolves the channel's owning space and re-checks
// membership in one step.
func (h *Hub) authorizeChannel(c *Client, channelID string) (repo.ChannelOwner, bool) {
	owner, err := h.store.GetChannelOwner(c.ctx, channelID)
	if err != nil {
		h.dropEventErr(c, "channel access", err)
		return repo.ChannelOwner{}, false
	}
	if !h.authorizeSpace(c, owner.SpaceID) {
		return repo.ChannelOwner{}, false
	}
	return owner, true
}

func (h *Hub) reply(c *Client, name string, payload any) {
	ev, err := event.New(name, payload)
	if err != nil {
		h.logger.Error("failed to build event",
			zap.String("event", name), zap.Error(err))
		return
	}
	h.deliver(c, ev)
}

func (h *Hub) dropEvent(c *Client, eventName, reason string) {
	h.logger.Debug("event dropped",
		zap.String("event", eventName),
		zap.String("connection_id", c.ID),
		zap.String("reason", reason))
}

func (h *Hub) dropEventErr(c *Client, eventName string, err error) {
	h.logger.Debug("event dropped",
		zap.String("event", eventName),
		zap.String("connection_id", c.ID),
		zap.Error(err))
}
