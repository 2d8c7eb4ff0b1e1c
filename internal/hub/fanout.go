package hub

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"loftwire/internal/event"
	"loftwire/internal/model"
	"loftwire/internal/push"
	"loftwire/internal/repo"
)

const notifyPreviewLimit = 120

// handleMessageSend runs the full pipeline for one posted message:
// authorize, persist, build the envelope once, broadcast to the
// channel room, then notify the rest of the space. Persistence failure
// aborts the broadcast; nothing is ever fanned out that is not stored.
func (h *Hub) handleMessageSend(ev event.WsEvent, c *Client) {
	started := time.Now()

	var payload event.MessageSendPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.ChannelID == "" {
		h.dropEvent(c, ev.Event, "bad payload")
		return
	}

	// An empty send carries nothing worth storing.
	if payload.Content == "" && len(payload.Attachments) == 0 {
		return
	}

	owner, ok := h.authorizeChannel(c, payload.ChannelID)
	if !ok {
		return
	}
	if owner.Kind == model.ChannelKindVoice {
		h.dropEvent(c, ev.Event, "voice channels carry no messages")
		return
	}

	chanOID, err := primitive.ObjectIDFromHex(payload.ChannelID)
	if err != nil {
		h.dropEvent(c, ev.Event, "bad channel id")
		return
	}

	msg := &model.Message{
		ChannelID: chanOID,
		AuthorID:  c.UserID,
		Content:   payload.Content,
		Spoiler:   payload.Spoiler,
		Reactions: []model.Reaction{},
		CreatedAt: time.Now().UTC(),
	}
	if payload.ReplyTo != nil {
		if replyOID, err := primitive.ObjectIDFromHex(*payload.ReplyTo); err == nil {
			msg.ReplyTo = &replyOID
		}
	}

	messageID, err := h.store.InsertMessage(c.ctx, msg)
	if err != nil {
		// Already logged with full detail by the store.
		return
	}
	msg.ID, _ = primitive.ObjectIDFromHex(messageID)

	if len(payload.Attachments) > 0 {
		docs := make([]model.Attachment, len(payload.Attachments))
		for i, a := range payload.Attachments {
			docs[i] = model.Attachment{
				URL:         a.URL,
				ContentType: a.ContentType,
				Name:        a.Name,
				Size:        a.Size,
			}
		}
		// Broadcasting attachments that never made it to storage would
		// hand clients URLs the history endpoint cannot return.
		if err := h.store.InsertAttachments(c.ctx, messageID, docs); err != nil {
			h.logger.Warn("attachment insert failed, send aborted",
				zap.String("message_id", messageID), zap.Error(err))
			return
		}
	}

	envelope := event.MessageEnvelope{
		ID:          messageID,
		ChannelID:   payload.ChannelID,
		Content:     payload.Content,
		Spoiler:     payload.Spoiler,
		AuthorID:    c.UserID,
		AuthorName:  c.DisplayName,
		AuthorColor: c.NameColor,
		CreatedAt:   msg.CreatedAt,
		Reactions:   []event.ReactionCount{},
		ReplyTo:     h.replyPreview(c.ctx, msg.ReplyTo, newProfileCache(h)),
		Attachments: envelopeAttachments(payload.Attachments),
		TempID:      payload.TempID,
	}

	newEv, err := event.New(event.EventMessageNew, envelope)
	if err != nil {
		h.logger.Error("failed to build message event", zap.Error(err))
		return
	}
	h.broadcastRoom(ChannelRoom(payload.ChannelID), newEv)

	h.notifySpaceMembers(c, owner.SpaceID, payload.ChannelID, messageID, envelope)

	h.metrics.FanoutDuration.Observe(time.Since(started).Seconds())
}

// notifySpaceMembers signals every member of the owning space except
// the author: a notify event to the user rooms of connected members,
// a push dispatch for members with zero live connections. Members
// viewing the channel get the notify too; clients suppress the badge
// for the channel they are looking at.
func (h *Hub) notifySpaceMembers(c *Client, spaceID, channelID, messageID string, envelope event.MessageEnvelope) {
	memberIDs, err := h.store.ListSpaceMemberIDs(c.ctx, spaceID)
	if err != nil {
		h.logger.Warn("member list for notify failed",
			zap.String("space_id", spaceID), zap.Error(err))
		return
	}

	preview := messagePreview(envelope)
	note := event.NotifyPayload{
		SpaceID:    spaceID,
		ChannelID:  channelID,
		MessageID:  messageID,
		AuthorName: envelope.AuthorName,
		Preview:    preview,
	}

	notifyEv, err := event.New(event.EventNotify, note)
	if err != nil {
		h.logger.Error("failed to build notify event", zap.Error(err))
		return
	}

	var offline []string
	for _, memberID := range memberIDs {
		if memberID == c.UserID {
			continue
		}
		if h.ConnectionCount(memberID) > 0 {
			h.broadcastRoom(UserRoom(memberID), notifyEv)
			continue
		}
		offline = append(offline, memberID)
	}

	if len(offline) > 0 {
		h.push.NotifyOffline(c.ctx, offline, push.Notification{
			Title: envelope.AuthorName,
			Body:  preview,
			Data: map[string]string{
				"spaceId":   spaceID,
				"channelId": channelID,
				"messageId": messageID,
			},
		})
	}
}

// handleMessageEdit replaces the content of a message the acting user
// authored. Anything else drops silently.
func (h *Hub) handleMessageEdit(ev event.WsEvent, c *Client) {
	var payload event.MessageEditPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil ||
		payload.MessageID == "" || payload.Content == "" {
		h.dropEvent(c, ev.Event, "bad payload")
		return
	}

	msg, ok := h.authorizeAuthoredMessage(c, payload.MessageID)
	if !ok {
		return
	}

	editedAt := time.Now().UTC()
	if err := h.store.UpdateMessage(c.ctx, payload.MessageID, payload.Content, editedAt); err != nil {
		h.logger.Warn("message edit failed",
			zap.String("message_id", payload.MessageID), zap.Error(err))
		return
	}

	msg.Content = payload.Content
	msg.EditedAt = &editedAt

	envelope := h.buildEnvelope(c.ctx, msg, "", "", newProfileCache(h))
	editedEv, err := event.New(event.EventMessageEdited, envelope)
	if err != nil {
		h.logger.Error("failed to build edit event", zap.Error(err))
		return
	}
	h.broadcastRoom(ChannelRoom(msg.ChannelID.Hex()), editedEv)
}

// handleMessageDelete removes a message the acting user authored and
// announces the removal to the channel room.
func (h *Hub) handleMessageDelete(ev event.WsEvent, c *Client) {
	var payload event.MessageDeletePayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.MessageID == "" {
		h.dropEvent(c, ev.Event, "bad payload")
		return
	}

	msg, ok := h.authorizeAuthoredMessage(c, payload.MessageID)
	if !ok {
		return
	}

	if err := h.store.DeleteMessage(c.ctx, payload.MessageID); err != nil {
		h.logger.Warn("message delete failed",
			zap.String("message_id", payload.MessageID), zap.Error(err))
		return
	}

	channelID := msg.ChannelID.Hex()
	deletedEv, err := event.New(event.EventMessageDeleted, event.MessageDeletedPayload{
		ChannelID: channelID,
		MessageID: payload.MessageID,
	})
	if err != nil {
		h.logger.Error("failed to build delete event", zap.Error(err))
		return
	}
	h.broadcastRoom(ChannelRoom(channelID), deletedEv)
}

// handleReaction adds or removes one reaction and broadcasts the full
// recomputed aggregate, never an increment.
func (h *Hub) handleReaction(ev event.WsEvent, c *Client, add bool) {
	var payload event.ReactionPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil ||
		payload.MessageID == "" || payload.Emoji == "" {
		h.dropEvent(c, ev.Event, "bad payload")
		return
	}

	msg, err := h.store.GetMessage(c.ctx, payload.MessageID)
	if err != nil {
		h.dropEventErr(c, ev.Event, err)
		return
	}
	channelID := msg.ChannelID.Hex()
	if _, ok := h.authorizeChannel(c, channelID); !ok {
		return
	}

	if add {
		err = h.store.UpsertReaction(c.ctx, payload.MessageID, c.UserID, payload.Emoji)
	} else {
		err = h.store.RemoveReaction(c.ctx, payload.MessageID, c.UserID, payload.Emoji)
	}
	if err != nil {
		h.logger.Warn("reaction update failed",
			zap.String("message_id", payload.MessageID), zap.Error(err))
		return
	}

	counts, err := h.store.ReactionCounts(c.ctx, payload.MessageID, "")
	if err != nil {
		h.logger.Warn("reaction recount failed",
			zap.String("message_id", payload.MessageID), zap.Error(err))
		return
	}

	aggEv, err := event.New(event.EventReactionAggregate, event.ReactionAggregatePayload{
		MessageID: payload.MessageID,
		ChannelID: channelID,
		Counts:    toEventCounts(counts),
	})
	if err != nil {
		h.logger.Error("failed to build reaction event", zap.Error(err))
		return
	}
	h.broadcastRoom(ChannelRoom(channelID), aggEv)
}

// handleMessageRead records the read cutoff and hints the rest of the
// room with a lightweight receipt.
func (h *Hub) handleMessageRead(ev event.WsEvent, c *Client) {
	var payload event.MessageReadPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil ||
		payload.ChannelID == "" || payload.MessageID == "" {
		h.dropEvent(c, ev.Event, "bad payload")
		return
	}

	if _, ok := h.authorizeChannel(c, payload.ChannelID); !ok {
		return
	}

	if err := h.store.MarkReadUpTo(c.ctx, payload.ChannelID, c.UserID, payload.MessageID); err != nil {
		h.logger.Warn("mark read failed",
			zap.String("channel_id", payload.ChannelID), zap.Error(err))
		return
	}

	seenEv, err := event.New(event.EventMessageSeen, event.MessageSeenPayload{
		ChannelID: payload.ChannelID,
		MessageID: payload.MessageID,
		UserID:    c.UserID,
	})
	if err != nil {
		h.logger.Error("failed to build seen event", zap.Error(err))
		return
	}
	h.broadcastRoomExcept(ChannelRoom(payload.ChannelID), seenEv, c.ID)
}

// authorizeAuthoredMessage loads a message and verifies both authorship
// and current space membership.
func (h *Hub) authorizeAuthoredMessage(c *Client, messageID string) (*model.Message, bool) {
	msg, err := h.store.GetMessage(c.ctx, messageID)
	if err != nil {
		h.dropEventErr(c, "message access", err)
		return nil, false
	}
	if msg.AuthorID != c.UserID {
		h.dropEvent(c, "message access", "not the author")
		return nil, false
	}
	if _, ok := h.authorizeChannel(c, msg.ChannelID.Hex()); !ok {
		return nil, false
	}
	return msg, true
}

// -----------------------------------------------------------------
// Envelope construction
// -----------------------------------------------------------------

// profileCache deduplicates profile lookups within one fan-out or
// backlog build. Never reused across operations.
type profileCache struct {
	hub      *Hub
	profiles map[string]*model.Profile
}

func newProfileCache(h *Hub) *profileCache {
	return &profileCache{hub: h, profiles: make(map[string]*model.Profile)}
}

func (pc *profileCache) get(ctx context.Context, userID string) *model.Profile {
	if p, ok := pc.profiles[userID]; ok {
		return p
	}
	p, err := pc.hub.users.GetProfile(ctx, userID)
	if err != nil {
		p = &model.Profile{UserID: userID, DisplayName: userID}
	}
	pc.profiles[userID] = p
	return p
}

// buildEnvelope assembles the client-ready form of a stored message.
// viewerID scopes the Me flag on reaction counts; empty means a
// room-wide delivery where Me is meaningless.
func (h *Hub) buildEnvelope(ctx context.Context, msg *model.Message, viewerID, tempID string, profiles *profileCache) event.MessageEnvelope {
	author := profiles.get(ctx, msg.AuthorID)

	envelope := event.MessageEnvelope{
		ID:          msg.ID.Hex(),
		ChannelID:   msg.ChannelID.Hex(),
		Content:     msg.Content,
		Spoiler:     msg.Spoiler,
		AuthorID:    msg.AuthorID,
		AuthorName:  author.DisplayName,
		AuthorColor: author.NameColor,
		CreatedAt:   msg.CreatedAt,
		EditedAt:    msg.EditedAt,
		Reactions:   toEventCounts(repo.FoldReactions(msg.Reactions, viewerID)),
		ReplyTo:     h.replyPreview(ctx, msg.ReplyTo, profiles),
		Attachments: []event.EnvelopeAttachment{},
		TempID:      tempID,
	}

	attachments, err := h.store.ListAttachments(ctx, envelope.ID)
	if err != nil {
		h.logger.Warn("attachment load failed",
			zap.String("message_id", envelope.ID), zap.Error(err))
	}
	for _, a := range attachments {
		envelope.Attachments = append(envelope.Attachments, event.EnvelopeAttachment{
			URL:         a.URL,
			ContentType: a.ContentType,
			Name:        a.Name,
			Size:        a.Size,
		})
	}

	return envelope
}

// replyPreview resolves the referenced message into a truncated quote.
// A missing or unresolvable reference renders without the quote rather
// than failing the delivery.
func (h *Hub) replyPreview(ctx context.Context, replyTo *primitive.ObjectID, profiles *profileCache) *event.ReplyPreview {
	if replyTo == nil {
		return nil
	}

	ref, err := h.store.GetMessage(ctx, replyTo.Hex())
	if err != nil {
		return nil
	}

	author := profiles.get(ctx, ref.AuthorID)
	return &event.ReplyPreview{
		MessageID:  ref.ID.Hex(),
		AuthorID:   ref.AuthorID,
		AuthorName: author.DisplayName,
		Content:    truncate(ref.Content, notifyPreviewLimit),
	}
}

func envelopeAttachments(descriptors []event.AttachmentDescriptor) []event.EnvelopeAttachment {
	out := make([]event.EnvelopeAttachment, 0, len(descriptors))
	for _, a := range descriptors {
		out = append(out, event.EnvelopeAttachment{
			URL:         a.URL,
			ContentType: a.ContentType,
			Name:        a.Name,
			Size:        a.Size,
		})
	}
	return out
}

func toEventCounts(counts []repo.ReactionCount) []event.ReactionCount {
	out := make([]event.ReactionCount, 0, len(counts))
	for _, rc := range counts {
		out = append(out, event.ReactionCount{Emoji: rc.Emoji, Count: rc.Count, Me: rc.Me})
	}
	return out
}

func messagePreview(envelope event.MessageEnvelope) string {
	if envelope.Content != "" {
		return truncate(envelope.Content, notifyPreviewLimit)
	}
	if len(envelope.Attachments) > 0 {
		return envelope.Attachments[0].Name
	}
	return ""
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
