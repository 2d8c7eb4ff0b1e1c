package event

import "time"

// ReplyPreview is the truncated rendering of a referenced message,
// embedded in envelopes so clients can paint the quote without a
// second fetch.
type ReplyPreview struct {
	MessageID  string `json:"messageId"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Content    string `json:"content"`
}

// EnvelopeAttachment is the client-ready form of a stored attachment.
type EnvelopeAttachment struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
}

// MessageBacklogPayload carries the recent messages of a channel in
// chronological order, delivered to a connection right after it
// switches into the channel.
type MessageBacklogPayload struct {
	ChannelID string            `json:"channelId"`
	Messages  []MessageEnvelope `json:"messages"`
}

// MessageEnvelope is the fully built, client-ready payload for
// message:new and message:edited. Built fresh per delivery from
// gateway return values; never cached across messages. TempID echoes
// the sender's idempotency token so their optimistic UI can reconcile.
type MessageEnvelope struct {
	ID          string               `json:"id"`
	ChannelID   string               `json:"channelId"`
	Content     string               `json:"content"`
	Spoiler     bool                 `json:"spoiler"`
	AuthorID    string               `json:"authorId"`
	AuthorName  string               `json:"authorName"`
	AuthorColor string               `json:"authorColor"`
	CreatedAt   time.Time            `json:"createdAt"`
	EditedAt    *time.Time           `json:"editedAt,omitempty"`
	Reactions   []ReactionCount      `json:"reactions"`
	ReplyTo     *ReplyPreview        `json:"replyTo,omitempty"`
	Attachments []EnvelopeAttachment `json:"attachments"`
	TempID      string               `json:"tempId,omitempty"`
}
