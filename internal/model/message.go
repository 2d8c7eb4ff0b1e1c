package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message represents a chat message in MongoDB.
type Message struct {
	ID        primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	ChannelID primitive.ObjectID  `json:"channelId" bson:"channel_id"`
	AuthorID  string              `json:"authorId" bson:"author_id"`
	Content   string              `json:"content" bson:"content"`
	Spoiler   bool                `json:"spoiler" bson:"spoiler"`
	ReplyTo   *primitive.ObjectID `json:"replyTo" bson:"reply_to"`
	Reactions []Reaction          `json:"reactions" bson:"reactions"`
	CreatedAt time.Time           `json:"createdAt" bson:"created_at"`
	EditedAt  *time.Time          `json:"editedAt" bson:"edited_at"`
}

// Reaction is one user's use of one reaction symbol on a message.
type Reaction struct {
	UserID string `json:"userId" bson:"user_id"`
	Emoji  string `json:"emoji" bson:"emoji"`
}

// Attachment is a file attached to a message. Stored in its own
// collection keyed by message ID; the upload itself lives in object
// storage and is referenced by URL only.
type Attachment struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	MessageID   primitive.ObjectID `json:"messageId" bson:"message_id"`
	URL         string             `json:"url" bson:"url"`
	ContentType string             `json:"contentType" bson:"content_type"`
	Name        string             `json:"name" bson:"name"`
	Size        int64              `json:"size" bson:"size"`
}

// ReadState records, per user and channel, the newest message the user
// has marked as read. One document per (channel, user) pair, upserted
// in bulk rather than one row per message.
type ReadState struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ChannelID primitive.ObjectID `json:"channelId" bson:"channel_id"`
	UserID    string             `json:"userId" bson:"user_id"`
	MessageID primitive.ObjectID `json:"messageId" bson:"message_id"`
	ReadAt    time.Time          `json:"readAt" bson:"read_at"`
}
