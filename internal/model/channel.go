package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Channel kinds. Only text and voice matter to the real-time tier;
// kanban, form, and habit channels stream their own CRUD events but
// share the same room mechanics.
const (
	ChannelKindText   = "text"
	ChannelKindVoice  = "voice"
	ChannelKindKanban = "kanban"
	ChannelKindForm   = "form"
	ChannelKindHabit  = "habit"
)

// Channel represents a typed stream inside a space.
type Channel struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SpaceID   primitive.ObjectID `json:"spaceId" bson:"space_id"`
	Name      string             `json:"name" bson:"name"`
	Kind      string             `json:"kind" bson:"kind"`
	Topic     string             `json:"topic" bson:"topic"`
	CreatedBy string             `json:"createdBy" bson:"created_by"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updated_at"`
	IsActive  bool               `json:"isActive" bson:"is_active"`
}
