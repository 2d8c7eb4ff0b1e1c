package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user document in MongoDB.
type User struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID      string             `json:"userId" bson:"user_id"`
	Username    string             `json:"username" bson:"username"`
	Email       string             `json:"email" bson:"email"`
	DisplayName string             `json:"displayName" bson:"display_name"`
	NameColor   string             `json:"nameColor" bson:"name_color"`
	Avatar      string             `json:"avatar" bson:"avatar"`
	IsActive    bool               `json:"isActive" bson:"is_active"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt   *time.Time         `json:"updatedAt" bson:"updated_at"`
}

// Profile is the slice of User denormalized onto a connection at
// handshake time for low-latency rendering of authored events.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	NameColor   string `json:"nameColor"`
}
