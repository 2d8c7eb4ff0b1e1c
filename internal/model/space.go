package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Space represents a workspace/tenant container in MongoDB. Membership
// is denormalized into MemberIDs for the hot authorization path; the
// Members array carries display metadata for the roster UI.
type Space struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Avatar    string             `json:"avatar" bson:"avatar"`
	OwnerID   string             `json:"ownerId" bson:"owner_id"`
	MemberIDs []string           `json:"memberIds" bson:"member_ids"`
	Members   []SpaceMember      `json:"members" bson:"members"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updated_at"`
	IsActive  bool               `json:"isActive" bson:"is_active"`
}

// SpaceMember is one user's membership record inside a space.
type SpaceMember struct {
	UserID   string    `json:"userId" bson:"user_id"`
	Username string    `json:"username" bson:"username"`
	Role     string    `json:"role" bson:"role"`
	JoinedAt time.Time `json:"joinedAt" bson:"joined_at"`
	IsActive bool      `json:"isActive" bson:"is_active"`
}
