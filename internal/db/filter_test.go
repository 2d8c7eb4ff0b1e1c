package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFilterBuilderChaining(t *testing.T) {
	filter := NewFilter().
		Eq("user_id", "alice").
		Eq("is_active", true).
		Build()

	assert.Equal(t, bson.M{"user_id": "alice", "is_active": true}, filter)
}

func TestFilterBuilderObjectID(t *testing.T) {
	oid := primitive.NewObjectID()

	filter := NewFilter().ObjectID("_id", oid.Hex()).Build()
	assert.Equal(t, bson.M{"_id": oid}, filter)

	// invalid hex leaves the field out rather than matching nothing
	filter = NewFilter().ObjectID("_id", "not-hex").Build()
	assert.Empty(t, filter)
}

func TestFilterBuilderOverwritesField(t *testing.T) {
	filter := NewFilter().
		Eq("author_id", "alice").
		Eq("author_id", "bob").
		Build()

	require.Contains(t, filter, "author_id")
	assert.Equal(t, bson.M{"author_id": "bob"}, filter)
}
