package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"loftwire/internal/model"
)

func TestFoldReactionsAggregatesPerEmoji(t *testing.T) {
	reactions := []model.Reaction{
		{UserID: "alice", Emoji: "🔥"},
		{UserID: "bob", Emoji: "🔥"},
		{UserID: "bob", Emoji: "👍"},
	}

	counts := FoldReactions(reactions, "alice")

	require.Len(t, counts, 2)
	// sorted by emoji for deterministic payloads
	assert.Equal(t, "👍", counts[0].Emoji)
	assert.Equal(t, 1, counts[0].Count)
	assert.False(t, counts[0].Me)

	assert.Equal(t, "🔥", counts[1].Emoji)
	assert.Equal(t, 2, counts[1].Count)
	assert.True(t, counts[1].Me)
}

func TestFoldReactionsEmptyInput(t *testing.T) {
	counts := FoldReactions(nil, "alice")
	assert.Empty(t, counts)
	assert.NotNil(t, counts)
}

func TestFoldReactionsViewerScoping(t *testing.T) {
	reactions := []model.Reaction{
		{UserID: "alice", Emoji: "🔥"},
	}

	asViewer := FoldReactions(reactions, "alice")
	require.Len(t, asViewer, 1)
	assert.True(t, asViewer[0].Me)

	// empty viewer never matches, for room-wide aggregates
	roomWide := FoldReactions(reactions, "")
	require.Len(t, roomWide, 1)
	assert.False(t, roomWide[0].Me)
}

func TestHandleReadErrorNeverSwallows(t *testing.T) {
	s := &mongoStore{logger: zap.NewNop()}

	assert.ErrorIs(t, s.handleReadError(context.DeadlineExceeded, "c1"), ErrOperationTimeout)
	assert.ErrorIs(t, s.handleReadError(context.Canceled, "c1"), context.Canceled)

	// an empty result set is not an error; callers get an empty page,
	// never a nil result with a nil error
	err := s.handleReadError(mongo.ErrNoDocuments, "c1")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	err = s.handleReadError(errors.New("socket reset"), "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel messages")
}
