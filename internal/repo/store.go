package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"loftwire/internal/db"
	"loftwire/internal/model"
)

var (
	ErrInvalidMessage   = errors.New("invalid message: message cannot be nil")
	ErrInvalidChannelID = errors.New("invalid channel ID: cannot be empty")
	ErrInvalidID        = errors.New("invalid identifier")
	ErrNotFound         = errors.New("document not found")
	ErrOperationTimeout = errors.New("operation timeout exceeded")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 10 * time.Second

	// Retry configuration
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second

	backlogLimit = 50
)

// ChannelOwner is the authorization-relevant slice of a channel: the
// space that owns it and the channel kind.
type ChannelOwner struct {
	SpaceID string
	Kind    string
}

// ReactionCount is one entry of a recomputed reaction aggregate.
type ReactionCount struct {
	Emoji string
	Count int
	Me    bool
}

// Store is the persistence gateway consumed by the real-time tier.
// Implementations must be safe for concurrent use; callers never hold
// room-membership locks across these calls.
type Store interface {
	GetChannelOwner(ctx context.Context, channelID string) (ChannelOwner, error)
	IsSpaceMember(ctx context.Context, spaceID, userID string) (bool, error)
	ListSpaceMemberIDs(ctx context.Context, spaceID string) ([]string, error)
	ListSpacesForUser(ctx context.Context, userID string) ([]model.Space, error)
	ListChannels(ctx context.Context, spaceID string) ([]model.Channel, error)

	InsertMessage(ctx context.Context, msg *model.Message) (string, error)
	InsertAttachments(ctx context.Context, messageID string, attachments []model.Attachment) error
	GetMessage(ctx context.Context, messageID string) (*model.Message, error)
	UpdateMessage(ctx context.Context, messageID, content string, editedAt time.Time) error
	DeleteMessage(ctx context.Context, messageID string) error
	ListAttachments(ctx context.Context, messageID string) ([]model.Attachment, error)
	RecentMessages(ctx context.Context, channelID string, limit int64) ([]model.Message, error)
	ChannelMessages(ctx context.Context, channelID string, page int64) (*db.PaginatedResult[model.Message], error)

	UpsertReaction(ctx context.Context, messageID, userID, emoji string) error
	RemoveReaction(ctx context.Context, messageID, userID, emoji string) error
	ReactionCounts(ctx context.Context, messageID, viewerID string) ([]ReactionCount, error)

	MarkReadUpTo(ctx context.Context, channelID, userID, cutoffMessageID string) error
}

type mongoStore struct {
	con         *mongo.Database
	messages    *db.Repository[model.Message]
	attachments *db.Repository[model.Attachment]
	channels    *db.Repository[model.Channel]
	spaces      *db.Repository[model.Space]
	reads       *db.Repository[model.ReadState]
	logger      *zap.Logger
}

// NewStore builds the MongoDB-backed persistence gateway.
func NewStore(con *mongo.Database, logger *zap.Logger) Store {
	return &mongoStore{
		con:         con,
		messages:    db.NewRepository[model.Message](con, "messages"),
		attachments: db.NewRepository[model.Attachment](con, "attachments"),
		channels:    db.NewRepository[model.Channel](con, "channels"),
		spaces:      db.NewRepository[model.Space](con, "spaces"),
		reads:       db.NewRepository[model.ReadState](con, "reads"),
		logger:      logger,
	}
}

// -----------------------------------------------------------------------------
// Spaces and channels
// -----------------------------------------------------------------------------

func (s *mongoStore) GetChannelOwner(ctx context.Context, channelID string) (ChannelOwner, error) {
	if channelID == "" {
		return ChannelOwner{}, ErrInvalidChannelID
	}

	ctx, cancel := s.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	ch, err := s.channels.FindByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ChannelOwner{}, ErrNotFound
		}
		return ChannelOwner{}, fmt.Errorf("get channel owner: %w", err)
	}

	return ChannelOwner{SpaceID: ch.SpaceID.Hex(), Kind: ch.Kind}, nil
}

func (s *mongoStore) IsSpaceMember(ctx context.Context, spaceID, userID string) (bool, error) {
	if spaceID == "" || userID == "" {
		return false, nil
	}

	ctx, cancel := s.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	// Array equality matches any element of member_ids.
	filter := db.NewFilter().ObjectID("_id", spaceID).Eq("member_ids", userID).Build()

	ok, err := s.spaces.Exists(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("space membership check: %w", err)
	}
	return ok, nil
}

func (s *mongoStore) ListSpaceMemberIDs(ctx context.Context, spaceID string) ([]string, error) {
	ctx, cancel := s.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	sp, err := s.spaces.FindByID(ctx, spaceID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("list space members: %w", err)
	}
	return sp.MemberIDs, nil
}

func (s *mongoStore) ListSpacesForUser(ctx context.Context, userID string) ([]model.Space, error) {
	ctx, cancel := s.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("member_ids", userID).Eq("is_active", true).Build()
	spaces, err := s.spaces.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list spaces for user: %w", err)
	}
	return spaces, nil
}

func (s *mongoStore) ListChannels(ctx context.Context, spaceID string) ([]model.Channel, error) {
	ctx, cancel := s.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("space_id", spaceID).Eq("is_active", true).Build()
	channels, err := s.channels.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

func (s *mongoStore) InsertMessage(ctx context.Context, msg *model.Message) (string, error) {
	if msg == nil {
		return "", ErrInvalidMessage
	}
	if msg.ChannelID.IsZero() {
		return "", ErrInvalidChannelID
	}

	ctx, cancel := s.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := s.waitForRetry(ctx, attempt); err != nil {
				return "", err
			}
		}

		result, err := s.messages.Create(ctx, *msg)
		if err == nil {
			insertedID := ""
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				insertedID = oid.Hex()
			}

			s.logger.Info("message inserted",
				zap.String("message_id", insertedID),
				zap.String("channel_id", msg.ChannelID.Hex()),
				zap.Int("attempt", attempt+1),
			)
			return insertedID, nil
		}

		lastErr = err
		if !s.isRetryableError(err) {
			break
		}

		s.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	s.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("channel_id", msg.ChannelID.Hex()),
	)
	return "", fmt.Errorf("insert message failed: %w", lastErr)
}

func (s *mongoStore) InsertAttachments(ctx context.Context, messageID string, attachments []model.Attachment) error {
	if len(attachments) == 0 {
		return nil
	}

	msgOID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return ErrInvalidID
	}

	ctx, cancel := s.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	docs := make([]model.Attachment, len(attachments))
	for i, a := range attachments {
		a.MessageID = msgOID
		docs[i] = a
	}

	if _, err := s.attachments.CreateMany(ctx, docs); err != nil {
		return fmt.Errorf("insert attachments: %w", err)
	}
	return nil
}

func (s *mongoStore) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	ctx, cancel := s.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *mongoStore) UpdateMessage(ctx context.Context, messageID, content string, editedAt time.Time) error {
	ctx, cancel := s.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := s.messages.UpdateByID(ctx, messageID, bson.M{
		"content":   content,
		"edited_at": editedAt,
	})
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) DeleteMessage(ctx context.Context, messageID string) error {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return ErrInvalidID
	}

	ctx, cancel := s.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if _, err := s.messages.Collection().DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	// Attachments ride along with their message.
	if _, err := s.attachments.Collection().DeleteMany(ctx, bson.M{"message_id": oid}); err != nil {
		s.logger.Warn("failed to delete attachments for message",
			zap.String("message_id", messageID), zap.Error(err))
	}
	return nil
}

func (s *mongoStore) ListAttachments(ctx context.Context, messageID string) ([]model.Attachment, error) {
	ctx, cancel := s.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("message_id", messageID).Build()
	attachments, err := s.attachments.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return attachments, nil
}

// RecentMessages returns the newest messages of a channel in
// chronological order, for the backlog sent after a channel switch.
func (s *mongoStore) RecentMessages(ctx context.Context, channelID string, limit int64) ([]model.Message, error) {
	if channelID == "" {
		return nil, ErrInvalidChannelID
	}
	if limit <= 0 {
		limit = backlogLimit
	}

	ctx, cancel := s.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("channel_id", channelID).Build()
	opts := options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(limit)

	messages, err := s.messages.FindAll(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}

	// Newest-first from the index; flip to oldest-first for clients.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *mongoStore) ChannelMessages(ctx context.Context, channelID string, page int64) (*db.PaginatedResult[model.Message], error) {
	if channelID == "" {
		return nil, ErrInvalidChannelID
	}

	ctx, cancel := s.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("channel_id", channelID).Build()

	result, err := s.messages.FindWithPagination(ctx, filter, db.PaginationParams{
		Page:     page,
		PageSize: 25,
		SortBy:   "created_at",
		SortDesc: true,
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &db.PaginatedResult[model.Message]{
				Data:     []model.Message{},
				Page:     page,
				PageSize: 25,
			}, nil
		}
		return nil, s.handleReadError(err, channelID)
	}
	return result, nil
}

// -----------------------------------------------------------------------------
// Reactions
// -----------------------------------------------------------------------------

func (s *mongoStore) UpsertReaction(ctx context.Context, messageID, userID, emoji string) error {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return ErrInvalidID
	}

	ctx, cancel := s.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	// $addToSet keeps the (user, emoji) pair unique, so repeated adds
	// from the same user are no-ops at the document level.
	update := bson.M{"$addToSet": bson.M{"reactions": model.Reaction{UserID: userID, Emoji: emoji}}}
	result, err := s.messages.Collection().UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("upsert reaction: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return ErrInvalidID
	}

	ctx, cancel := s.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	update := bson.M{"$pull": bson.M{"reactions": model.Reaction{UserID: userID, Emoji: emoji}}}
	result, err := s.messages.Collection().UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) ReactionCounts(ctx context.Context, messageID, viewerID string) ([]ReactionCount, error) {
	msg, err := s.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return FoldReactions(msg.Reactions, viewerID), nil
}

// FoldReactions collapses raw (user, emoji) pairs into the per-symbol
// aggregate, sorted by symbol for deterministic payloads.
func FoldReactions(reactions []model.Reaction, viewerID string) []ReactionCount {
	byEmoji := make(map[string]*ReactionCount)
	order := make([]string, 0, 4)

	for _, r := range reactions {
		rc, ok := byEmoji[r.Emoji]
		if !ok {
			rc = &ReactionCount{Emoji: r.Emoji}
			byEmoji[r.Emoji] = rc
			order = append(order, r.Emoji)
		}
		rc.Count++
		if r.UserID == viewerID {
			rc.Me = true
		}
	}

	sort.Strings(order)
	counts := make([]ReactionCount, 0, len(order))
	for _, emoji := range order {
		counts = append(counts, *byEmoji[emoji])
	}
	return counts
}

// -----------------------------------------------------------------------------
// Read receipts
// -----------------------------------------------------------------------------

func (s *mongoStore) MarkReadUpTo(ctx context.Context, channelID, userID, cutoffMessageID string) error {
	chanOID, err := primitive.ObjectIDFromHex(channelID)
	if err != nil {
		return ErrInvalidChannelID
	}
	msgOID, err := primitive.ObjectIDFromHex(cutoffMessageID)
	if err != nil {
		return ErrInvalidID
	}

	ctx, cancel := s.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := bson.M{"channel_id": chanOID, "user_id": userID}
	update := bson.M{"$set": bson.M{"message_id": msgOID, "read_at": time.Now().UTC()}}

	_, err = s.reads.Collection().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		// Two connections of the same user racing on the first receipt
		// can both attempt the upsert insert; the loser is a no-op.
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Private helpers
// -----------------------------------------------------------------------------

func (s *mongoStore) ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *mongoStore) waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (s *mongoStore) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

func (s *mongoStore) handleReadError(err error, channelID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Error("read timeout", zap.String("channel_id", channelID))
		return ErrOperationTimeout
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	s.logger.Error("read failed", zap.Error(err), zap.String("channel_id", channelID))
	return fmt.Errorf("channel messages: %w", err)
}
