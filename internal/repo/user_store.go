package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"loftwire/internal/db"
	"loftwire/internal/model"
)

// UserStore resolves user profiles at handshake time. The display name
// and name color are denormalized onto the connection so authored
// events never need a per-message lookup.
type UserStore interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
}

type userStore struct {
	con       *mongo.Database
	mongoRepo *db.Repository[model.User]
}

func NewUserStore(con *mongo.Database) UserStore {
	return &userStore{
		con:       con,
		mongoRepo: db.NewRepository[model.User](con, "users"),
	}
}

func (r *userStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	user, err := r.mongoRepo.FindOne(ctx, db.NewFilter().Eq("user_id", userID).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &model.Profile{
		UserID:      user.UserID,
		DisplayName: user.DisplayName,
		NameColor:   user.NameColor,
	}, nil
}
