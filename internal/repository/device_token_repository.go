package repository

import (
	"advisor-app/session-service/internal/models"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeviceTokenRepository maps principal ids to their current FCM device
// token. One token per principal; registering again overwrites.
type DeviceTokenRepository interface {
	Save(ctx context.Context, userID, token string) error
	Get(ctx context.Context, userID string) (string, error)
}

type deviceTokenRepository struct {
	collection *mongo.Collection
}

func NewDeviceTokenRepository(db *mongo.Database) DeviceTokenRepository {
	return &deviceTokenRepository{collection: db.Collection("device_tokens")}
}

func (r *deviceTokenRepository) Save(ctx context.Context, userID, token string) error {
	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"token": token, "updated_at": time.Now()}},
		opts,
	)
	return err
}

func (r *deviceTokenRepository) Get(ctx context.Context, userID string) (string, error) {
	var doc struct {
		Token string `bson:"token"`
	}
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return doc.Token, nil
}
