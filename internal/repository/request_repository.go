package repository

import (
	"advisor-app/session-service/internal/models"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RequestRepository interface {
	Create(ctx context.Context, req *models.SessionRequest) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.SessionRequest, error)
	GetByRoomID(ctx context.Context, roomID string) (*models.SessionRequest, error)
	ListPending(ctx context.Context, advisorID string) ([]models.SessionRequest, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.SessionRequest, error)
	MarkAccepted(ctx context.Context, id primitive.ObjectID, at time.Time) error
	MarkClosed(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
}

type requestRepository struct {
	collection *mongo.Collection
}

func NewRequestRepository(db *mongo.Database) RequestRepository {
	return &requestRepository{collection: db.Collection("session_requests")}
}

func (r *requestRepository) Create(ctx context.Context, req *models.SessionRequest) error {
	req.ID = primitive.NewObjectID()
	req.Status = models.RequestPending
	req.CreatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, req)
	return err
}

func (r *requestRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.SessionRequest, error) {
	var req models.SessionRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) GetByRoomID(ctx context.Context, roomID string) (*models.SessionRequest, error) {
	var req models.SessionRequest
	err := r.collection.FindOne(ctx, bson.M{"room_id": roomID}).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListPending returns the advisor's queue oldest-first so requests are
// served first-come-first-served.
func (r *requestRepository) ListPending(ctx context.Context, advisorID string) ([]models.SessionRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{
		"advisor_id": advisorID,
		"status":     models.RequestPending,
	}, opts)
	if err != nil {
		return nil, err
	}
	var requests []models.SessionRequest
	err = cursor.All(ctx, &requests)
	return requests, err
}

func (r *requestRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.SessionRequest, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"status":     models.RequestPending,
		"created_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return nil, err
	}
	var requests []models.SessionRequest
	err = cursor.All(ctx, &requests)
	return requests, err
}

// MarkAccepted transitions pending -> accepted. Any other starting status is
// ErrInvalidState.
func (r *requestRepository) MarkAccepted(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.RequestPending},
		bson.M{"$set": bson.M{"status": models.RequestAccepted, "accepted_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return models.ErrInvalidState
	}
	return nil
}

// MarkClosed transitions pending or accepted -> closed. Closing an already
// closed request reports false with no error, which is what makes the end
// path idempotent.
func (r *requestRepository) MarkClosed(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$ne": models.RequestClosed}},
		bson.M{"$set": bson.M{"status": models.RequestClosed, "closed_at": at}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return false, getErr
		}
		return false, nil
	}
	return true, nil
}
