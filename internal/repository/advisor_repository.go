package repository

import (
	"advisor-app/session-service/internal/models"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AdvisorRepository is the presence store. The busy flag only ever changes
// through the conditional updates below, so the flag itself is the
// serialization point for all accept attempts against one advisor.
type AdvisorRepository interface {
	GetByID(ctx context.Context, id string) (*models.Advisor, error)
	SetAvailability(ctx context.Context, id string, busy bool, at time.Time) (*models.Advisor, error)
	MarkBusy(ctx context.Context, id string, at time.Time) error
	ReleaseBusy(ctx context.Context, id string, at time.Time) error
}

type advisorRepository struct {
	collection *mongo.Collection
}

func NewAdvisorRepository(db *mongo.Database) AdvisorRepository {
	return &advisorRepository{collection: db.Collection("advisors")}
}

func (r *advisorRepository) GetByID(ctx context.Context, id string) (*models.Advisor, error) {
	var advisor models.Advisor
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&advisor)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &advisor, nil
}

// SetAvailability is the manual toggle. Setting the current value again is a
// no-op, so busy_since only moves on actual flips.
func (r *advisorRepository) SetAvailability(ctx context.Context, id string, busy bool, at time.Time) (*models.Advisor, error) {
	update := bson.M{"$set": bson.M{"busy": busy, "updated_at": at}}
	if busy {
		update["$set"].(bson.M)["busy_since"] = at
	} else {
		update["$unset"] = bson.M{"busy_since": ""}
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "busy": !busy}, update)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		// Either the advisor is missing or the flag already holds the value.
		return r.GetByID(ctx, id)
	}
	return r.GetByID(ctx, id)
}

// MarkBusy flips idle -> busy, failing with ErrAdvisorBusy when the advisor
// is already occupied. Called only inside the coordinator's accept
// transaction.
func (r *advisorRepository) MarkBusy(ctx context.Context, id string, at time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "busy": false},
		bson.M{"$set": bson.M{"busy": true, "busy_since": at, "updated_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return models.ErrAdvisorBusy
	}
	return nil
}

// ReleaseBusy frees the advisor and credits the completed session in one
// document update, so the advisor can never be freed without being credited
// or vice versa. Called only inside the coordinator's end transaction on the
// call that actually closed the session.
func (r *advisorRepository) ReleaseBusy(ctx context.Context, id string, at time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "busy": true},
		bson.M{
			"$set":   bson.M{"busy": false, "updated_at": at},
			"$unset": bson.M{"busy_since": ""},
			"$inc":   bson.M{"total_sessions_attended": 1},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		// Already idle; nothing to release.
		return nil
	}
	return nil
}
