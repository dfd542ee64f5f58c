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

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	GetActiveByAdvisor(ctx context.Context, advisorID string) (*models.Session, error)
	MarkClosed(ctx context.Context, id string, at time.Time) (bool, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, sessionID string, afterSeq int64) ([]models.Message, error)
	ListByStatus(ctx context.Context, status models.SessionStatus) ([]models.Session, error)
}

type sessionRepository struct {
	sessionsCol *mongo.Collection
	messagesCol *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) SessionRepository {
	return &sessionRepository{
		sessionsCol: db.Collection("sessions"),
		messagesCol: db.Collection("session_messages"),
	}
}

// Create inserts the session keyed by room id. A duplicate insert means an
// accept retry already committed, which callers treat as ErrAlreadyExists.
func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	session.Status = models.SessionActive
	session.CreatedAt = time.Now()
	_, err := r.sessionsCol.InsertOne(ctx, session)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrAlreadyExists
	}
	return err
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := r.sessionsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetActiveByAdvisor finds the advisor's current active session, if any.
// Backs the guard that keeps the manual availability toggle from freeing an
// advisor whose session is still running.
func (r *sessionRepository) GetActiveByAdvisor(ctx context.Context, advisorID string) (*models.Session, error) {
	var session models.Session
	err := r.sessionsCol.FindOne(ctx, bson.M{
		"advisor_id": advisorID,
		"status":     models.SessionActive,
	}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// MarkClosed transitions active -> closed. Reports false when the session was
// already closed, so concurrent end calls agree on a single terminal outcome.
func (r *sessionRepository) MarkClosed(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.sessionsCol.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.SessionActive},
		bson.M{"$set": bson.M{"status": models.SessionClosed, "closed_at": at}},
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

// AppendMessage allocates the next per-session sequence number and inserts
// the message. The $inc on the session document is what serializes
// concurrent senders into one total order; the allocation also doubles as
// the active-status check.
func (r *sessionRepository) AppendMessage(ctx context.Context, msg *models.Message) error {
	after := options.After
	res := r.sessionsCol.FindOneAndUpdate(ctx,
		bson.M{"_id": msg.SessionID, "status": models.SessionActive},
		bson.M{"$inc": bson.M{"message_seq": 1}},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	)

	var session models.Session
	if err := res.Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, getErr := r.GetByID(ctx, msg.SessionID); getErr != nil {
				return getErr
			}
			return models.ErrSessionClosed
		}
		return err
	}

	msg.Seq = session.MessageSeq
	msg.CreatedAt = time.Now()
	_, err := r.messagesCol.InsertOne(ctx, msg)
	return err
}

// ListMessages replays history in seq order. afterSeq 0 replays from the
// beginning, which is how subscribers restart. Seq allocation and the insert
// are two writes, so a reader resuming from a nonzero afterSeq can miss a
// message whose seq was allocated before, but inserted after, the replay ran;
// replaying from 0 always observes the full history.
func (r *sessionRepository) ListMessages(ctx context.Context, sessionID string, afterSeq int64) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := r.messagesCol.Find(ctx, bson.M{
		"session_id": sessionID,
		"seq":        bson.M{"$gt": afterSeq},
	}, opts)
	if err != nil {
		return nil, err
	}
	var messages []models.Message
	err = cursor.All(ctx, &messages)
	return messages, err
}

func (r *sessionRepository) ListByStatus(ctx context.Context, status models.SessionStatus) ([]models.Session, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cursor, err := r.sessionsCol.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var sessions []models.Session
	err = cursor.All(ctx, &sessions)
	return sessions, err
}
