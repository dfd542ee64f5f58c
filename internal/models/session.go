package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// Session is the live unit of interaction between a user and an advisor.
// Its id doubles as the room id the video provider is addressed with.
// Sessions are never deleted, only marked closed, so chat history stays
// available for the history and admin views.
type Session struct {
	ID        string             `bson:"_id" json:"id"`
	RequestID primitive.ObjectID `bson:"request_id" json:"request_id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	AdvisorID string             `bson:"advisor_id" json:"advisor_id"`
	Kind      SessionKind        `bson:"kind" json:"kind"`
	Status    SessionStatus      `bson:"status" json:"status"`
	// MessageSeq is the allocator for per-session message ordering. It is
	// only ever moved forward with $inc, which is what makes the order
	// total under concurrent senders.
	MessageSeq int64      `bson:"message_seq" json:"-"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	ClosedAt   *time.Time `bson:"closed_at,omitempty" json:"closed_at,omitempty"`
}

func (s *Session) IsParticipant(actorID string) bool {
	return actorID != "" && (actorID == s.UserID || actorID == s.AdvisorID)
}
