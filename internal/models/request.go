package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestClosed   RequestStatus = "closed"
)

type SessionKind string

const (
	KindChat  SessionKind = "chat"
	KindVideo SessionKind = "video"
)

// PaymentRef is opaque to this service; it is validated upstream and passed
// through to the billing webhook untouched.
type PaymentRef struct {
	SessionID           string `bson:"session_id,omitempty" json:"session_id,omitempty"`
	PaymentID           string `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	Method              string `bson:"method,omitempty" json:"method,omitempty"`
	WalletTransactionID string `bson:"wallet_transaction_id,omitempty" json:"wallet_transaction_id,omitempty"`
}

// SessionRequest is a user's ask to start a session with a specific advisor.
// Status moves pending -> accepted -> closed only; room_id is assigned on
// creation and immutable after that.
type SessionRequest struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     string             `bson:"user_id" json:"user_id"`
	AdvisorID  string             `bson:"advisor_id" json:"advisor_id"`
	RoomID     string             `bson:"room_id" json:"room_id"`
	Kind       SessionKind        `bson:"kind" json:"kind"`
	Status     RequestStatus      `bson:"status" json:"status"`
	Payment    PaymentRef         `bson:"payment,omitempty" json:"payment,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	AcceptedAt *time.Time         `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`
	ClosedAt   *time.Time         `bson:"closed_at,omitempty" json:"closed_at,omitempty"`
}

func (r *SessionRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.AdvisorID == "" {
		return errors.New("advisor_id is required")
	}
	if r.Kind != KindChat && r.Kind != KindVideo {
		return errors.New("kind must be chat or video")
	}
	return nil
}
