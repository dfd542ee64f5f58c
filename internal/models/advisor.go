package models

import "time"

// Advisor is the presence-bearing record for a service-providing principal.
// The busy flag is written only by the coordinator's transactions and the
// manual availability toggle; no other code path touches it.
type Advisor struct {
	ID                    string     `bson:"_id" json:"id"`
	Name                  string     `bson:"name" json:"name"`
	Email                 string     `bson:"email" json:"email"`
	Specialization        []string   `bson:"specialization,omitempty" json:"specialization,omitempty"`
	Busy                  bool       `bson:"busy" json:"busy"`
	BusySince             *time.Time `bson:"busy_since,omitempty" json:"busy_since,omitempty"`
	TotalSessionsAttended int        `bson:"total_sessions_attended" json:"total_sessions_attended"`
	IsActive              bool       `bson:"is_active" json:"is_active"`
	CreatedAt             time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `bson:"updated_at" json:"updated_at"`
}
