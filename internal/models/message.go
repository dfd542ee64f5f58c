package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SenderType string

const (
	SenderUser    SenderType = "user"
	SenderAdvisor SenderType = "advisor"
)

// FileRef points at an attachment already uploaded to object storage by an
// external collaborator. Only the resulting url/type/name triple is kept.
type FileRef struct {
	URL  string `bson:"url" json:"url"`
	Type string `bson:"type,omitempty" json:"type,omitempty"`
	Name string `bson:"name,omitempty" json:"name,omitempty"`
}

// Message is append-only chat content owned by a session. Seq and CreatedAt
// are server-assigned; Seq is strictly increasing within a session.
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID      string             `bson:"session_id" json:"session_id"`
	Seq            int64              `bson:"seq" json:"seq"`
	SenderType     SenderType         `bson:"sender_type" json:"sender_type"`
	SenderID       string             `bson:"sender_id" json:"sender_id"`
	Content        string             `bson:"content" json:"content"`
	File           *FileRef           `bson:"file,omitempty" json:"file,omitempty"`
	IsAudioMessage bool               `bson:"is_audio_message,omitempty" json:"is_audio_message,omitempty"`
	// Transcription is supplied by the external transcription service and
	// stored verbatim.
	Transcription string    `bson:"transcription,omitempty" json:"transcription,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}

// MessageInput is the client-supplied part of a message.
type MessageInput struct {
	Content        string   `json:"content"`
	File           *FileRef `json:"file,omitempty"`
	IsAudioMessage bool     `json:"is_audio_message,omitempty"`
	Transcription  string   `json:"transcription,omitempty"`
}

func (m *MessageInput) Validate() error {
	if m.Content == "" && m.File == nil {
		return errors.New("message must have content or a file")
	}
	if m.File != nil && m.File.URL == "" {
		return errors.New("file url is required")
	}
	return nil
}
