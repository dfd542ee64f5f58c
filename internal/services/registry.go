package services

import (
	"advisor-app/session-service/internal/models"
	"advisor-app/session-service/internal/repository"
	"context"
	"fmt"
)

// RegistryService is the read/append surface of the session registry. Status
// transitions stay with the coordinator; this service owns message append,
// history replay and session reads.
type RegistryService struct {
	sessions repository.SessionRepository
	broker   Broker
	notifier Notifier
}

func NewRegistryService(sessions repository.SessionRepository, broker Broker, notifier Notifier) *RegistryService {
	return &RegistryService{sessions: sessions, broker: broker, notifier: notifier}
}

func (s *RegistryService) Get(ctx context.Context, sessionID, actorID, actorRole string) (*models.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if actorRole != "admin" && !session.IsParticipant(actorID) {
		return nil, models.ErrForbidden
	}
	return session, nil
}

// AppendMessage adds a message to an active session. The repository assigns
// seq and created_at, so concurrent sends from both participants land in one
// total order that every subscriber observes identically.
func (s *RegistryService) AppendMessage(ctx context.Context, sessionID, actorID string, input *models.MessageInput) (*models.Message, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(actorID) {
		return nil, models.ErrForbidden
	}

	senderType := models.SenderUser
	recipientID := session.AdvisorID
	if actorID == session.AdvisorID {
		senderType = models.SenderAdvisor
		recipientID = session.UserID
	}

	msg := &models.Message{
		SessionID:      sessionID,
		SenderType:     senderType,
		SenderID:       actorID,
		Content:        input.Content,
		File:           input.File,
		IsAudioMessage: input.IsAudioMessage,
		Transcription:  input.Transcription,
	}
	if err := s.sessions.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.broker, SessionTopic(sessionID), EventMessageAppended, msg)
	pushAsync(s.notifier, recipientID, "New message", "You have a new message in your session.")
	return msg, nil
}

// Messages replays history in order; afterSeq 0 starts from the beginning.
func (s *RegistryService) Messages(ctx context.Context, sessionID, actorID, actorRole string, afterSeq int64) ([]models.Message, error) {
	if _, err := s.Get(ctx, sessionID, actorID, actorRole); err != nil {
		return nil, err
	}
	return s.sessions.ListMessages(ctx, sessionID, afterSeq)
}

// ListByStatus backs the admin oversight view.
func (s *RegistryService) ListByStatus(ctx context.Context, status models.SessionStatus) ([]models.Session, error) {
	return s.sessions.ListByStatus(ctx, status)
}
