package services

import (
	"advisor-app/session-service/internal/models"
	"advisor-app/session-service/internal/repository"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// QueueService holds pending session requests addressed to advisors.
// Admission (accept) lives in the Coordinator so the busy check and the
// status flip commit atomically; the queue handles intake, listing and
// expiry.
type QueueService struct {
	repo        repository.RequestRepository
	coordinator *Coordinator
	broker      Broker
	notifier    Notifier
}

func NewQueueService(repo repository.RequestRepository, coordinator *Coordinator, broker Broker, notifier Notifier) *QueueService {
	return &QueueService{repo: repo, coordinator: coordinator, broker: broker, notifier: notifier}
}

// Create files a new request. The room id is assigned here, before accept,
// and never changes afterwards.
func (s *QueueService) Create(ctx context.Context, req *models.SessionRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	req.RoomID = uuid.NewString()

	if err := s.repo.Create(ctx, req); err != nil {
		return err
	}

	publishEvent(ctx, s.broker, AdvisorTopic(req.AdvisorID), EventRequestCreated, req)
	pushAsync(s.notifier, req.AdvisorID, "New session request", "A user is waiting for you.")
	return nil
}

func (s *QueueService) ListPending(ctx context.Context, advisorID string) ([]models.SessionRequest, error) {
	return s.repo.ListPending(ctx, advisorID)
}

// StartExpiry runs the stale-request sweeper until the context is cancelled.
// A ttl of zero disables expiry entirely; it is policy layered on top of the
// core, not part of it.
func (s *QueueService) StartExpiry(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		for {
			select {
			case <-ticker.C:
				s.coordinator.ExpireStaleRequests(ctx, ttl)
			case <-ctx.Done():
				log.Println("[SWEEPER] Stopping request expiry job")
				ticker.Stop()
				return
			}
		}
	}()
}
