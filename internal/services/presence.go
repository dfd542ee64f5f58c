package services

import (
	"advisor-app/session-service/internal/models"
	"advisor-app/session-service/internal/repository"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceCacheTTL = 5 * time.Minute

// PresenceService is the read side of advisor availability plus the manual
// toggle. The coordinator owns the transitions tied to sessions; everything
// here goes through the same conditional updates, so there is exactly one
// writer path for the busy flag.
type PresenceService struct {
	repo     repository.AdvisorRepository
	sessions repository.SessionRepository
	tx       repository.TxRunner
	redis    *redis.Client
	broker   Broker
}

func NewPresenceService(repo repository.AdvisorRepository, sessions repository.SessionRepository, tx repository.TxRunner, rdb *redis.Client, broker Broker) *PresenceService {
	return &PresenceService{repo: repo, sessions: sessions, tx: tx, redis: rdb, broker: broker}
}

func presenceCacheKey(advisorID string) string {
	return fmt.Sprintf("advisor_presence:%s", advisorID)
}

func (s *PresenceService) Get(ctx context.Context, advisorID string) (*models.Advisor, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, presenceCacheKey(advisorID)).Result()
		if err == nil {
			var cached models.Advisor
			if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
				return &cached, nil
			}
		}
	}

	advisor, err := s.repo.GetByID(ctx, advisorID)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		data, _ := json.Marshal(advisor)
		_ = s.redis.Set(ctx, presenceCacheKey(advisorID), data, presenceCacheTTL).Err()
	}
	return advisor, nil
}

// SetAvailability is the advisor's manual busy/available toggle. Setting the
// same value twice is a no-op with respect to busy_since. Going available is
// refused with ErrInvalidState while a session is still active: only the
// coordinator's end transaction may free a session-busy advisor, otherwise a
// second accept could double-book them.
func (s *PresenceService) SetAvailability(ctx context.Context, advisorID string, busy bool) (*models.Advisor, error) {
	var advisor *models.Advisor
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if !busy {
			_, err := s.sessions.GetActiveByAdvisor(txCtx, advisorID)
			if err == nil {
				return models.ErrInvalidState
			}
			if !errors.Is(err, models.ErrNotFound) {
				return err
			}
		}
		var err error
		advisor, err = s.repo.SetAvailability(txCtx, advisorID, busy, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, advisorID)
	publishEvent(ctx, s.broker, AdvisorTopic(advisorID), EventPresenceChanged, advisor)
	return advisor, nil
}

// Invalidate drops the cached presence entry after a transition committed.
func (s *PresenceService) Invalidate(ctx context.Context, advisorID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, presenceCacheKey(advisorID)).Err(); err != nil {
		log.Printf("Failed to invalidate presence cache for %s: %v", advisorID, err)
	}
}
