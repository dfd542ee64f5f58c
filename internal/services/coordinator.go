package services

import (
	"advisor-app/session-service/internal/models"
	"advisor-app/session-service/internal/repository"
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxTxRetries   = 3
	txRetryBackoff = 50 * time.Millisecond
	sideEffectTTL  = 10 * time.Second
)

// WebhookNotifier is the billing/session-end hook. It is fire-and-forget:
// failure is logged and never surfaced to the caller of EndSession.
type WebhookNotifier interface {
	NotifySessionEnded(ctx context.Context, roomID, sessionID, requestID string) error
}

// RoomProvisioner asks the external video provider to stand up a media room.
// The coordinator only persists room ids; media never passes through here.
type RoomProvisioner interface {
	ProvisionRoom(ctx context.Context, roomID string) error
}

// Coordinator drives the request/session lifecycle:
// PENDING --accept--> ACCEPTED/ACTIVE --end--> CLOSED. End from PENDING is
// abandonment and closes the request without ever creating a session. All
// transitions commit in single transactions scoped to the request, its
// session and the advisor record.
type Coordinator struct {
	advisors repository.AdvisorRepository
	requests repository.RequestRepository
	sessions repository.SessionRepository
	tx       repository.TxRunner
	presence *PresenceService
	broker   Broker
	webhook  WebhookNotifier
	rooms    RoomProvisioner
	notifier Notifier
}

func NewCoordinator(
	advisors repository.AdvisorRepository,
	requests repository.RequestRepository,
	sessions repository.SessionRepository,
	tx repository.TxRunner,
	presence *PresenceService,
	broker Broker,
	webhook WebhookNotifier,
	rooms RoomProvisioner,
	notifier Notifier,
) *Coordinator {
	return &Coordinator{
		advisors: advisors,
		requests: requests,
		sessions: sessions,
		tx:       tx,
		presence: presence,
		broker:   broker,
		webhook:  webhook,
		rooms:    rooms,
		notifier: notifier,
	}
}

// runTx retries transient transaction conflicts with doubling backoff.
// Business precondition failures (busy advisor, wrong status) are
// deterministic and are not retried.
func (c *Coordinator) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := txRetryBackoff
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = c.tx.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, models.ErrConflict) {
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return err
}

// AcceptRequest admits a pending request: one transaction flips the request
// to accepted, creates the session under the pre-assigned room id and marks
// the advisor busy. If the advisor is already occupied the whole transaction
// aborts with ErrAdvisorBusy and the request stays pending.
func (c *Coordinator) AcceptRequest(ctx context.Context, requestID primitive.ObjectID, advisorID string) (*models.Session, *models.SessionRequest, error) {
	req, err := c.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req.AdvisorID != advisorID {
		return nil, nil, models.ErrForbidden
	}
	if req.Status != models.RequestPending {
		return nil, nil, models.ErrInvalidState
	}

	now := time.Now()
	var session *models.Session
	err = c.runTx(ctx, func(txCtx context.Context) error {
		if err := c.requests.MarkAccepted(txCtx, req.ID, now); err != nil {
			return err
		}
		session = &models.Session{
			ID:        req.RoomID,
			RequestID: req.ID,
			UserID:    req.UserID,
			AdvisorID: req.AdvisorID,
			Kind:      req.Kind,
		}
		if err := c.sessions.Create(txCtx, session); err != nil {
			return err
		}
		return c.advisors.MarkBusy(txCtx, req.AdvisorID, now)
	})
	if err != nil {
		return nil, nil, err
	}

	req.Status = models.RequestAccepted
	req.AcceptedAt = &now

	c.presence.Invalidate(ctx, req.AdvisorID)
	publishEvent(ctx, c.broker, AdvisorTopic(req.AdvisorID), EventRequestAccepted, req)
	publishEvent(ctx, c.broker, AdvisorTopic(req.AdvisorID), EventPresenceChanged, nil)

	if req.Kind == models.KindVideo && c.rooms != nil {
		go func() {
			roomCtx, cancel := context.WithTimeout(context.Background(), sideEffectTTL)
			defer cancel()
			if err := c.rooms.ProvisionRoom(roomCtx, req.RoomID); err != nil {
				log.Printf("[VIDEO] Failed to provision room %s: %v", req.RoomID, err)
			}
		}()
	}
	pushAsync(c.notifier, req.UserID, "Request accepted", "Your advisor is ready. Join the session now.")

	return session, req, nil
}

// EndSession tears the pair down. It is idempotent and safe to race from
// both participants: only the call that actually flips the session to closed
// releases the advisor and increments the completed counter; every other
// call observes the terminal state and returns success.
func (c *Coordinator) EndSession(ctx context.Context, id, actorID, actorRole string) error {
	req, err := c.resolveRequest(ctx, id)
	if err != nil {
		return err
	}
	if !c.mayEnd(req, actorID, actorRole) {
		return models.ErrForbidden
	}
	if req.Status == models.RequestClosed {
		return nil
	}

	now := time.Now()
	var closedSession bool
	err = c.runTx(ctx, func(txCtx context.Context) error {
		closedSession = false

		changed, err := c.sessions.MarkClosed(txCtx, req.RoomID, now)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
		// ErrNotFound means the request is still pending: abandonment, no
		// session was ever created and presence stays untouched.
		closedSession = err == nil && changed

		if _, err := c.requests.MarkClosed(txCtx, req.ID, now); err != nil {
			return err
		}

		if closedSession {
			return c.advisors.ReleaseBusy(txCtx, req.AdvisorID, now)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if closedSession {
		c.presence.Invalidate(ctx, req.AdvisorID)
		publishEvent(ctx, c.broker, SessionTopic(req.RoomID), EventSessionClosed, map[string]string{
			"room_id":    req.RoomID,
			"request_id": req.ID.Hex(),
		})
		publishEvent(ctx, c.broker, AdvisorTopic(req.AdvisorID), EventPresenceChanged, nil)
		c.notifySessionEnded(req)
	}
	return nil
}

// ExpireStaleRequests abandons pending requests older than ttl through the
// same idempotent close path. Invoked from the background sweeper.
func (c *Coordinator) ExpireStaleRequests(ctx context.Context, ttl time.Duration) {
	stale, err := c.requests.ListPendingBefore(ctx, time.Now().Add(-ttl))
	if err != nil {
		log.Println("[SWEEPER] Failed to list stale requests:", err)
		return
	}
	for _, req := range stale {
		if err := c.EndSession(ctx, req.ID.Hex(), req.UserID, "user"); err != nil {
			log.Printf("[SWEEPER] Failed to expire request %s: %v", req.ID.Hex(), err)
		}
	}
}

// resolveRequest accepts either a request id or a room id, since both
// participants address teardown by whatever handle their page holds.
func (c *Coordinator) resolveRequest(ctx context.Context, id string) (*models.SessionRequest, error) {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		req, err := c.requests.GetByID(ctx, oid)
		if !errors.Is(err, models.ErrNotFound) {
			return req, err
		}
	}
	return c.requests.GetByRoomID(ctx, id)
}

func (c *Coordinator) mayEnd(req *models.SessionRequest, actorID, actorRole string) bool {
	if actorRole == "admin" {
		return true
	}
	return actorID == req.UserID || actorID == req.AdvisorID
}

// notifySessionEnded fires the billing webhook off the request path. The
// core transition already committed; a webhook failure is logged and left to
// the billing collaborator's own reconciliation.
func (c *Coordinator) notifySessionEnded(req *models.SessionRequest) {
	if c.webhook == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTTL)
		defer cancel()
		if err := c.webhook.NotifySessionEnded(ctx, req.RoomID, req.RoomID, req.ID.Hex()); err != nil {
			log.Printf("[WEBHOOK] Session-end notify failed for room %s: %v", req.RoomID, err)
		}
	}()
}
