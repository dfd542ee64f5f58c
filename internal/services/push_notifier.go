package services

import (
	"advisor-app/session-service/internal/models"
	"advisor-app/session-service/internal/repository"
	"advisor-app/session-service/internal/utils/push"
	"context"
	"errors"
	"log"
)

// PushNotifier delivers lifecycle notifications through FCM. A principal
// without a registered device token is silently skipped.
type PushNotifier struct {
	tokens repository.DeviceTokenRepository
	fcm    *push.FCMClient
}

func NewPushNotifier(tokens repository.DeviceTokenRepository, fcm *push.FCMClient) *PushNotifier {
	return &PushNotifier{tokens: tokens, fcm: fcm}
}

func (n *PushNotifier) Push(ctx context.Context, recipientID, title, body string) {
	token, err := n.tokens.Get(ctx, recipientID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Printf("[PUSH] Failed to look up device token for %s: %v", recipientID, err)
		}
		return
	}

	if err := n.fcm.SendPushNotification(ctx, token, title, body); err != nil {
		log.Printf("[PUSH] Failed to send notification to %s: %v", recipientID, err)
	}
}
