package services

import (
	"context"
	"log"
)

// Notifier delivers best-effort push notifications on lifecycle events.
// Delivery failure never affects lifecycle correctness; implementations log
// and move on.
type Notifier interface {
	Push(ctx context.Context, recipientID, title, body string)
}

// NoopNotifier is used when push credentials are not configured.
type NoopNotifier struct{}

func (NoopNotifier) Push(_ context.Context, recipientID, title, _ string) {
	log.Printf("[PUSH] Skipping notification %q for %s: push disabled", title, recipientID)
}

// pushAsync dispatches a notification off the request path, like the video
// and webhook hooks. Delivery latency must never extend an HTTP response.
func pushAsync(n Notifier, recipientID, title, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTTL)
		defer cancel()
		n.Push(ctx, recipientID, title, body)
	}()
}
