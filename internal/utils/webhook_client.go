package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookClient posts session-end events to the billing collaborator.
// Callers treat every send as best-effort: the coordinator logs failures and
// never lets them affect the committed state transition.
type WebhookClient struct {
	url        string
	httpClient *http.Client
}

func NewWebhookClient(url string) *WebhookClient {
	return &WebhookClient{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type sessionEndedPayload struct {
	RoomID    string `json:"room_id"`
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
	EndedAt   string `json:"ended_at"`
}

func (c *WebhookClient) NotifySessionEnded(ctx context.Context, roomID, sessionID, requestID string) error {
	if c.url == "" {
		return nil
	}

	payload := sessionEndedPayload{
		RoomID:    roomID,
		SessionID: sessionID,
		RequestID: requestID,
		EndedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("billing webhook returned status %d", resp.StatusCode)
	}
	return nil
}
