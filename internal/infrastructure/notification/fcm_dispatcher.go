package notification

import (
	"context"

	"firebase.google.com/go/v4/messaging"

	"parley/pkg/logger"
)

// FCMDispatcher pushes notifications to users' registered devices. Delivery
// is best effort: failures are logged, never surfaced to the caller.
type FCMDispatcher struct {
	client *messaging.Client
}

func NewFCMDispatcher(client *messaging.Client) *FCMDispatcher {
	return &FCMDispatcher{
		client: client,
	}
}

// Notify sends the same notification to every token. Invalid tokens are
// reported per-token by FCM and just logged here.
func (d *FCMDispatcher) Notify(ctx context.Context, tokens []string, title, body string, data map[string]string) {
	if len(tokens) == 0 {
		return
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	resp, err := d.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		logger.Error("Failed to dispatch push notification: %v", err)
		return
	}
	if resp.FailureCount > 0 {
		logger.Warn("Push notification failed for %d of %d devices", resp.FailureCount, len(tokens))
	}
}
