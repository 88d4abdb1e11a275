package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/livesync"
	"shopdesk/pkg/logger"
)

// UserLookup resolves the devices registered by a user.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

// MessagingSink delivers alerts as Firebase Cloud Messaging notifications to every device token of
// the recipient.
type MessagingSink struct {
	client *messaging.Client
	users  UserLookup
}

func NewMessagingSink(client *messaging.Client, users UserLookup) *MessagingSink {
	return &MessagingSink{client: client, users: users}
}

func (s *MessagingSink) Notify(ctx context.Context, alert livesync.Alert) error {
	user, err := s.users.GetByID(ctx, alert.UserID)
	if err != nil {
		return err
	}
	if len(user.FCMTokens) == 0 {
		return nil
	}

	msg := &messaging.MulticastMessage{
		Tokens: user.FCMTokens,
		Notification: &messaging.Notification{
			Title: alert.Title,
			Body:  alert.Body,
		},
		Data: alertData(alert),
		Android: &messaging.AndroidConfig{
			CollapseKey: alert.Tag,
			Priority:    "high",
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: alert.Title,
				Body:  alert.Body,
				Tag:   alert.Tag,
			},
		},
	}

	resp, err := s.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return fmt.Errorf("fcm send failed: %v", err)
	}
	if resp.FailureCount > 0 {
		logger.Warn("fcm: %d of %d deliveries failed for %s", resp.FailureCount, len(user.FCMTokens), alert.Tag)
	}
	if resp.SuccessCount == 0 {
		return fmt.Errorf("fcm: no device accepted %s", alert.Tag)
	}
	return nil
}

func alertData(alert livesync.Alert) map[string]string {
	data := map[string]string{
		"id":   alert.ID,
		"kind": alert.Kind,
		"tag":  alert.Tag,
	}
	for k, v := range alert.Data {
		if str, ok := v.(string); ok {
			data[k] = str
		}
	}
	return data
}
