// Package push delivers alerts to browsers through the Web Push protocol.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/livesync"
	"shopdesk/pkg/logger"
)

// Users is the part of the user repository the sink needs.
type Users interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
}

type Options struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	TTL        int
}

// Configured reports whether VAPID keys are present. It is the permission probe for livesync.GatedSink.
func (o Options) Configured() bool {
	return o.PublicKey != "" && o.PrivateKey != ""
}

type WebPushSink struct {
	opts  *webpush.Options
	users Users
	send  func(ctx context.Context, payload []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)
}

func NewWebPushSink(o Options, users Users) *WebPushSink {
	ttl := o.TTL
	if ttl == 0 {
		ttl = 30
	}
	return &WebPushSink{
		opts: &webpush.Options{
			Subscriber:      o.Subject,
			VAPIDPublicKey:  o.PublicKey,
			VAPIDPrivateKey: o.PrivateKey,
			TTL:             ttl,
		},
		users: users,
		send:  webpush.SendNotificationWithContext,
	}
}

func (s *WebPushSink) Notify(ctx context.Context, alert livesync.Alert) error {
	user, err := s.users.GetByID(ctx, alert.UserID)
	if err != nil {
		return err
	}
	if len(user.PushSubscriptions) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"title": alert.Title,
		"body":  alert.Body,
		"tag":   alert.Tag,
		"data":  alert.Data,
	})
	if err != nil {
		return err
	}

	var kept []entity.PushSubscription
	delivered := 0
	for _, sub := range user.PushSubscriptions {
		resp, err := s.send(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}, s.opts)
		if err != nil {
			logger.Warn("webpush: send to %s failed: %v", shorten(sub.Endpoint), err)
			kept = append(kept, sub)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
			continue
		}
		kept = append(kept, sub)
		if resp.StatusCode < 300 {
			delivered++
		}
	}

	if len(kept) != len(user.PushSubscriptions) {
		if err := s.users.Update(ctx, user.ID, map[string]interface{}{
			"pushSubscriptions": entity.PushSubscriptionValues(kept),
		}); err != nil {
			logger.Warn("webpush: pruning expired subscriptions of %s failed: %v", user.ID, err)
		}
	}

	if delivered == 0 {
		return fmt.Errorf("webpush: no endpoint accepted %s", alert.Tag)
	}
	return nil
}

func shorten(endpoint string) string {
	if len(endpoint) > 50 {
		return endpoint[:50]
	}
	return endpoint
}
