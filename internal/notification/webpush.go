package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/example/volunteer-coordinator/internal/application"
	"github.com/example/volunteer-coordinator/internal/persistence"
)

// VAPIDConfig carries the key pair and contact address used to sign Web Push
// requests.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
}

// WebPushSender delivers notifications to a user's registered Web Push
// endpoints. Endpoints rejected as gone by the push service are pruned so
// stale browser registrations do not accumulate.
type WebPushSender struct {
	prefs  persistence.PreferenceRepository
	vapid  VAPIDConfig
	ttl    int
	logger *slog.Logger
}

// NewWebPushSender wires a sender against the subscription store.
func NewWebPushSender(prefs persistence.PreferenceRepository, vapid VAPIDConfig, logger *slog.Logger) *WebPushSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebPushSender{prefs: prefs, vapid: vapid, ttl: 60, logger: logger}
}

// pushPayload is the JSON document handed to the service worker.
type pushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Tag   string            `json:"tag,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// Send pushes one notification to every subscription the user holds. Users
// without subscriptions are skipped silently. Per-endpoint failures are
// logged and do not block the remaining endpoints.
func (s *WebPushSender) Send(ctx context.Context, userID string, note application.Notification) error {
	if s == nil {
		return fmt.Errorf("WebPushSender is nil")
	}

	subscriptions, err := s.prefs.ListPushSubscriptions(ctx, userID)
	if err != nil {
		return err
	}
	if len(subscriptions) == 0 {
		return nil
	}

	payload, err := json.Marshal(pushPayload{
		Title: note.Title,
		Body:  note.Body,
		Tag:   note.Tag,
		Data:  note.Data,
	})
	if err != nil {
		return err
	}

	for _, subscription := range subscriptions {
		if err := s.sendOne(subscription, payload); err != nil {
			s.logger.WarnContext(ctx, "push delivery failed",
				"user_id", userID, "endpoint", subscription.Endpoint, "error", err)
			continue
		}
	}
	return nil
}

func (s *WebPushSender) sendOne(subscription persistence.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotification(payload, &webpush.Subscription{
		Endpoint: subscription.Endpoint,
		Keys: webpush.Keys{
			P256dh: subscription.P256dhKey,
			Auth:   subscription.AuthKey,
		},
	}, &webpush.Options{
		Subscriber:      s.vapid.Subscriber,
		VAPIDPublicKey:  s.vapid.PublicKey,
		VAPIDPrivateKey: s.vapid.PrivateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK, http.StatusAccepted:
		return nil
	case http.StatusNotFound, http.StatusGone:
		// The push service no longer knows this endpoint.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.prefs.DeletePushSubscription(ctx, subscription.UserID, subscription.Endpoint); err != nil {
			s.logger.Warn("failed to prune dead push subscription",
				"user_id", subscription.UserID, "error", err)
		}
		return fmt.Errorf("subscription gone (status %d)", resp.StatusCode)
	default:
		return fmt.Errorf("push service returned status %d", resp.StatusCode)
	}
}
