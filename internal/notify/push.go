// Package notify carries the durable-tier background work: Web Push
// delivery to registered offline endpoints and expiry collection of old
// notifications. Nothing in this package may fail an order transition;
// every error ends at the log.
package notify

import (
	"context"
	"log"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/amanazads/flashbites-sub000/models"
	"github.com/amanazads/flashbites-sub000/repository"
)

// pushTransport sends one payload to one endpoint and reports the HTTP
// status. Split from PushService so tests can swap the network out.
type pushTransport interface {
	Send(ctx context.Context, payload []byte, sub *models.PushSubscription) (int, error)
}

// vapidTransport is the production transport over the Web Push protocol.
type vapidTransport struct {
	subscriber string
	publicKey  string
	privateKey string
}

func (t *vapidTransport) Send(ctx context.Context, payload []byte, sub *models.PushSubscription) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		Subscriber:      t.subscriber,
		VAPIDPublicKey:  t.publicKey,
		VAPIDPrivateKey: t.privateKey,
		TTL:             60,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// PushService delivers payloads to all of a recipient's active
// subscriptions. Endpoints answering with gone/not-found semantics are
// deactivated, never deleted.
type PushService struct {
	subs      repository.SubscriptionRepositoryI
	transport pushTransport
}

// NewPushService creates a PushService with VAPID credentials.
func NewPushService(subs repository.SubscriptionRepositoryI, subscriber, vapidPublic, vapidPrivate string) *PushService {
	return &PushService{
		subs: subs,
		transport: &vapidTransport{
			subscriber: subscriber,
			publicKey:  vapidPublic,
			privateKey: vapidPrivate,
		},
	}
}

// Deliver attempts delivery to every active subscription of the recipient
// independently; one endpoint failing never blocks the others. Errors are
// logged, never returned: push delivery is decoupled from whatever
// triggered it.
func (p *PushService) Deliver(ctx context.Context, recipientID int64, payload []byte) {
	subs, err := p.subs.ListActiveByUser(ctx, recipientID)
	if err != nil {
		log.Printf("push: list subscriptions for user %d: %v", recipientID, err)
		return
	}
	for i := range subs {
		sub := &subs[i]
		status, err := p.transport.Send(ctx, payload, sub)
		if err != nil {
			log.Printf("push: send to user %d endpoint %s: %v", recipientID, sub.ID, err)
			continue
		}
		if status == http.StatusGone || status == http.StatusNotFound {
			// The push service says this endpoint no longer exists.
			if err := p.subs.Deactivate(ctx, sub.ID); err != nil {
				log.Printf("push: deactivate subscription %s: %v", sub.ID, err)
			}
			continue
		}
		if status >= 400 {
			log.Printf("push: user %d endpoint %s returned %d", recipientID, sub.ID, status)
		}
	}
}
