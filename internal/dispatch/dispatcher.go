// Package dispatch routes committed lifecycle events to their recipients.
// Every event is written to the durable notification store no matter who is
// connected, pushed to registered offline endpoints, and published
// best-effort to the live rooms that care about it. The two tiers fail
// independently: a live no-op is fine, a dropped durable write is a bug and
// is logged as one.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/amanazads/flashbites-sub000/models"
	"github.com/amanazads/flashbites-sub000/repository"
)

// Outbound live event names.
const (
	EvNewOrder          = "new-order"
	EvOrderUpdate       = "order-update"
	EvNewOrderAvailable = "new-order-available"
	EvOrderAssigned     = "order-assigned"
	EvOrderCancelled    = "order-cancelled"
	EvDeliveryUpdate    = "delivery-update"
	EvNewNotification   = "new-notification"
)

// LivePublisher is the in-memory room fanout (the connection registry).
type LivePublisher interface {
	Publish(room, event string, data any) int
}

// PushSender delivers a payload to a recipient's registered offline
// endpoints. Implementations log failures; they never propagate them.
type PushSender interface {
	Deliver(ctx context.Context, recipientID int64, payload []byte)
}

// BrokerPublisher mirrors live-room traffic to an external broker so peer
// instances can replay it into their own registries. Optional.
type BrokerPublisher interface {
	PublishRoom(ctx context.Context, room string, payload []byte) error
}

// orderPayload is the body of order-carrying live events.
type orderPayload struct {
	Order *models.Order `json:"order"`
	Sound bool          `json:"sound"`
}

// Dispatcher computes target rooms and recipients per event kind. Live
// publishing is synchronous and non-blocking; the durable tier runs as
// background work so it never delays the response to the triggering
// request.
type Dispatcher struct {
	live          LivePublisher
	notifications repository.NotificationRepositoryI
	users         repository.UserRepositoryI
	restaurants   repository.RestaurantRepositoryI
	push          PushSender
	broker        BrokerPublisher

	wg sync.WaitGroup
}

// New creates a Dispatcher. push and broker may be nil.
func New(live LivePublisher, notifications repository.NotificationRepositoryI, users repository.UserRepositoryI, restaurants repository.RestaurantRepositoryI, push PushSender, broker BrokerPublisher) *Dispatcher {
	return &Dispatcher{
		live:          live,
		notifications: notifications,
		users:         users,
		restaurants:   restaurants,
		push:          push,
		broker:        broker,
	}
}

// Dispatch fans the event out. It never returns an error: the transition
// that produced the event has already committed, and notification problems
// must not un-succeed it.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *models.LifecycleEvent) {
	if ev == nil || ev.Order == nil {
		return
	}
	switch ev.Kind {
	case models.EventOrderPlaced:
		d.orderPlaced(ev)
	case models.EventStatusChanged:
		d.statusChanged(ev)
	case models.EventDeliveryClaimed:
		d.deliveryClaimed(ev)
	case models.EventDeliveryCancelled:
		d.deliveryCancelled(ev)
	default:
		log.Printf("dispatch: unknown event kind %q for order %d", ev.Kind, ev.OrderID)
	}
}

// Drain waits for all background durable work to finish. Called on
// shutdown and by tests.
func (d *Dispatcher) Drain() {
	d.wg.Wait()
}

func (d *Dispatcher) orderPlaced(ev *models.LifecycleEvent) {
	o := ev.Order
	d.publish(models.RestaurantRoom(o.RestaurantID), EvNewOrder, orderPayload{Order: o, Sound: true})
	d.publish(models.AdminRoom, EvNewOrder, orderPayload{Order: o, Sound: false})

	d.background(func(ctx context.Context) {
		rest, err := d.restaurants.GetByID(ctx, o.RestaurantID)
		if err != nil || rest == nil {
			log.Printf("dispatch: resolve restaurant %d for order %d: %v", o.RestaurantID, o.ID, err)
			return
		}
		d.notify(ctx, &models.Notification{
			RecipientID: rest.OwnerID,
			Type:        models.NotificationOrderPlaced,
			Title:       "New order",
			Body:        fmt.Sprintf("Order #%d placed for %.2f", o.ID, o.Total),
			OrderID:     &o.ID,
			Priority:    models.PriorityHigh,
		})
	})
}

func (d *Dispatcher) statusChanged(ev *models.LifecycleEvent) {
	o := ev.Order
	liveEvent := EvOrderUpdate
	sound := false
	if ev.ToStatus == models.OrderStatusCancelled {
		liveEvent = EvOrderCancelled
		sound = true
	}
	d.publish(models.UserRoom(o.UserID), liveEvent, orderPayload{Order: o, Sound: sound})
	d.publish(models.OrderRoom(o.ID), liveEvent, orderPayload{Order: o, Sound: false})
	if ev.ToStatus == models.OrderStatusCancelled {
		d.publish(models.RestaurantRoom(o.RestaurantID), EvOrderCancelled, orderPayload{Order: o, Sound: true})
	}

	d.background(func(ctx context.Context) {
		d.notify(ctx, &models.Notification{
			RecipientID: o.UserID,
			Type:        models.NotificationOrderUpdate,
			Title:       "Order update",
			Body:        fmt.Sprintf("Order #%d is now %s", o.ID, ev.ToStatus),
			OrderID:     &o.ID,
			Priority:    priorityFor(ev.ToStatus),
		})
	})

	// A confirmed or ready order with no assignee enters the claimable
	// pool; tell the fleet.
	if o.Claimable() {
		d.orderAvailable(o)
	}
}

func (d *Dispatcher) orderAvailable(o *models.Order) {
	d.publish(models.AllPartnersRoom, EvNewOrderAvailable, orderPayload{Order: o, Sound: true})

	d.background(func(ctx context.Context) {
		partners, err := d.users.ListActiveDeliveryPartners(ctx)
		if err != nil {
			log.Printf("dispatch: list delivery partners for order %d: %v", o.ID, err)
			return
		}
		for _, p := range partners {
			d.notify(ctx, &models.Notification{
				RecipientID: p.ID,
				Type:        models.NotificationOrderAvailable,
				Title:       "Order available",
				Body:        fmt.Sprintf("Order #%d is up for delivery", o.ID),
				OrderID:     &o.ID,
				Priority:    models.PriorityNormal,
			})
		}
	})
}

func (d *Dispatcher) deliveryClaimed(ev *models.LifecycleEvent) {
	o := ev.Order
	if ev.PartnerID == nil {
		return
	}
	partnerID := *ev.PartnerID
	d.publish(models.PartnerRoom(partnerID), EvOrderAssigned, orderPayload{Order: o, Sound: true})
	d.publish(models.UserRoom(o.UserID), EvDeliveryUpdate, orderPayload{Order: o, Sound: false})
	d.publish(models.OrderRoom(o.ID), EvDeliveryUpdate, orderPayload{Order: o, Sound: false})

	d.background(func(ctx context.Context) {
		d.notify(ctx, &models.Notification{
			RecipientID: partnerID,
			Type:        models.NotificationDeliveryAssigned,
			Title:       "Delivery assigned",
			Body:        fmt.Sprintf("You are assigned to order #%d", o.ID),
			OrderID:     &o.ID,
			Priority:    models.PriorityHigh,
		})
		d.notify(ctx, &models.Notification{
			RecipientID: o.UserID,
			Type:        models.NotificationDeliveryAssigned,
			Title:       "Driver on the way",
			Body:        fmt.Sprintf("A delivery partner picked up order #%d", o.ID),
			OrderID:     &o.ID,
			Priority:    models.PriorityNormal,
		})
	})
}

func (d *Dispatcher) deliveryCancelled(ev *models.LifecycleEvent) {
	o := ev.Order
	if ev.PartnerID == nil {
		return
	}
	partnerID := *ev.PartnerID
	d.publish(models.PartnerRoom(partnerID), EvDeliveryUpdate, orderPayload{Order: o, Sound: true})

	d.background(func(ctx context.Context) {
		d.notify(ctx, &models.Notification{
			RecipientID: partnerID,
			Type:        models.NotificationDeliveryCancelled,
			Title:       "Delivery unassigned",
			Body:        fmt.Sprintf("You are no longer assigned to order #%d", o.ID),
			OrderID:     &o.ID,
			Priority:    models.PriorityNormal,
		})
	})

	// Back in the pool.
	if o.Claimable() {
		d.orderAvailable(o)
	}
}

// publish pushes to the local registry and mirrors to the broker bridge
// when configured. Both are best-effort.
func (d *Dispatcher) publish(room, event string, data any) {
	d.live.Publish(room, event, data)
	if d.broker == nil {
		return
	}
	payload, err := json.Marshal(struct {
		Room  string `json:"room"`
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Room: room, Event: event, Data: data})
	if err != nil {
		return
	}
	d.background(func(ctx context.Context) {
		if err := d.broker.PublishRoom(ctx, room, payload); err != nil {
			log.Printf("dispatch: broker publish room %s: %v", room, err)
		}
	})
}

// notify writes the durable record, announces it to the recipient's live
// connections, and hands it to push delivery. A store failure here is data
// loss and is logged at full volume, but it cannot fail the transition that
// has already committed.
func (d *Dispatcher) notify(ctx context.Context, n *models.Notification) {
	if err := d.notifications.Create(ctx, n); err != nil {
		log.Printf("dispatch: DROPPED notification for user %d (order %v): %v", n.RecipientID, n.OrderID, err)
		return
	}
	d.publish(models.UserRoom(n.RecipientID), EvNewNotification, map[string]any{"notification": n})
	if d.push != nil {
		payload, err := json.Marshal(n)
		if err != nil {
			return
		}
		d.push.Deliver(ctx, n.RecipientID, payload)
	}
}

// background runs durable work off the caller's request path.
func (d *Dispatcher) background(fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("dispatch: recovered: %v", r)
			}
		}()
		fn(context.Background())
	}()
}

func priorityFor(s models.OrderStatus) models.NotificationPriority {
	switch s {
	case models.OrderStatusCancelled, models.OrderStatusOutForDelivery, models.OrderStatusDelivered:
		return models.PriorityHigh
	default:
		return models.PriorityNormal
	}
}
