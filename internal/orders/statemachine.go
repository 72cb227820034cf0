// Package orders implements the order lifecycle: the status state machine,
// exclusive delivery-partner assignment, and the service entry points the
// transport layer calls. Every committed mutation yields a LifecycleEvent
// for the dispatcher, produced strictly after the storage commit.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amanazads/flashbites-sub000/models"
	"github.com/amanazads/flashbites-sub000/repository"
)

// successors is the legal adjacency graph. Cancellation edges exist from
// every non-terminal state; which of them a given actor may use is a role
// privilege enforced by the service, not by the graph.
var successors = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:        {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed:      {models.OrderStatusPreparing, models.OrderStatusOutForDelivery, models.OrderStatusCancelled},
	models.OrderStatusPreparing:      {models.OrderStatusReady, models.OrderStatusCancelled},
	models.OrderStatusReady:          {models.OrderStatusOutForDelivery, models.OrderStatusCancelled},
	models.OrderStatusOutForDelivery: {models.OrderStatusDelivered, models.OrderStatusCancelled},
}

// CanTransition reports whether `to` is in the allowed successor set of
// `from`.
func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range successors[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StateMachine validates and applies status transitions, including the
// financial side effects of delivery.
type StateMachine struct {
	orders repository.OrderRepositoryI
	now    func() time.Time
}

// NewStateMachine creates a StateMachine over the order store.
func NewStateMachine(orders repository.OrderRepositoryI) *StateMachine {
	return &StateMachine{orders: orders, now: func() time.Time { return time.Now().UTC() }}
}

// Apply moves the order to the requested status. On success it returns the
// committed order and the lifecycle event descriptor for dispatch; on
// ErrInvalidTransition the order is unchanged. Cancellation goes through
// Cancel instead, because it carries a reason.
func (m *StateMachine) Apply(ctx context.Context, order *models.Order, to models.OrderStatus, actor models.Role) (*models.Order, *models.LifecycleEvent, error) {
	if order == nil {
		return nil, nil, ErrOrderNotFound
	}
	if to == models.OrderStatusCancelled {
		return m.Cancel(ctx, order, actor, "")
	}
	from := order.Status
	if !CanTransition(from, to) {
		return nil, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	// Financial mutation precedes event dispatch: a delivered commit and the
	// restaurant credit are one transaction, so dispatch never advertises a
	// transition that failed to persist financially.
	var err error
	if to == models.OrderStatusDelivered {
		_, err = m.orders.DeliverAndCredit(ctx, order.ID, m.now())
	} else {
		err = m.orders.CommitTransition(ctx, order.ID, from, to, m.now())
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The order moved under us; the requested edge no longer exists.
			return nil, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		return nil, nil, err
	}

	committed, err := m.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	if committed == nil {
		return nil, nil, ErrOrderNotFound
	}
	return committed, statusEvent(committed, from, to, actor), nil
}

// Cancel cancels the order on behalf of the actor, recording the supplied
// reason or the role's default. The role privilege split (customer only
// from pending/confirmed, restaurant/admin from any pre-delivered state)
// lives here, on the caller side of the adjacency graph.
func (m *StateMachine) Cancel(ctx context.Context, order *models.Order, actor models.Role, reason string) (*models.Order, *models.LifecycleEvent, error) {
	if order == nil {
		return nil, nil, ErrOrderNotFound
	}
	from := order.Status
	if !CanTransition(from, models.OrderStatusCancelled) {
		return nil, nil, fmt.Errorf("%w: %s -> cancelled", ErrInvalidTransition, from)
	}
	if !actor.CanCancelFrom(from) {
		return nil, nil, ErrCancelNotAllowed
	}
	if reason == "" {
		reason = actor.DefaultCancellationReason()
	}
	if err := m.orders.CommitCancellation(ctx, order.ID, from, reason, m.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: %s -> cancelled", ErrInvalidTransition, from)
		}
		return nil, nil, err
	}
	committed, err := m.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	if committed == nil {
		return nil, nil, ErrOrderNotFound
	}
	return committed, statusEvent(committed, from, models.OrderStatusCancelled, actor), nil
}

func statusEvent(o *models.Order, from, to models.OrderStatus, actor models.Role) *models.LifecycleEvent {
	return &models.LifecycleEvent{
		Kind:       models.EventStatusChanged,
		OrderID:    o.ID,
		FromStatus: from,
		ToStatus:   to,
		ActorRole:  actor,
		Order:      o,
	}
}
