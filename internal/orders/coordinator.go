package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/amanazads/flashbites-sub000/models"
	"github.com/amanazads/flashbites-sub000/repository"
)

// Coordinator enforces the single-claim invariant: at most one delivery
// partner holds an order at a time. The decision itself is the storage
// layer's compare-and-set (repository.OrderRepositoryI.Claim); this type
// only classifies its outcome and validates assignee-scoped actions.
type Coordinator struct {
	orders repository.OrderRepositoryI
	now    func() time.Time
}

// NewCoordinator creates a Coordinator over the order store.
func NewCoordinator(orders repository.OrderRepositoryI) *Coordinator {
	return &Coordinator{orders: orders, now: func() time.Time { return time.Now().UTC() }}
}

// Claim atomically takes ownership of an unassigned order for the partner.
// Under concurrent claims exactly one caller succeeds; every other caller
// gets ErrAlreadyAssigned (or ErrNotEligible when the order was never
// claimable). The loser's order state is untouched.
func (c *Coordinator) Claim(ctx context.Context, orderID, partnerID int64) (*models.Order, *models.LifecycleEvent, error) {
	err := c.orders.Claim(ctx, orderID, partnerID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, nil, err
		}
		// The CAS matched nothing. Reload once to tell the caller why.
		o, gerr := c.orders.GetByID(ctx, orderID)
		if gerr != nil {
			return nil, nil, gerr
		}
		switch {
		case o == nil:
			return nil, nil, ErrOrderNotFound
		case o.DeliveryPartnerID != nil:
			return nil, nil, ErrAlreadyAssigned
		default:
			return nil, nil, ErrNotEligible
		}
	}

	o, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o == nil {
		return nil, nil, ErrOrderNotFound
	}
	pid := partnerID
	return o, &models.LifecycleEvent{
		Kind:      models.EventDeliveryClaimed,
		OrderID:   o.ID,
		ToStatus:  o.Status,
		ActorRole: models.RoleDeliveryPartner,
		Order:     o,
		PartnerID: &pid,
	}, nil
}

// Deliver marks an out_for_delivery order delivered on behalf of its
// current assignee, crediting the restaurant in the same storage
// transaction. ErrNotAssignedToOrder when the caller does not hold the
// order, ErrInvalidState when it is not out for delivery.
func (c *Coordinator) Deliver(ctx context.Context, orderID, partnerID int64) (*models.Order, *models.LifecycleEvent, error) {
	o, err := c.requireAssignee(ctx, orderID, partnerID)
	if err != nil {
		return nil, nil, err
	}
	if o.Status != models.OrderStatusOutForDelivery {
		return nil, nil, ErrInvalidState
	}
	if _, err := c.orders.DeliverAndCredit(ctx, orderID, c.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrInvalidState
		}
		return nil, nil, err
	}
	committed, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if committed == nil {
		return nil, nil, ErrOrderNotFound
	}
	return committed, statusEvent(committed, models.OrderStatusOutForDelivery, models.OrderStatusDelivered, models.RoleDeliveryPartner), nil
}

// Release lets the assignee abandon the order; it returns to 'ready' with
// no partner, back in the claimable pool.
func (c *Coordinator) Release(ctx context.Context, orderID, partnerID int64) (*models.Order, *models.LifecycleEvent, error) {
	if _, err := c.requireAssignee(ctx, orderID, partnerID); err != nil {
		return nil, nil, err
	}
	if err := c.orders.Release(ctx, orderID, partnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrInvalidState
		}
		return nil, nil, err
	}
	committed, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if committed == nil {
		return nil, nil, ErrOrderNotFound
	}
	pid := partnerID
	return committed, &models.LifecycleEvent{
		Kind:      models.EventDeliveryCancelled,
		OrderID:   committed.ID,
		ToStatus:  committed.Status,
		ActorRole: models.RoleDeliveryPartner,
		Order:     committed,
		PartnerID: &pid,
	}, nil
}

func (c *Coordinator) requireAssignee(ctx context.Context, orderID, partnerID int64) (*models.Order, error) {
	o, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.DeliveryPartnerID == nil || *o.DeliveryPartnerID != partnerID {
		return nil, ErrNotAssignedToOrder
	}
	return o, nil
}
