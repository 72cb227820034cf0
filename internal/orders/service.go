package orders

import (
	"context"
	"math"
	"time"

	"github.com/amanazads/flashbites-sub000/models"
	"github.com/amanazads/flashbites-sub000/repository"
)

// Dispatcher receives every committed lifecycle event. Implementations must
// not fail the caller: live fanout is best-effort and durable work is
// decoupled from order-state correctness.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *models.LifecycleEvent)
}

// Service is the transport-facing entry point for order mutations. Each
// operation commits through the state machine or coordinator and then hands
// the resulting event to the dispatcher; errors from the commit path block
// the state change, errors past it never do.
type Service struct {
	orders      repository.OrderRepositoryI
	restaurants repository.RestaurantRepositoryI
	machine     *StateMachine
	coord       *Coordinator
	dispatcher  Dispatcher

	dedupeWindow time.Duration
	now          func() time.Time
}

// NewService wires the lifecycle service.
func NewService(ordersRepo repository.OrderRepositoryI, restaurants repository.RestaurantRepositoryI, d Dispatcher, dedupeWindow time.Duration) *Service {
	return &Service{
		orders:       ordersRepo,
		restaurants:  restaurants,
		machine:      NewStateMachine(ordersRepo),
		coord:        NewCoordinator(ordersRepo),
		dispatcher:   d,
		dedupeWindow: dedupeWindow,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// PlaceOrderInput carries a placement request. The total is computed
// server-side from the parts.
type PlaceOrderInput struct {
	UserID       int64
	RestaurantID int64
	Subtotal     float64
	DeliveryFee  float64
	Tax          float64
	Discount     float64
}

// PlaceOrder creates a pending order and dispatches the order-placed event.
// An identical submission (same user, same restaurant, same computed total)
// inside the dedupe window returns the existing order instead of creating a
// second one, absorbing client retry storms as idempotent successes.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*models.Order, error) {
	total := round2(in.Subtotal + in.DeliveryFee + in.Tax - in.Discount)

	if s.dedupeWindow > 0 {
		existing, err := s.orders.FindRecentDuplicate(ctx, in.UserID, in.RestaurantID, total, s.now().Add(-s.dedupeWindow))
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	rest, err := s.restaurants.GetByID(ctx, in.RestaurantID)
	if err != nil {
		return nil, err
	}
	if rest == nil {
		return nil, ErrOrderNotFound
	}

	o, err := s.orders.Create(ctx, &models.Order{
		UserID:       in.UserID,
		RestaurantID: in.RestaurantID,
		Status:       models.OrderStatusPending,
		Subtotal:     in.Subtotal,
		DeliveryFee:  in.DeliveryFee,
		Tax:          in.Tax,
		Discount:     in.Discount,
		Total:        total,
		PlacedAt:     s.now(),
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, &models.LifecycleEvent{
		Kind:      models.EventOrderPlaced,
		OrderID:   o.ID,
		ToStatus:  o.Status,
		ActorRole: models.RoleCustomer,
		Order:     o,
	})
	return o, nil
}

// UpdateStatus advances an order to the requested status on behalf of the
// actor. Rejected transitions leave the order untouched and surface
// ErrInvalidTransition.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, to models.OrderStatus, actor models.Role) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	committed, ev, err := s.machine.Apply(ctx, o, to, actor)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, ev)
	return committed, nil
}

// Cancel cancels an order with an optional reason; an empty reason is
// defaulted by the actor's role.
func (s *Service) Cancel(ctx context.Context, orderID int64, actor models.Role, reason string) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	committed, ev, err := s.machine.Cancel(ctx, o, actor, reason)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, ev)
	return committed, nil
}

// ClaimDelivery atomically assigns the order to the partner; exactly one of
// N concurrent callers wins.
func (s *Service) ClaimDelivery(ctx context.Context, orderID, partnerID int64) (*models.Order, error) {
	o, ev, err := s.coord.Claim(ctx, orderID, partnerID)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, ev)
	return o, nil
}

// MarkDelivered completes the delivery for the assigned partner.
func (s *Service) MarkDelivered(ctx context.Context, orderID, partnerID int64) (*models.Order, error) {
	o, ev, err := s.coord.Deliver(ctx, orderID, partnerID)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, ev)
	return o, nil
}

// ReleaseClaim abandons the partner's assignment; the order returns to the
// claimable pool.
func (s *Service) ReleaseClaim(ctx context.Context, orderID, partnerID int64) (*models.Order, error) {
	o, ev, err := s.coord.Release(ctx, orderID, partnerID)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, ev)
	return o, nil
}

// Get returns an order by ID.
func (s *Service) Get(ctx context.Context, orderID int64) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// ListForUser returns the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.orders.ListByUserID(ctx, userID)
}

// ListAvailable returns the orders a delivery partner may claim right now.
// This is the list a partner refreshes after losing a claim race.
func (s *Service) ListAvailable(ctx context.Context) ([]models.Order, error) {
	return s.orders.ListClaimable(ctx)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
