package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amanazads/flashbites-sub000/internal/testutil"
	"github.com/amanazads/flashbites-sub000/models"
	"github.com/amanazads/flashbites-sub000/repository"
)

// recordingDispatcher captures dispatched events in order.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*models.LifecycleEvent
}

func (r *recordingDispatcher) Dispatch(_ context.Context, ev *models.LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingDispatcher) last(t *testing.T) *models.LifecycleEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatal("no event dispatched")
	}
	return r.events[len(r.events)-1]
}

func (r *recordingDispatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestService(t *testing.T, name string, dedupe time.Duration) (*Service, *recordingDispatcher, *models.User, *models.Restaurant) {
	t.Helper()
	d := testutil.OpenInMemoryDB(t, name)
	customer := testutil.SeedUser(t, d, "cust", models.RoleCustomer)
	rest := testutil.SeedRestaurant(t, d, "resto", 10)
	rd := &recordingDispatcher{}
	svc := NewService(repository.NewOrderRepository(d), repository.NewRestaurantRepository(d), rd, dedupe)
	return svc, rd, customer, rest
}

func TestPlaceOrderComputesTotalAndDispatches(t *testing.T) {
	svc, rd, customer, rest := newTestService(t, "svc_place", 0)
	ctx := context.Background()

	o, err := svc.PlaceOrder(ctx, PlaceOrderInput{
		UserID:       customer.ID,
		RestaurantID: rest.ID,
		Subtotal:     18.99,
		DeliveryFee:  2.5,
		Tax:          1.52,
		Discount:     3,
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if o.Total != 20.01 {
		t.Errorf("total = %v, want 20.01", o.Total)
	}
	if o.Status != models.OrderStatusPending {
		t.Errorf("status = %s, want pending", o.Status)
	}

	ev := rd.last(t)
	if ev.Kind != models.EventOrderPlaced {
		t.Errorf("event kind = %s, want order_placed", ev.Kind)
	}
	if ev.OrderID != o.ID {
		t.Errorf("event order = %d, want %d", ev.OrderID, o.ID)
	}
}

func TestPlaceOrderUnknownRestaurant(t *testing.T) {
	svc, rd, customer, _ := newTestService(t, "svc_place_missing", 0)
	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{UserID: customer.ID, RestaurantID: 99999, Subtotal: 10})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("got %v, want ErrOrderNotFound", err)
	}
	if rd.count() != 0 {
		t.Errorf("dispatched %d events for a failed placement", rd.count())
	}
}

func TestPlaceOrderDedupesWithinWindow(t *testing.T) {
	svc, rd, customer, rest := newTestService(t, "svc_dedupe", time.Minute)
	ctx := context.Background()
	in := PlaceOrderInput{UserID: customer.ID, RestaurantID: rest.ID, Subtotal: 30}

	first, err := svc.PlaceOrder(ctx, in)
	if err != nil {
		t.Fatalf("first place: %v", err)
	}
	second, err := svc.PlaceOrder(ctx, in)
	if err != nil {
		t.Fatalf("second place: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("duplicate created order %d, want existing %d", second.ID, first.ID)
	}
	if rd.count() != 1 {
		t.Errorf("dispatched %d events, want 1 (no event for the absorbed retry)", rd.count())
	}

	// A different total is a new order.
	third, err := svc.PlaceOrder(ctx, PlaceOrderInput{UserID: customer.ID, RestaurantID: rest.ID, Subtotal: 31})
	if err != nil {
		t.Fatalf("third place: %v", err)
	}
	if third.ID == first.ID {
		t.Error("distinct submission deduped")
	}
}

func TestPlaceOrderDedupeDisabled(t *testing.T) {
	svc, _, customer, rest := newTestService(t, "svc_dedupe_off", 0)
	ctx := context.Background()
	in := PlaceOrderInput{UserID: customer.ID, RestaurantID: rest.ID, Subtotal: 30}

	first, _ := svc.PlaceOrder(ctx, in)
	second, err := svc.PlaceOrder(ctx, in)
	if err != nil {
		t.Fatalf("second place: %v", err)
	}
	if second.ID == first.ID {
		t.Error("deduped with a zero window")
	}
}

func TestUpdateStatusDispatchesAfterCommit(t *testing.T) {
	svc, rd, customer, rest := newTestService(t, "svc_update", 0)
	ctx := context.Background()

	o, err := svc.PlaceOrder(ctx, PlaceOrderInput{UserID: customer.ID, RestaurantID: rest.ID, Subtotal: 12})
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	updated, err := svc.UpdateStatus(ctx, o.ID, models.OrderStatusConfirmed, models.RoleRestaurantOwner)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != models.OrderStatusConfirmed {
		t.Errorf("status = %s", updated.Status)
	}
	ev := rd.last(t)
	if ev.Kind != models.EventStatusChanged || ev.ToStatus != models.OrderStatusConfirmed {
		t.Errorf("event = %+v", ev)
	}

	// A rejected update dispatches nothing.
	before := rd.count()
	if _, err := svc.UpdateStatus(ctx, o.ID, models.OrderStatusDelivered, models.RoleAdmin); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
	if rd.count() != before {
		t.Error("event dispatched for a rejected transition")
	}
}

func TestCancelDispatchesWithReason(t *testing.T) {
	svc, rd, customer, rest := newTestService(t, "svc_cancel", 0)
	ctx := context.Background()

	o, _ := svc.PlaceOrder(ctx, PlaceOrderInput{UserID: customer.ID, RestaurantID: rest.ID, Subtotal: 12})
	cancelled, err := svc.Cancel(ctx, o.ID, models.RoleCustomer, "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.CancellationReason != models.RoleCustomer.DefaultCancellationReason() {
		t.Errorf("reason = %q", cancelled.CancellationReason)
	}
	ev := rd.last(t)
	if ev.ToStatus != models.OrderStatusCancelled {
		t.Errorf("event to = %s", ev.ToStatus)
	}
}

func TestClaimDeliverReleaseFlow(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "svc_flow")
	customer := testutil.SeedUser(t, d, "cust", models.RoleCustomer)
	partner := testutil.SeedUser(t, d, "partner", models.RoleDeliveryPartner)
	rest := testutil.SeedRestaurant(t, d, "resto", 10)
	o := testutil.SeedOrder(t, d, customer.ID, rest.ID, models.OrderStatusReady, 30)

	rd := &recordingDispatcher{}
	svc := NewService(repository.NewOrderRepository(d), repository.NewRestaurantRepository(d), rd, 0)
	ctx := context.Background()

	available, err := svc.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if len(available) != 1 || available[0].ID != o.ID {
		t.Fatalf("available = %+v", available)
	}

	claimed, err := svc.ClaimDelivery(ctx, o.ID, partner.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != models.OrderStatusOutForDelivery {
		t.Errorf("status = %s", claimed.Status)
	}
	if rd.last(t).Kind != models.EventDeliveryClaimed {
		t.Errorf("event kind = %s", rd.last(t).Kind)
	}

	// Claimed orders leave the pool.
	available, _ = svc.ListAvailable(ctx)
	if len(available) != 0 {
		t.Errorf("available after claim = %+v", available)
	}

	released, err := svc.ReleaseClaim(ctx, o.ID, partner.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.DeliveryPartnerID != nil {
		t.Error("still assigned after release")
	}
	if rd.last(t).Kind != models.EventDeliveryCancelled {
		t.Errorf("event kind = %s", rd.last(t).Kind)
	}

	if _, err := svc.ClaimDelivery(ctx, o.ID, partner.ID); err != nil {
		t.Fatalf("re-claim: %v", err)
	}
	delivered, err := svc.MarkDelivered(ctx, o.ID, partner.ID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered.Status != models.OrderStatusDelivered {
		t.Errorf("status = %s", delivered.Status)
	}
	if rd.last(t).ToStatus != models.OrderStatusDelivered {
		t.Errorf("event to = %s", rd.last(t).ToStatus)
	}
}

func TestListForUser(t *testing.T) {
	svc, _, customer, rest := newTestService(t, "svc_list", 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.PlaceOrder(ctx, PlaceOrderInput{UserID: customer.ID, RestaurantID: rest.ID, Subtotal: float64(10 + i)}); err != nil {
			t.Fatalf("place #%d: %v", i, err)
		}
	}
	list, err := svc.ListForUser(ctx, customer.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("len = %d, want 3", len(list))
	}
}
