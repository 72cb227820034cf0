package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/amanazads/flashbites-sub000/internal/dispatch"
	"github.com/amanazads/flashbites-sub000/internal/orders"
	"github.com/amanazads/flashbites-sub000/internal/realtime"
	"github.com/amanazads/flashbites-sub000/internal/testutil"
	"github.com/amanazads/flashbites-sub000/models"
	"github.com/amanazads/flashbites-sub000/repository"
)

const testSecret = "test-secret"

type serverFixture struct {
	router     *gin.Engine
	db         *sql.DB
	dispatcher *dispatch.Dispatcher
	customer   *models.User
	partner    *models.User
	owner      *models.User
	restaurant *models.Restaurant
}

func newServerFixture(t *testing.T, name string) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenInMemoryDB(t, name)
	customer := testutil.SeedUser(t, db, "cust", models.RoleCustomer)
	partner := testutil.SeedUser(t, db, "partner", models.RoleDeliveryPartner)
	rest := testutil.SeedRestaurant(t, db, "resto", 10)
	owner, err := repository.NewUserRepository(db).GetByID(context.Background(), rest.OwnerID)
	if err != nil {
		t.Fatalf("load owner: %v", err)
	}

	registry := realtime.NewRegistry()
	d := dispatch.New(registry, repository.NewNotificationRepository(db), repository.NewUserRepository(db), repository.NewRestaurantRepository(db), nil, nil)
	svc := orders.NewService(repository.NewOrderRepository(db), repository.NewRestaurantRepository(db), d, 0)

	router := New(Deps{
		JWTSecret:     testSecret,
		Orders:        svc,
		Notifications: repository.NewNotificationRepository(db),
		Subscriptions: repository.NewSubscriptionRepository(db),
		Realtime:      realtime.NewHandler(registry, testSecret),
	})
	return &serverFixture{
		router:     router,
		db:         db,
		dispatcher: d,
		customer:   customer,
		partner:    partner,
		owner:      owner,
		restaurant: rest,
	}
}

func (f *serverFixture) request(t *testing.T, method, path string, body any, as *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+testutil.GenerateJWTHS256(t, testSecret, as.ID, as.Role))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeOrder(t *testing.T, w *httptest.ResponseRecorder) *models.Order {
	t.Helper()
	var o models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &o); err != nil {
		t.Fatalf("decode order: %v (%s)", err, w.Body.String())
	}
	return &o
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	f := newServerFixture(t, "srv_health")
	if w := f.request(t, http.MethodGet, "/health", nil, nil); w.Code != http.StatusOK {
		t.Errorf("health = %d", w.Code)
	}
	if w := f.request(t, http.MethodGet, "/metrics", nil, nil); w.Code != http.StatusOK {
		t.Errorf("metrics = %d", w.Code)
	}
}

func TestAPIRequiresAuthentication(t *testing.T) {
	f := newServerFixture(t, "srv_auth")
	if w := f.request(t, http.MethodGet, "/api/orders", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token = %d, want 401", w.Code)
	}
}

func TestPlaceOrderEndpoint(t *testing.T) {
	f := newServerFixture(t, "srv_place")
	defer f.dispatcher.Drain()

	body := map[string]any{"restaurant_id": f.restaurant.ID, "subtotal": 20.0, "delivery_fee": 3.0, "tax": 1.0}
	w := f.request(t, http.MethodPost, "/api/orders", body, f.customer)
	if w.Code != http.StatusCreated {
		t.Fatalf("place = %d: %s", w.Code, w.Body.String())
	}
	o := decodeOrder(t, w)
	if o.Total != 24 {
		t.Errorf("total = %v, want 24", o.Total)
	}

	// Only customers place orders.
	if w := f.request(t, http.MethodPost, "/api/orders", body, f.partner); w.Code != http.StatusForbidden {
		t.Errorf("partner place = %d, want 403", w.Code)
	}

	// Unknown restaurant.
	bad := map[string]any{"restaurant_id": 99999, "subtotal": 20.0}
	if w := f.request(t, http.MethodPost, "/api/orders", bad, f.customer); w.Code != http.StatusNotFound {
		t.Errorf("unknown restaurant = %d, want 404", w.Code)
	}

	// Missing required fields.
	if w := f.request(t, http.MethodPost, "/api/orders", map[string]any{}, f.customer); w.Code != http.StatusBadRequest {
		t.Errorf("empty body = %d, want 400", w.Code)
	}
}

func TestStatusUpdateEndpoint(t *testing.T) {
	f := newServerFixture(t, "srv_status")
	defer f.dispatcher.Drain()

	o := testutil.SeedOrder(t, f.db, f.customer.ID, f.restaurant.ID, models.OrderStatusPending, 20)
	path := fmt.Sprintf("/api/orders/%d/status", o.ID)

	// Customers may not drive the kitchen flow.
	if w := f.request(t, http.MethodPut, path, map[string]string{"status": "confirmed"}, f.customer); w.Code != http.StatusForbidden {
		t.Errorf("customer update = %d, want 403", w.Code)
	}

	w := f.request(t, http.MethodPut, path, map[string]string{"status": "confirmed"}, f.owner)
	if w.Code != http.StatusOK {
		t.Fatalf("owner update = %d: %s", w.Code, w.Body.String())
	}
	if got := decodeOrder(t, w); got.Status != models.OrderStatusConfirmed {
		t.Errorf("status = %s", got.Status)
	}

	// Illegal edge.
	if w := f.request(t, http.MethodPut, path, map[string]string{"status": "delivered"}, f.owner); w.Code != http.StatusBadRequest {
		t.Errorf("illegal transition = %d, want 400", w.Code)
	}

	// Unknown enum value is rejected at binding.
	if w := f.request(t, http.MethodPut, path, map[string]string{"status": "vaporized"}, f.owner); w.Code != http.StatusBadRequest {
		t.Errorf("bad status value = %d, want 400", w.Code)
	}

	// Unknown order.
	if w := f.request(t, http.MethodPut, "/api/orders/99999/status", map[string]string{"status": "confirmed"}, f.owner); w.Code != http.StatusNotFound {
		t.Errorf("missing order = %d, want 404", w.Code)
	}
}

func TestCancelEndpoint(t *testing.T) {
	f := newServerFixture(t, "srv_cancel")
	defer f.dispatcher.Drain()

	o := testutil.SeedOrder(t, f.db, f.customer.ID, f.restaurant.ID, models.OrderStatusPreparing, 20)
	path := fmt.Sprintf("/api/orders/%d/cancel", o.ID)

	// Customers may not cancel once the kitchen started.
	if w := f.request(t, http.MethodPost, path, nil, f.customer); w.Code != http.StatusBadRequest {
		t.Errorf("customer cancel from preparing = %d, want 400", w.Code)
	}

	w := f.request(t, http.MethodPost, path, map[string]string{"reason": "out of stock"}, f.owner)
	if w.Code != http.StatusOK {
		t.Fatalf("owner cancel = %d: %s", w.Code, w.Body.String())
	}
	if got := decodeOrder(t, w); got.CancellationReason != "out of stock" {
		t.Errorf("reason = %q", got.CancellationReason)
	}
}

func TestDeliveryEndpoints(t *testing.T) {
	f := newServerFixture(t, "srv_delivery")
	defer f.dispatcher.Drain()

	o := testutil.SeedOrder(t, f.db, f.customer.ID, f.restaurant.ID, models.OrderStatusReady, 30)

	w := f.request(t, http.MethodGet, "/api/deliveries/available", nil, f.partner)
	if w.Code != http.StatusOK {
		t.Fatalf("available = %d", w.Code)
	}
	var list []models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != o.ID {
		t.Fatalf("available = %+v", list)
	}

	// Customers cannot see the pool.
	if w := f.request(t, http.MethodGet, "/api/deliveries/available", nil, f.customer); w.Code != http.StatusForbidden {
		t.Errorf("customer pool = %d, want 403", w.Code)
	}

	claimPath := fmt.Sprintf("/api/orders/%d/claim", o.ID)
	if w := f.request(t, http.MethodPost, claimPath, nil, f.partner); w.Code != http.StatusOK {
		t.Fatalf("claim = %d: %s", w.Code, w.Body.String())
	}

	// Second claim conflicts.
	other := testutil.SeedUser(t, f.db, "partner2", models.RoleDeliveryPartner)
	if w := f.request(t, http.MethodPost, claimPath, nil, other); w.Code != http.StatusConflict {
		t.Errorf("lost claim = %d, want 409", w.Code)
	}

	// Only the assignee may deliver.
	deliverPath := fmt.Sprintf("/api/orders/%d/deliver", o.ID)
	if w := f.request(t, http.MethodPost, deliverPath, nil, other); w.Code != http.StatusForbidden {
		t.Errorf("deliver by non-assignee = %d, want 403", w.Code)
	}
	w = f.request(t, http.MethodPost, deliverPath, nil, f.partner)
	if w.Code != http.StatusOK {
		t.Fatalf("deliver = %d: %s", w.Code, w.Body.String())
	}
	if got := decodeOrder(t, w); got.Status != models.OrderStatusDelivered {
		t.Errorf("status = %s", got.Status)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	f := newServerFixture(t, "srv_notif")
	defer f.dispatcher.Drain()

	notifications := repository.NewNotificationRepository(f.db)
	n := &models.Notification{RecipientID: f.customer.ID, Type: models.NotificationOrderUpdate, Title: "t", Body: "b"}
	if err := notifications.Create(context.Background(), n); err != nil {
		t.Fatalf("seed notification: %v", err)
	}

	w := f.request(t, http.MethodGet, "/api/notifications", nil, f.customer)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var list []models.Notification
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}

	w = f.request(t, http.MethodGet, "/api/notifications/unread-count", nil, f.customer)
	var count struct {
		Unread int64 `json:"unread"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &count); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count.Unread != 1 {
		t.Errorf("unread = %d", count.Unread)
	}

	if w := f.request(t, http.MethodPut, "/api/notifications/"+n.ID+"/read", nil, f.customer); w.Code != http.StatusOK {
		t.Errorf("mark read = %d", w.Code)
	}
	if w := f.request(t, http.MethodPut, "/api/notifications/read-all", nil, f.customer); w.Code != http.StatusOK {
		t.Errorf("read all = %d", w.Code)
	}
	if w := f.request(t, http.MethodDelete, "/api/notifications/"+n.ID, nil, f.customer); w.Code != http.StatusOK {
		t.Errorf("delete = %d", w.Code)
	}
}

func TestPushSubscriptionEndpoint(t *testing.T) {
	f := newServerFixture(t, "srv_push")

	body := map[string]any{
		"endpoint": "https://push.example.com/ep",
		"keys":     map[string]string{"p256dh": "k", "auth": "a"},
	}
	w := f.request(t, http.MethodPost, "/api/push-subscriptions", body, f.customer)
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d: %s", w.Code, w.Body.String())
	}

	// Missing keys are rejected.
	if w := f.request(t, http.MethodPost, "/api/push-subscriptions", map[string]any{"endpoint": "x"}, f.customer); w.Code != http.StatusBadRequest {
		t.Errorf("incomplete register = %d, want 400", w.Code)
	}

	// Unsubscribe by endpoint, idempotent.
	unsub := map[string]string{"endpoint": "https://push.example.com/ep"}
	for i := 0; i < 2; i++ {
		if w := f.request(t, http.MethodDelete, "/api/push-subscriptions", unsub, f.customer); w.Code != http.StatusOK {
			t.Errorf("unsubscribe #%d = %d", i+1, w.Code)
		}
	}
	active, err := repository.NewSubscriptionRepository(f.db).ListActiveByUser(context.Background(), f.customer.ID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active after unsubscribe = %+v", active)
	}
}

func TestWebsocketHandshakeRejectsBadToken(t *testing.T) {
	f := newServerFixture(t, "srv_ws")
	if w := f.request(t, http.MethodGet, "/ws", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated upgrade = %d, want 401", w.Code)
	}
}
