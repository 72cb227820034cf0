package models

import "testing"

func TestTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderStatusDelivered, OrderStatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	live := []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady, OrderStatusOutForDelivery}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestClaimable(t *testing.T) {
	partner := int64(4)
	cases := []struct {
		name string
		o    Order
		want bool
	}{
		{"unassigned ready", Order{Status: OrderStatusReady}, true},
		{"unassigned confirmed", Order{Status: OrderStatusConfirmed}, true},
		{"unassigned pending", Order{Status: OrderStatusPending}, false},
		{"unassigned preparing", Order{Status: OrderStatusPreparing}, false},
		{"assigned ready", Order{Status: OrderStatusReady, DeliveryPartnerID: &partner}, false},
		{"delivered", Order{Status: OrderStatusDelivered}, false},
		{"cancelled", Order{Status: OrderStatusCancelled}, false},
	}
	for _, tc := range cases {
		if got := tc.o.Claimable(); got != tc.want {
			t.Errorf("%s: claimable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCanCancelFrom(t *testing.T) {
	if !RoleCustomer.CanCancelFrom(OrderStatusPending) || !RoleCustomer.CanCancelFrom(OrderStatusConfirmed) {
		t.Error("customer should cancel pending and confirmed")
	}
	if RoleCustomer.CanCancelFrom(OrderStatusPreparing) {
		t.Error("customer should not cancel once the kitchen started")
	}
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusOutForDelivery} {
		if !RoleRestaurantOwner.CanCancelFrom(s) || !RoleAdmin.CanCancelFrom(s) {
			t.Errorf("owner/admin should cancel from %s", s)
		}
	}
	if RoleAdmin.CanCancelFrom(OrderStatusDelivered) {
		t.Error("nobody cancels a delivered order")
	}
	if RoleDeliveryPartner.CanCancelFrom(OrderStatusReady) {
		t.Error("partners do not cancel orders")
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"customer", "restaurant_owner", "admin", "delivery_partner"} {
		if _, err := ParseRole(s); err != nil {
			t.Errorf("ParseRole(%q): %v", s, err)
		}
	}
	for _, s := range []string{"", "root", "Customer"} {
		if _, err := ParseRole(s); err == nil {
			t.Errorf("ParseRole(%q) accepted", s)
		}
	}
}
