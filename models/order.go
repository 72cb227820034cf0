package models

import "time"

// OrderStatus represents the current progress of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// PaymentStatus is an independent axis from OrderStatus; it does not gate
// lifecycle transitions.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Order represents a customer order at a restaurant. Orders are never
// deleted; terminal states are retained for history.
type Order struct {
	ID           int64       `db:"id" json:"id"`
	UserID       int64       `db:"user_id" json:"user_id"`
	RestaurantID int64       `db:"restaurant_id" json:"restaurant_id"`
	Status       OrderStatus `db:"status" json:"status"`

	// DeliveryPartnerID is owned exclusively by at most one assignee.
	// Nullable in DB; pointer distinguishes null vs zero.
	DeliveryPartnerID *int64 `db:"delivery_partner_id" json:"delivery_partner_id,omitempty"`

	Subtotal    float64 `db:"subtotal" json:"subtotal"`
	DeliveryFee float64 `db:"delivery_fee" json:"delivery_fee"`
	Tax         float64 `db:"tax" json:"tax"`
	Discount    float64 `db:"discount" json:"discount"`
	// Total = Subtotal + DeliveryFee + Tax - Discount.
	Total float64 `db:"total" json:"total"`

	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`

	CancellationReason string `db:"cancellation_reason" json:"cancellation_reason,omitempty"`

	PlacedAt    time.Time  `db:"placed_at" json:"placed_at"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// Claimable reports whether a delivery partner may take ownership of the
// order: no assignee yet and status in {ready, confirmed}.
func (o *Order) Claimable() bool {
	return o.DeliveryPartnerID == nil &&
		(o.Status == OrderStatusReady || o.Status == OrderStatusConfirmed)
}
