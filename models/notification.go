package models

import "time"

// NotificationType is the closed enum of lifecycle and business events a
// notification can carry.
type NotificationType string

const (
	NotificationOrderPlaced       NotificationType = "order_placed"
	NotificationOrderUpdate       NotificationType = "order_update"
	NotificationOrderAvailable    NotificationType = "order_available"
	NotificationDeliveryAssigned  NotificationType = "delivery_assigned"
	NotificationDeliveryCancelled NotificationType = "delivery_cancelled"
)

// NotificationPriority orders notifications in client inboxes.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// DefaultNotificationTTL is how long a notification is retained before the
// expiry sweep may remove it.
const DefaultNotificationTTL = 30 * 24 * time.Hour

// Notification is a durable, recipient-scoped record of a dispatched event.
// It exists regardless of whether any live connection received the
// real-time push.
type Notification struct {
	ID          string               `db:"id" json:"id"`
	RecipientID int64                `db:"recipient_id" json:"recipient_id"`
	Type        NotificationType     `db:"type" json:"type"`
	Title       string               `db:"title" json:"title"`
	Body        string               `db:"body" json:"body"`
	OrderID     *int64               `db:"order_id" json:"order_id,omitempty"`
	Priority    NotificationPriority `db:"priority" json:"priority"`
	Read        bool                 `db:"read" json:"read"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time            `db:"expires_at" json:"expires_at"`
}

// PushSubscription is a registered offline-capable endpoint for a user.
// Permanent delivery failures deactivate it; the record is never hard-deleted
// so delivery history stays auditable.
type PushSubscription struct {
	ID        string    `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	P256dh    string    `db:"p256dh" json:"p256dh"`
	Auth      string    `db:"auth" json:"auth"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
