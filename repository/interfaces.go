package repository

import (
	"context"
	"time"

	"github.com/amanazads/flashbites-sub000/models"
)

// OrderRepositoryI defines operations on Order entities.
type OrderRepositoryI interface {
	Create(ctx context.Context, o *models.Order) (*models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	ListByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	ListClaimable(ctx context.Context) ([]models.Order, error)
	FindRecentDuplicate(ctx context.Context, userID, restaurantID int64, total float64, since time.Time) (*models.Order, error)
	CommitTransition(ctx context.Context, id int64, from, to models.OrderStatus, now time.Time) error
	CommitCancellation(ctx context.Context, id int64, from models.OrderStatus, reason string, now time.Time) error
	Claim(ctx context.Context, orderID, partnerID int64) error
	Release(ctx context.Context, orderID, partnerID int64) error
	DeliverAndCredit(ctx context.Context, orderID int64, now time.Time) (commission float64, err error)
}

// RestaurantRepositoryI defines operations on Restaurant entities.
type RestaurantRepositoryI interface {
	Create(ctx context.Context, r *models.Restaurant) (*models.Restaurant, error)
	GetByID(ctx context.Context, id int64) (*models.Restaurant, error)
}

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	Create(ctx context.Context, username string, role models.Role) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	ListActiveDeliveryPartners(ctx context.Context) ([]models.User, error)
}

// NotificationRepositoryI defines the durable notification store.
type NotificationRepositoryI interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, recipientID int64) (int64, error)
	MarkRead(ctx context.Context, id string, recipientID int64) error
	MarkAllRead(ctx context.Context, recipientID int64) error
	Delete(ctx context.Context, id string, recipientID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SubscriptionRepositoryI defines the push subscription store.
type SubscriptionRepositoryI interface {
	Save(ctx context.Context, s *models.PushSubscription) error
	ListActiveByUser(ctx context.Context, userID int64) ([]models.PushSubscription, error)
	Deactivate(ctx context.Context, id string) error
	DeactivateByEndpoint(ctx context.Context, userID int64, endpoint string) error
}
