package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/amanazads/flashbites-sub000/models"
)

// SubscriptionRepository stores push subscriptions. Dead endpoints are
// deactivated, never hard-deleted, so delivery history stays auditable.
type SubscriptionRepository struct {
	db *sql.DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Save registers a subscription. Re-registering the same user+endpoint
// reactivates it with fresh keys instead of inserting a duplicate.
func (r *SubscriptionRepository) Save(ctx context.Context, s *models.PushSubscription) error {
	if s == nil {
		return errors.New("subscription is nil")
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, is_active, created_at)
VALUES (?,?,?,?,?,1,?)
ON CONFLICT(user_id, endpoint) DO UPDATE SET p256dh = excluded.p256dh, auth = excluded.auth, is_active = 1`,
		s.ID, s.UserID, s.Endpoint, s.P256dh, s.Auth, s.CreatedAt)
	if err != nil {
		return err
	}
	s.IsActive = true
	return nil
}

// ListActiveByUser returns the user's active subscriptions.
func (r *SubscriptionRepository) ListActiveByUser(ctx context.Context, userID int64) ([]models.PushSubscription, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, endpoint, p256dh, auth, is_active, created_at
FROM push_subscriptions
WHERE user_id = ? AND is_active = 1
ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PushSubscription
	for rows.Next() {
		var s models.PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Deactivate flips is_active off. Idempotent: deactivating an already
// inactive or missing subscription is not an error.
func (r *SubscriptionRepository) Deactivate(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE push_subscriptions SET is_active = 0 WHERE id = ?`, id)
	return err
}

// DeactivateByEndpoint is the user-facing unsubscribe: browsers know their
// endpoint URL, not our row id. Scoped to the owner and idempotent.
func (r *SubscriptionRepository) DeactivateByEndpoint(ctx context.Context, userID int64, endpoint string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE push_subscriptions SET is_active = 0 WHERE user_id = ? AND endpoint = ?`, userID, endpoint)
	return err
}
