package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/amanazads/flashbites-sub000/models"
)

// NotificationRepository is the durable notification store. A create failure
// here is a data-loss bug and is always surfaced to the caller; read, delete
// and mark-read are recipient-scoped and idempotent.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create persists a notification. Defaults: fresh UUID, normal priority,
// 30-day expiry.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n == nil {
		return errors.New("notification is nil")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Priority == "" {
		n.Priority = models.PriorityNormal
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.ExpiresAt.IsZero() {
		n.ExpiresAt = n.CreatedAt.Add(models.DefaultNotificationTTL)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var orderID any
	if n.OrderID != nil {
		orderID = *n.OrderID
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO notifications (id, recipient_id, type, title, body, order_id, priority, read, created_at, expires_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		n.ID, n.RecipientID, string(n.Type), n.Title, n.Body, orderID, string(n.Priority), n.Read, n.CreatedAt, n.ExpiresAt)
	return err
}

// ListByRecipient returns the recipient's notifications, newest first,
// excluding expired records the sweeper has not collected yet.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
SELECT id, recipient_id, type, title, body, order_id, priority, read, created_at, expires_at
FROM notifications
WHERE recipient_id = ? AND expires_at > ?
ORDER BY created_at DESC, id DESC
LIMIT ?`, recipientID, time.Now().UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var typ, priority string
		var orderID sql.NullInt64
		if err := rows.Scan(&n.ID, &n.RecipientID, &typ, &n.Title, &n.Body, &orderID, &priority, &n.Read, &n.CreatedAt, &n.ExpiresAt); err != nil {
			return nil, err
		}
		n.Type = models.NotificationType(typ)
		n.Priority = models.NotificationPriority(priority)
		if orderID.Valid {
			v := orderID.Int64
			n.OrderID = &v
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCount returns the number of unread, unexpired notifications.
func (r *NotificationRepository) UnreadCount(ctx context.Context, recipientID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND read = 0 AND expires_at > ?`,
		recipientID, time.Now().UTC()).Scan(&n)
	return n, err
}

// MarkRead flags a notification read. Idempotent: marking an already-read or
// missing notification is not an error.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, recipientID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ? AND recipient_id = ?`, id, recipientID)
	return err
}

// MarkAllRead flags every notification of the recipient as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE recipient_id = ? AND read = 0`, recipientID)
	return err
}

// Delete removes a notification. Idempotent.
func (r *NotificationRepository) Delete(ctx context.Context, id string, recipientID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND recipient_id = ?`, id, recipientID)
	return err
}

// DeleteExpired removes every notification whose expiry has passed and
// returns how many were collected.
func (r *NotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
