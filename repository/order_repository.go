package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/amanazads/flashbites-sub000/models"
)

const orderColumns = `id, user_id, restaurant_id, status, delivery_partner_id, subtotal, delivery_fee, tax, discount, total, payment_status, cancellation_reason, placed_at, confirmed_at, delivered_at, cancelled_at`

// OrderRepository is the core repository for Order entities. All lifecycle
// writes are conditional single-statement updates guarded by the current
// status, so a lost race surfaces as sql.ErrNoRows instead of a silent
// overwrite.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order. Status defaults to 'pending' if empty.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) (*models.Order, error) {
	if o == nil {
		return nil, errors.New("order is nil")
	}
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = models.PaymentStatusPending
	}
	if o.PlacedAt.IsZero() {
		o.PlacedAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO orders (user_id, restaurant_id, status, subtotal, delivery_fee, tax, discount, total, payment_status, placed_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		o.UserID, o.RestaurantID, string(o.Status), o.Subtotal, o.DeliveryFee, o.Tax, o.Discount, o.Total, string(o.PaymentStatus), o.PlacedAt)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	o2, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o2 == nil {
		return nil, fmt.Errorf("created order not found: id=%d", id)
	}
	return o2, nil
}

// GetByID fetches an order by its ID. Returns (nil, nil) when absent.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	return scanOrder(row)
}

// ListByUserID returns all orders for a user, most recent first.
func (r *OrderRepository) ListByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY placed_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrderRows(rows)
}

// ListClaimable returns orders a delivery partner may claim: no assignee and
// status in (ready, confirmed), oldest first so the longest-waiting order is
// offered first.
func (r *OrderRepository) ListClaimable(ctx context.Context) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE delivery_partner_id IS NULL
  AND status IN ('ready','confirmed')
ORDER BY placed_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrderRows(rows)
}

// FindRecentDuplicate returns an existing order by the same user at the same
// restaurant with the same total placed at or after `since`, if any. Used to
// absorb client retry storms as idempotent successes.
func (r *OrderRepository) FindRecentDuplicate(ctx context.Context, userID, restaurantID int64, total float64, since time.Time) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE user_id = ? AND restaurant_id = ? AND total = ? AND placed_at >= ?
ORDER BY placed_at DESC, id DESC
LIMIT 1`, userID, restaurantID, total, since)
	return scanOrder(row)
}

// CommitTransition moves an order from `from` to `to` in one conditional
// update. confirmed_at is stamped exactly once, by the transition that
// produces it. Returns sql.ErrNoRows when the order is no longer in `from`.
func (r *OrderRepository) CommitTransition(ctx context.Context, id int64, from, to models.OrderStatus, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var res sql.Result
	var err error
	if to == models.OrderStatusConfirmed {
		res, err = r.db.ExecContext(ctx, `UPDATE orders SET status = ?, confirmed_at = COALESCE(confirmed_at, ?) WHERE id = ? AND status = ?`,
			string(to), now, id, string(from))
	} else {
		res, err = r.db.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ? AND status = ?`,
			string(to), id, string(from))
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CommitCancellation cancels an order currently in `from`, stamping
// cancelled_at and recording the reason.
func (r *OrderRepository) CommitCancellation(ctx context.Context, id int64, from models.OrderStatus, reason string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `
UPDATE orders
SET status = ?, cancellation_reason = ?, cancelled_at = COALESCE(cancelled_at, ?)
WHERE id = ? AND status = ?`,
		string(models.OrderStatusCancelled), reason, now, id, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Claim atomically assigns an order to a delivery partner. The WHERE clause
// is the single compare-and-set that decides concurrent claims: it only
// matches while the order is unassigned and still claimable, so under N
// simultaneous callers exactly one update takes effect. Returns sql.ErrNoRows
// for every loser.
func (r *OrderRepository) Claim(ctx context.Context, orderID, partnerID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `
UPDATE orders
SET delivery_partner_id = ?, status = ?
WHERE id = ?
  AND delivery_partner_id IS NULL
  AND status IN ('ready','confirmed')`,
		partnerID, string(models.OrderStatusOutForDelivery), orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Release clears the partner's assignment and returns the order to 'ready'.
// Conditional on the caller still being the assignee.
func (r *OrderRepository) Release(ctx context.Context, orderID, partnerID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `
UPDATE orders
SET delivery_partner_id = NULL, status = ?
WHERE id = ? AND delivery_partner_id = ? AND status = ?`,
		string(models.OrderStatusReady), orderID, partnerID, string(models.OrderStatusOutForDelivery))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeliverAndCredit marks an out_for_delivery order delivered and credits the
// restaurant's earnings in the same transaction. The commission is
// total * commission_rate / 100, rounded to cents; the restaurant keeps the
// remainder. If the earnings update fails the status commit rolls back too,
// so the transition is never half-applied.
func (r *OrderRepository) DeliverAndCredit(ctx context.Context, orderID int64, now time.Time) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total, rate float64
	var restaurantID int64
	err = tx.QueryRowContext(ctx, `
SELECT o.total, o.restaurant_id, r.commission_rate
FROM orders o
JOIN restaurants r ON r.id = o.restaurant_id
WHERE o.id = ?`, orderID).Scan(&total, &restaurantID, &rate)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
UPDATE orders
SET status = ?, delivered_at = COALESCE(delivered_at, ?)
WHERE id = ? AND status = ?`,
		string(models.OrderStatusDelivered), now, orderID, string(models.OrderStatusOutForDelivery))
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, sql.ErrNoRows
	}

	commission := roundCents(total * rate / 100)
	earned := roundCents(total - commission)
	if _, err := tx.ExecContext(ctx, `UPDATE restaurants SET total_earnings = total_earnings + ? WHERE id = ?`, earned, restaurantID); err != nil {
		return 0, fmt.Errorf("credit restaurant %d: %w", restaurantID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return commission, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// scanOrder scans a single-row result. Returns (nil, nil) on sql.ErrNoRows.
func scanOrder(row *sql.Row) (*models.Order, error) {
	var o models.Order
	var status, payment string
	var partner sql.NullInt64
	var confirmedAt, deliveredAt, cancelledAt sql.NullTime
	err := row.Scan(&o.ID, &o.UserID, &o.RestaurantID, &status, &partner,
		&o.Subtotal, &o.DeliveryFee, &o.Tax, &o.Discount, &o.Total,
		&payment, &o.CancellationReason, &o.PlacedAt, &confirmedAt, &deliveredAt, &cancelledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	applyNullables(&o, status, payment, partner, confirmedAt, deliveredAt, cancelledAt)
	return &o, nil
}

func scanOrderRows(rows *sql.Rows) ([]models.Order, error) {
	var out []models.Order
	for rows.Next() {
		var o models.Order
		var status, payment string
		var partner sql.NullInt64
		var confirmedAt, deliveredAt, cancelledAt sql.NullTime
		if err := rows.Scan(&o.ID, &o.UserID, &o.RestaurantID, &status, &partner,
			&o.Subtotal, &o.DeliveryFee, &o.Tax, &o.Discount, &o.Total,
			&payment, &o.CancellationReason, &o.PlacedAt, &confirmedAt, &deliveredAt, &cancelledAt); err != nil {
			return nil, err
		}
		applyNullables(&o, status, payment, partner, confirmedAt, deliveredAt, cancelledAt)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func applyNullables(o *models.Order, status, payment string, partner sql.NullInt64, confirmedAt, deliveredAt, cancelledAt sql.NullTime) {
	o.Status = models.OrderStatus(status)
	o.PaymentStatus = models.PaymentStatus(payment)
	if partner.Valid {
		v := partner.Int64
		o.DeliveryPartnerID = &v
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		o.ConfirmedAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		o.CancelledAt = &t
	}
}
