package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/amanazads/flashbites-sub000/models"
)

// UserRepository handles User entities.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user with the given role.
func (r *UserRepository) Create(ctx context.Context, username string, role models.Role) (*models.User, error) {
	if username == "" {
		return nil, errors.New("username is empty")
	}
	if role == "" {
		role = models.RoleCustomer
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `INSERT INTO users (username, role, is_active) VALUES (?,?,1)`, username, string(role))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.User{ID: id, Username: username, Role: role, IsActive: true}, nil
}

// GetByID fetches a user by ID. Returns (nil, nil) when absent.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var u models.User
	var role string
	err := r.db.QueryRowContext(ctx, `SELECT id, username, role, is_active FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &role, &u.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// ListActiveDeliveryPartners returns every active delivery-partner account.
// Used to fan out new-order-available notifications to the whole fleet.
func (r *UserRepository) ListActiveDeliveryPartners(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT id, username, role, is_active FROM users WHERE role = ? AND is_active = 1 ORDER BY id ASC`,
		string(models.RoleDeliveryPartner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.User
	for rows.Next() {
		var u models.User
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &role, &u.IsActive); err != nil {
			return nil, err
		}
		u.Role = models.Role(role)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RestaurantRepository handles Restaurant entities.
type RestaurantRepository struct {
	db *sql.DB
}

// NewRestaurantRepository creates a new RestaurantRepository.
func NewRestaurantRepository(db *sql.DB) *RestaurantRepository {
	return &RestaurantRepository{db: db}
}

// Create inserts a new restaurant.
func (r *RestaurantRepository) Create(ctx context.Context, rest *models.Restaurant) (*models.Restaurant, error) {
	if rest == nil {
		return nil, errors.New("restaurant is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `INSERT INTO restaurants (owner_id, name, commission_rate, total_earnings) VALUES (?,?,?,?)`,
		rest.OwnerID, rest.Name, rest.CommissionRate, rest.TotalEarnings)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	rest.ID = id
	return rest, nil
}

// GetByID fetches a restaurant by ID. Returns (nil, nil) when absent.
func (r *RestaurantRepository) GetByID(ctx context.Context, id int64) (*models.Restaurant, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var rest models.Restaurant
	err := r.db.QueryRowContext(ctx, `SELECT id, owner_id, name, commission_rate, total_earnings FROM restaurants WHERE id = ?`, id).
		Scan(&rest.ID, &rest.OwnerID, &rest.Name, &rest.CommissionRate, &rest.TotalEarnings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rest, nil
}
