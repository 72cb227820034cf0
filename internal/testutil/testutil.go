package testutil

import (
	"context"
	"database/sql"
	"testing"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/amanazads/flashbites-sub000/internal/db"
	"github.com/amanazads/flashbites-sub000/models"
	"github.com/amanazads/flashbites-sub000/repository"
)

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// Caller is responsible for closing the DB, typically via t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	// Shared cache so multiple connections in one test see the same DB.
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// Shared-cache in-memory SQLite returns "table is locked" to a second
	// connection; one connection serializes the pool.
	d.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// GenerateJWTHS256 returns a signed JWT string with the claims the app
// reads at handshake.
func GenerateJWTHS256(t *testing.T, secret string, userID int64, role models.Role) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// SeedUser creates a user with the given role.
func SeedUser(t *testing.T, d *sql.DB, username string, role models.Role) *models.User {
	t.Helper()
	u, err := repository.NewUserRepository(d).Create(context.Background(), username, role)
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

// SeedRestaurant creates a restaurant owned by a fresh owner account.
func SeedRestaurant(t *testing.T, d *sql.DB, name string, commissionRate float64) *models.Restaurant {
	t.Helper()
	owner := SeedUser(t, d, name+"-owner", models.RoleRestaurantOwner)
	r, err := repository.NewRestaurantRepository(d).Create(context.Background(), &models.Restaurant{
		OwnerID:        owner.ID,
		Name:           name,
		CommissionRate: commissionRate,
	})
	if err != nil {
		t.Fatalf("seed restaurant %s: %v", name, err)
	}
	return r
}

// SeedOrder creates an order in the given status.
func SeedOrder(t *testing.T, d *sql.DB, userID, restaurantID int64, status models.OrderStatus, total float64) *models.Order {
	t.Helper()
	repo := repository.NewOrderRepository(d)
	o, err := repo.Create(context.Background(), &models.Order{
		UserID:       userID,
		RestaurantID: restaurantID,
		Subtotal:     total,
		Total:        total,
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if status != models.OrderStatusPending {
		if _, err := d.Exec(`UPDATE orders SET status = ? WHERE id = ?`, string(status), o.ID); err != nil {
			t.Fatalf("set order status: %v", err)
		}
		o.Status = status
	}
	return o
}
