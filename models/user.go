package models

// User represents any account in the system: customers, restaurant owners,
// admins and delivery partners are all rows in the `users` table
// distinguished by Role.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Role     Role   `db:"role" json:"role"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// Restaurant represents a restaurant with its commission contract.
// TotalEarnings is credited on every delivered order.
type Restaurant struct {
	ID             int64   `db:"id" json:"id"`
	OwnerID        int64   `db:"owner_id" json:"owner_id"`
	Name           string  `db:"name" json:"name"`
	CommissionRate float64 `db:"commission_rate" json:"commission_rate"` // percent
	TotalEarnings  float64 `db:"total_earnings" json:"total_earnings"`
}
