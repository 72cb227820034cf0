package models

import "fmt"

// Role is the closed set of caller kinds. Each role carries the
// room-membership rules it implies on a real-time connection, so dispatch
// never branches on raw strings.
type Role string

const (
	RoleCustomer        Role = "customer"
	RoleRestaurantOwner Role = "restaurant_owner"
	RoleAdmin           Role = "admin"
	RoleDeliveryPartner Role = "delivery_partner"
)

// ParseRole validates a raw role claim against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleRestaurantOwner, RoleAdmin, RoleDeliveryPartner:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Room name builders. Rooms are fanout groups; publishing to a room reaches
// only currently-joined connections.
func UserRoom(userID int64) string { return fmt.Sprintf("user:%d", userID) }

func RestaurantRoom(restaurantID int64) string { return fmt.Sprintf("restaurant:%d", restaurantID) }

func PartnerRoom(partnerID int64) string { return fmt.Sprintf("delivery-partner:%d", partnerID) }

func OrderRoom(orderID int64) string { return fmt.Sprintf("order:%d", orderID) }

const (
	AdminRoom       = "admin"
	AllPartnersRoom = "all-delivery-partners"
)

// InitialRooms returns the rooms a connection of this role joins at
// handshake. Restaurant and order rooms are joined explicitly later, once
// the client announces the identity.
func (r Role) InitialRooms(userID int64) []string {
	switch r {
	case RoleCustomer, RoleRestaurantOwner:
		return []string{UserRoom(userID)}
	case RoleAdmin:
		return []string{UserRoom(userID), AdminRoom}
	case RoleDeliveryPartner:
		return []string{UserRoom(userID), PartnerRoom(userID), AllPartnersRoom}
	}
	return nil
}

// CanCancelFrom reports whether this role may cancel an order currently in
// the given status. Customers may only back out before the kitchen starts;
// restaurant owners and admins may cancel at any pre-delivered stage.
func (r Role) CanCancelFrom(status OrderStatus) bool {
	switch r {
	case RoleCustomer:
		return status == OrderStatusPending || status == OrderStatusConfirmed
	case RoleRestaurantOwner, RoleAdmin:
		return !status.Terminal()
	}
	return false
}

// DefaultCancellationReason is recorded when the caller supplies none.
func (r Role) DefaultCancellationReason() string {
	switch r {
	case RoleCustomer:
		return "cancelled by customer"
	case RoleRestaurantOwner:
		return "cancelled by restaurant"
	case RoleAdmin:
		return "cancelled by admin"
	case RoleDeliveryPartner:
		return "cancelled by delivery partner"
	}
	return "cancelled"
}
