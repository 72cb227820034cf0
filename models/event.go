package models

// EventKind distinguishes the lifecycle events the dispatcher routes.
type EventKind string

const (
	EventOrderPlaced       EventKind = "order_placed"
	EventStatusChanged     EventKind = "status_changed"
	EventDeliveryClaimed   EventKind = "delivery_claimed"
	EventDeliveryCancelled EventKind = "delivery_cancelled"
)

// LifecycleEvent describes a committed order mutation for fanout. It is
// produced by the state machine or the assignment coordinator strictly after
// the storage commit, so dispatch never advertises a change that did not
// persist.
type LifecycleEvent struct {
	Kind       EventKind   `json:"kind"`
	OrderID    int64       `json:"order_id"`
	FromStatus OrderStatus `json:"from_status,omitempty"`
	ToStatus   OrderStatus `json:"to_status,omitempty"`
	ActorRole  Role        `json:"actor_role"`
	Order      *Order      `json:"order"`

	// PartnerID is set for claim/unassign events.
	PartnerID *int64 `json:"partner_id,omitempty"`
}
