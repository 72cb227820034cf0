package orders

import "errors"

// Error taxonomy for lifecycle operations. Callers match with errors.Is.
var (
	// ErrOrderNotFound: no such order.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidTransition: the requested status is not reachable from the
	// order's current status. The order is unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyAssigned: lost a concurrent claim race; another partner
	// holds the order. Re-poll the available list.
	ErrAlreadyAssigned = errors.New("order already assigned to another partner")

	// ErrNotEligible: the order is not claimable in its current state.
	ErrNotEligible = errors.New("order not eligible for claiming")

	// ErrNotAssignedToOrder: the acting partner is not the order's current
	// assignee.
	ErrNotAssignedToOrder = errors.New("not assigned to this order")

	// ErrInvalidState: the operation requires a state the order is not in.
	ErrInvalidState = errors.New("order is not in a valid state for this action")

	// ErrCancelNotAllowed: the actor's role may not cancel at this stage.
	ErrCancelNotAllowed = errors.New("order cannot be cancelled at this stage")
)
