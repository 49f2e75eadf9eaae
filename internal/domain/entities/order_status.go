package entities

import "fmt"

// OrderStatus represents the status of a storefront order
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusMatched OrderStatus = "matched"
	OrderStatusExpired OrderStatus = "expired"
)

// ValidOrderStatuses contains all valid order statuses
var ValidOrderStatuses = map[OrderStatus]bool{
	OrderStatusPending: true,
	OrderStatusMatched: true,
	OrderStatusExpired: true,
}

// ValidOrderTransitions defines allowed status transitions
var ValidOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusMatched, OrderStatusExpired},
	OrderStatusMatched: {}, // Terminal state
	OrderStatusExpired: {}, // Terminal state
}

// IsValid checks if the status is a valid order status
func (s OrderStatus) IsValid() bool {
	return ValidOrderStatuses[s]
}

// CanTransitionTo checks if transition to new status is allowed
func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	allowed, exists := ValidOrderTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusMatched || s == OrderStatusExpired
}

// ValidateTransition validates and returns error if transition is invalid
func (s OrderStatus) ValidateTransition(newStatus OrderStatus) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("invalid order status: %s", newStatus)
	}
	if !s.CanTransitionTo(newStatus) {
		return fmt.Errorf("invalid status transition from %s to %s", s, newStatus)
	}
	return nil
}
