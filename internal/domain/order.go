package domain

import (
	"slices"
	"time"
)

// Order status constants.
const (
	OrderStatusPending   = "pending"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusDelivered = "delivered"
	OrderStatusCanceled  = "canceled"
)

// Order is a customer's order. Total is computed server-side from menu
// prices at creation time, in cents.
type Order struct {
	ID           int64       `json:"id"`
	UserID       int64       `json:"user_id"`
	CustomerName string      `json:"customer_name"`
	Status       string      `json:"status"`
	Total        int64       `json:"total"`
	Notes        string      `json:"notes,omitempty"`
	Items        []OrderItem `json:"items"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// OrderItem links an order to a menu item. Name and UnitPrice are copied
// from the menu so later menu edits do not rewrite past orders.
type OrderItem struct {
	ID         int64  `json:"id"`
	OrderID    int64  `json:"order_id"`
	MenuItemID int64  `json:"menu_item_id"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
}

// Subtotal is UnitPrice * Quantity.
func (i OrderItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// OrderFilter narrows order listings. A zero UserID means all users.
type OrderFilter struct {
	UserID int64
	Status string
}

var allowedTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusPreparing, OrderStatusCanceled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCanceled},
	OrderStatusReady:     {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusCanceled:  {},
}

// ValidStatuses returns all order statuses in lifecycle order.
func ValidStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusPreparing,
		OrderStatusReady,
		OrderStatusDelivered,
		OrderStatusCanceled,
	}
}

func IsValidStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

// CanTransitionTo reports whether the order may move to next.
func (o *Order) CanTransitionTo(next string) bool {
	return slices.Contains(allowedTransitions[o.Status], next)
}

// ComputeTotal sums the item subtotals.
func (o *Order) ComputeTotal() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.Subtotal()
	}
	return total
}
