package domain

import (
	"time"
)

// OrderStatus tracks an order through fulfilment.
type OrderStatus string

const (
	// OrderStatusPending is set when an order is placed.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed means payment has been accepted.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipped means the order left the warehouse.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered means the order reached the shopper.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled means the order will not be fulfilled.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderItem is a purchased line captured at checkout time.
type OrderItem struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

// Order is a completed checkout.
type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Items           []OrderItem `json:"items"`
	TotalCents      int64       `json:"total_cents"`
	Status          OrderStatus `json:"status"`
	ShippingAddress string      `json:"shipping_address"`
	CreatedAt       time.Time   `json:"created_at"`
}

// IsOpen returns true while the order can still change.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
}
