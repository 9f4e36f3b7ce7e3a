package domain

import "time"

// Order statuses as stored in Postgres. "preparing" is the transitional
// kitchen state between accepted and completed.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusPreparing OrderStatus = "preparing"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// ActiveStatuses are the statuses a customer still watches live; user
// snapshot replay is limited to these.
var ActiveStatuses = []OrderStatus{StatusPending, StatusAccepted, StatusPreparing}

type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order is the persisted record relayed to stream clients. JSON field
// names follow the shape the web frontend already consumes.
type Order struct {
	ID          string      `json:"_id"`
	UserID      string      `json:"userId,omitempty"` // empty for guest orders
	Status      OrderStatus `json:"status"`
	Items       []OrderItem `json:"items"`
	TotalPrice  float64     `json:"totalPrice"`
	TotalPoints int         `json:"totalPoints"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
