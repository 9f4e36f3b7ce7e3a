package domain

import "time"

// Broker message types published by the CRUD layer on the orders_topic
// exchange and consumed by the ingest bridge.
const (
	MsgOrderCreated       = "order.created"
	MsgOrderStatusChanged = "order.status_changed"
)

type OrderCreatedMessage struct {
	Type  string `json:"type"`
	Order Order  `json:"order"`
}

type OrderStatusChangedMessage struct {
	Type      string      `json:"type"`
	OrderID   string      `json:"order_id"`
	UserID    string      `json:"user_id,omitempty"`
	OldStatus OrderStatus `json:"old_status,omitempty"`
	NewStatus OrderStatus `json:"new_status"`
	ChangedAt time.Time   `json:"changed_at"`
}
