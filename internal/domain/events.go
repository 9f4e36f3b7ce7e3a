package domain

import "time"

// SSE event names on the wire.
const (
	EventConnected         = "connected"
	EventTest              = "test"
	EventReconnect         = "reconnect"
	EventNewOrder          = "new-order"
	EventOrderUpdate       = "order-update"        // admin-facing
	EventOrderStatusUpdate = "order-status-update" // user/guest-facing
)

// ConnectedPayload is the handshake event sent right after a stream opens.
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	Audience     string `json:"audience"`
	UserID       string `json:"userId,omitempty"`
	OrderID      string `json:"orderId,omitempty"`
}

// NewOrderPayload wraps the full order record for admin dashboards.
type NewOrderPayload struct {
	Order Order `json:"order"`
}

// OrderUpdatePayload is the admin-facing status change notification.
type OrderUpdatePayload struct {
	Type      string      `json:"type"` // always "status-change"
	OrderID   string      `json:"orderId"`
	OldStatus OrderStatus `json:"oldStatus"`
	NewStatus OrderStatus `json:"newStatus"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// OrderStatusPayload is the user/guest-facing status change notification.
// OldStatus is empty on snapshot replay: the event carries current state,
// not a transition.
type OrderStatusPayload struct {
	OrderID   string      `json:"orderId"`
	OldStatus OrderStatus `json:"oldStatus"`
	NewStatus OrderStatus `json:"newStatus"`
	UpdatedAt time.Time   `json:"updatedAt"`
	UserID    string      `json:"userId,omitempty"`
}

// ReconnectPayload asks the client to drop and re-establish the stream.
type ReconnectPayload struct {
	Reason string `json:"reason"`
}
