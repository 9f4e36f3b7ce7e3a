package realtime

import (
	"sync"
	"time"

	"restaurant-live/internal/common/logger"
	"restaurant-live/internal/domain"
)

// Dispatcher formats domain events and pushes them to matching registry
// groups. Delivery is at-most-once: a connection that is down at dispatch
// time misses the event and recovers current state via snapshot replay
// on its next connect.
type Dispatcher struct {
	reg *Registry
	lg  *logger.Logger

	mu         sync.Mutex
	lastStatus map[string]domain.OrderStatus // orderID -> last seen status
}

func NewDispatcher(reg *Registry, lg *logger.Logger) *Dispatcher {
	return &Dispatcher{
		reg:        reg,
		lg:         lg,
		lastStatus: make(map[string]domain.OrderStatus),
	}
}

// BroadcastToAdmins delivers one event to every active admin connection.
// A failing connection is marked and pruned after the sweep; its siblings
// still receive the event.
func (d *Dispatcher) BroadcastToAdmins(event string, payload any) {
	d.deliver(d.reg.collectAdmins(), event, payload)
}

// SendToUser delivers one event to all of a user's connections. A user
// with zero connections is a silent no-op: the event is dropped.
func (d *Dispatcher) SendToUser(userID, event string, payload any) {
	d.deliver(d.reg.collectUser(userID), event, payload)
}

// SendToGuest delivers one event to every connection tracking an order.
func (d *Dispatcher) SendToGuest(orderID, event string, payload any) {
	d.deliver(d.reg.collectGuest(orderID), event, payload)
}

func (d *Dispatcher) deliver(conns []*connection, event string, payload any) {
	if len(conns) == 0 {
		return
	}
	frame, err := Frame(event, payload)
	if err != nil {
		d.lg.Error("event_marshal_failed", err, map[string]any{"event": event})
		return
	}
	var failed []*connection
	for _, c := range conns {
		if err := c.ch.Send(frame); err != nil {
			d.reg.markError(c)
			failed = append(failed, c)
			SendFailures.Inc()
			d.lg.Debug("push_failed", map[string]any{"connection_id": c.id, "event": event})
			continue
		}
		EventsSent.WithLabelValues(event).Inc()
	}
	d.reg.prune(failed)
}

// NotifyOrderStatusChange composes the user-facing status event with a
// server-side timestamp and sends it to the user's connections.
func (d *Dispatcher) NotifyOrderStatusChange(userID, orderID string, oldStatus, newStatus domain.OrderStatus) {
	d.SendToUser(userID, domain.EventOrderStatusUpdate, domain.OrderStatusPayload{
		OrderID:   orderID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		UpdatedAt: time.Now().UTC(),
		UserID:    userID,
	})
}

// OnOrderCreated is the injection point the write path calls after a new
// order is persisted. Errors never propagate back: placing an order must
// succeed even if nobody is listening.
func (d *Dispatcher) OnOrderCreated(order domain.Order) {
	d.retain(order.ID, order.Status)
	d.BroadcastToAdmins(domain.EventNewOrder, domain.NewOrderPayload{Order: order})
}

// OnOrderStatusChanged is the injection point for status transitions. An
// empty oldStatus falls back to the retained last-known status, so
// callers that do not track history still produce a coherent transition.
func (d *Dispatcher) OnOrderStatusChanged(order domain.Order, oldStatus, newStatus domain.OrderStatus) {
	if oldStatus == "" {
		oldStatus = d.LastKnownStatus(order.ID)
	}
	// Terminal orders never transition again; forget them so the
	// retained-status map stays bounded by in-flight orders.
	if newStatus == domain.StatusCompleted || newStatus == domain.StatusCancelled {
		d.forget(order.ID)
	} else {
		d.retain(order.ID, newStatus)
	}
	now := time.Now().UTC()

	d.BroadcastToAdmins(domain.EventOrderUpdate, domain.OrderUpdatePayload{
		Type:      "status-change",
		OrderID:   order.ID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		UpdatedAt: now,
	})
	if order.UserID != "" {
		d.SendToUser(order.UserID, domain.EventOrderStatusUpdate, domain.OrderStatusPayload{
			OrderID:   order.ID,
			OldStatus: oldStatus,
			NewStatus: newStatus,
			UpdatedAt: now,
			UserID:    order.UserID,
		})
	}
	d.SendToGuest(order.ID, domain.EventOrderStatusUpdate, domain.OrderStatusPayload{
		OrderID:   order.ID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		UpdatedAt: now,
	})
}

// CycleAll asks every connected client to re-establish, used on graceful
// shutdown so clients reconnect to a healthy instance instead of waiting
// out their staleness timers.
func (d *Dispatcher) CycleAll(reason string) {
	d.deliver(d.reg.collectAll(), domain.EventReconnect, domain.ReconnectPayload{Reason: reason})
}

// LastKnownStatus returns the most recent status the dispatcher has seen
// for the order, or empty if it never saw the order.
func (d *Dispatcher) LastKnownStatus(orderID string) domain.OrderStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastStatus[orderID]
}

func (d *Dispatcher) retain(orderID string, status domain.OrderStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastStatus[orderID] = status
}

func (d *Dispatcher) forget(orderID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.lastStatus, orderID)
}
