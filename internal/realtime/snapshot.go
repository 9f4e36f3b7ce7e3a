package realtime

import (
	"context"
	"sort"
	"time"

	"restaurant-live/internal/common/logger"
	"restaurant-live/internal/domain"
)

// OrderStore is the durable-store collaborator the snapshot provider
// reads from at connect time.
type OrderStore interface {
	RecentOrders(ctx context.Context, since time.Time) ([]domain.Order, error)
	OrdersByUser(ctx context.Context, userID string, statuses []domain.OrderStatus) ([]domain.Order, error)
	OrderByID(ctx context.Context, orderID string) (*domain.Order, error)
}

// SnapshotProvider replays a bounded catch-up view onto a freshly opened
// channel. SSE has no built-in replay; re-deriving current state from the
// store at connect time substitutes for it, bounded by a time window or
// status filter rather than full history.
type SnapshotProvider struct {
	store  OrderStore
	window time.Duration
	lg     *logger.Logger
}

func NewSnapshotProvider(store OrderStore, window time.Duration, lg *logger.Logger) *SnapshotProvider {
	return &SnapshotProvider{store: store, window: window, lg: lg}
}

// ReplayAdmin pushes every order created within the window as a synthetic
// new-order event, newest first. Store failures are logged and swallowed:
// the connection still completes handshake and gets live events.
func (s *SnapshotProvider) ReplayAdmin(ctx context.Context, ch Channel) {
	cutoff := time.Now().UTC().Add(-s.window)
	orders, err := s.store.RecentOrders(ctx, cutoff)
	if err != nil {
		s.lg.Error("admin_snapshot_failed", err, nil)
		return
	}
	orders = filterSince(orders, cutoff)
	sortNewestFirst(orders)
	SnapshotReplaySize.Observe(float64(len(orders)))
	for _, o := range orders {
		if !s.push(ch, domain.EventNewOrder, domain.NewOrderPayload{Order: o}) {
			return
		}
	}
}

// ReplayUser pushes the user's still-active orders as synthetic
// order-status-update events with an empty oldStatus, meaning "current
// state, not a transition".
func (s *SnapshotProvider) ReplayUser(ctx context.Context, userID string, ch Channel) {
	orders, err := s.store.OrdersByUser(ctx, userID, domain.ActiveStatuses)
	if err != nil {
		s.lg.Error("user_snapshot_failed", err, map[string]any{"user_id": userID})
		return
	}
	orders = filterActive(orders)
	sortNewestFirst(orders)
	SnapshotReplaySize.Observe(float64(len(orders)))
	for _, o := range orders {
		ok := s.push(ch, domain.EventOrderStatusUpdate, domain.OrderStatusPayload{
			OrderID:   o.ID,
			NewStatus: o.Status,
			UpdatedAt: o.UpdatedAt,
			UserID:    userID,
		})
		if !ok {
			return
		}
	}
}

// ReplayGuest pushes the current state of a single tracked order.
func (s *SnapshotProvider) ReplayGuest(ctx context.Context, orderID string, ch Channel) {
	o, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		s.lg.Error("guest_snapshot_failed", err, map[string]any{"order_id": orderID})
		return
	}
	if o == nil {
		return
	}
	s.push(ch, domain.EventOrderStatusUpdate, domain.OrderStatusPayload{
		OrderID:   o.ID,
		NewStatus: o.Status,
		UpdatedAt: o.UpdatedAt,
	})
}

func (s *SnapshotProvider) push(ch Channel, event string, payload any) bool {
	frame, err := Frame(event, payload)
	if err != nil {
		s.lg.Error("event_marshal_failed", err, map[string]any{"event": event})
		return false
	}
	if err := ch.Send(frame); err != nil {
		// Channel died mid-replay; the endpoint's keepalive will notice.
		return false
	}
	EventsSent.WithLabelValues(event).Inc()
	return true
}

// filterSince drops orders older than the cutoff even if the store
// returns them; the window bound holds regardless of store contents.
func filterSince(orders []domain.Order, cutoff time.Time) []domain.Order {
	out := orders[:0]
	for _, o := range orders {
		if !o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out
}

func filterActive(orders []domain.Order) []domain.Order {
	out := orders[:0]
	for _, o := range orders {
		for _, st := range domain.ActiveStatuses {
			if o.Status == st {
				out = append(out, o)
				break
			}
		}
	}
	return out
}

func sortNewestFirst(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
}
