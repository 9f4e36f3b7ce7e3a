package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"restaurant-live/internal/common/logger"
	"restaurant-live/internal/domain"
	"restaurant-live/internal/realtime"
)

type Config struct {
	Keepalive   time.Duration // keepalive frame period
	MaxLifetime time.Duration // forced-expiry ceiling
}

// Handler hosts the three audience stream endpoints plus the one-shot
// tracking lookup. Each stream handler walks the same lifecycle:
// authorize, register, handshake, snapshot replay, keepalive loop,
// idempotent teardown.
type Handler struct {
	reg      *realtime.Registry
	snap     *realtime.SnapshotProvider
	store    realtime.OrderStore
	identity Identity
	cfg      Config
	lg       *logger.Logger
}

func NewHandler(reg *realtime.Registry, snap *realtime.SnapshotProvider, store realtime.OrderStore, identity Identity, cfg Config, lg *logger.Logger) *Handler {
	return &Handler{reg: reg, snap: snap, store: store, identity: identity, cfg: cfg, lg: lg}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/api/v1/stream/admin", h.AdminStream)
	r.Get("/api/v1/stream/user", h.UserStream)
	r.Get("/api/v1/stream/orders/{order_id}", h.GuestStream)
	r.Get("/api/v1/tracking/orders/{order_id}/status", h.OrderStatus)
	return r
}

func (h *Handler) AdminStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	admin, err := h.identity.IsAdmin(r.Context(), userID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "auth_error", err.Error())
		return
	}
	if !admin {
		writeProblem(w, http.StatusForbidden, "forbidden", "admin privilege required")
		return
	}
	h.serve(w, r,
		domain.ConnectedPayload{Audience: realtime.AudienceAdmin, UserID: userID},
		h.reg.RegisterAdmin,
		h.reg.UnregisterAdmin,
		func(ctx context.Context, ch realtime.Channel) { h.snap.ReplayAdmin(ctx, ch) },
	)
}

func (h *Handler) UserStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	h.serve(w, r,
		domain.ConnectedPayload{Audience: realtime.AudienceUser, UserID: userID},
		func(connID string, ch realtime.Channel) { h.reg.RegisterUser(userID, connID, ch) },
		func(connID string) { h.reg.UnregisterUser(userID, connID) },
		func(ctx context.Context, ch realtime.Channel) { h.snap.ReplayUser(ctx, userID, ch) },
	)
}

// GuestStream requires no identity: knowing the order id is the access
// control. Weaker than the authenticated streams, acceptable here since
// order ids are unguessable.
func (h *Handler) GuestStream(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		writeProblem(w, http.StatusBadRequest, "missing_order_id", "order id is required")
		return
	}
	h.serve(w, r,
		domain.ConnectedPayload{Audience: realtime.AudienceGuest, OrderID: orderID},
		func(connID string, ch realtime.Channel) { h.reg.RegisterGuest(orderID, connID, ch) },
		func(connID string) { h.reg.UnregisterGuest(orderID, connID) },
		func(ctx context.Context, ch realtime.Channel) { h.snap.ReplayGuest(ctx, orderID, ch) },
	)
}

// OrderStatus is the one-shot lookup for clients that cannot hold a
// stream open.
func (h *Handler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")
	o, err := h.store.OrderByID(r.Context(), orderID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if o == nil {
		writeProblem(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id": o.ID, "status": o.Status, "updated_at": o.UpdatedAt,
	})
}

// principal authorizes the request or writes the error response itself.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := tokenFromRequest(r)
	if token == "" {
		writeProblem(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return "", false
	}
	userID, err := h.identity.UserIDForToken(r.Context(), token)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "auth_error", err.Error())
		return "", false
	}
	if userID == "" {
		writeProblem(w, http.StatusUnauthorized, "unauthorized", "invalid session")
		return "", false
	}
	return userID, true
}

// serve runs one stream connection from registration to teardown. Every
// exit path funnels through the same once-guarded teardown, so double
// unregistration cannot happen.
func (h *Handler) serve(
	w http.ResponseWriter,
	r *http.Request,
	connected domain.ConnectedPayload,
	register func(connID string, ch realtime.Channel),
	unregister func(connID string),
	replay func(ctx context.Context, ch realtime.Channel),
) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support flushing")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	connID := uuid.NewString()
	connected.ConnectionID = connID
	ch := newSSEChannel(w, fl)
	register(connID, ch)

	var once sync.Once
	teardown := func() {
		once.Do(func() {
			// Closed before unregistering: a fan-out that already
			// collected this connection must not reach the writer once
			// the handler returns.
			ch.close()
			unregister(connID)
			h.lg.Info("stream_closed", map[string]any{"connection_id": connID, "audience": connected.Audience})
		})
	}
	defer teardown()

	h.lg.Info("stream_opened", map[string]any{"connection_id": connID, "audience": connected.Audience})

	frame, err := realtime.Frame(domain.EventConnected, connected)
	if err != nil || ch.Send(frame) != nil {
		return
	}
	replay(r.Context(), ch)

	keepalive := time.NewTicker(h.cfg.Keepalive)
	defer keepalive.Stop()
	expiry := time.NewTimer(h.cfg.MaxLifetime)
	defer expiry.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-expiry.C:
			// Ask the client to cycle before cutting it off; an
			// abandoned connection that never errors still ends here.
			if f, err := realtime.Frame(domain.EventReconnect, domain.ReconnectPayload{Reason: "connection lifetime exceeded"}); err == nil {
				_ = ch.Send(f)
			}
			return
		case <-keepalive.C:
			if !h.reg.IsActive(connID) {
				return
			}
			if err := ch.Send(realtime.Keepalive); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeProblem emits the shared error shape (simplified RFC7807).
func writeProblem(w http.ResponseWriter, code int, typ, detail string) {
	writeJSON(w, code, map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}
