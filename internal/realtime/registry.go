package realtime

import (
	"sync"
	"time"

	"restaurant-live/internal/common/logger"
)

// Channel is a one-directional push pipe to a single client. The HTTP
// layer implements it over a flushed response writer; tests use an
// in-memory recorder.
type Channel interface {
	Send(frame []byte) error
}

// Audience labels for metrics and the connected handshake.
const (
	AudienceAdmin = "admin"
	AudienceUser  = "user"
	AudienceGuest = "guest"
)

type connStatus string

const (
	statusActive connStatus = "active"
	statusError  connStatus = "error"
	statusClosed connStatus = "closed"
)

type connection struct {
	id            string
	audience      string // AudienceAdmin | AudienceUser | AudienceGuest
	key           string // user id or order id; empty for admin
	ch            Channel
	establishedAt time.Time
	status        connStatus
}

// Registry owns every live stream connection in the process. It is
// constructed once and injected into the dispatcher and the HTTP
// handlers; it deliberately does not scale past one process (a
// multi-instance deployment needs an external pub/sub backbone).
type Registry struct {
	mu     sync.Mutex
	lg     *logger.Logger
	admins map[string]*connection
	users  map[string]map[string]*connection // userID -> connID -> conn
	guests map[string]map[string]*connection // orderID -> connID -> conn
	index  map[string]*connection            // connID -> conn
}

func NewRegistry(lg *logger.Logger) *Registry {
	return &Registry{
		lg:     lg,
		admins: make(map[string]*connection),
		users:  make(map[string]map[string]*connection),
		guests: make(map[string]map[string]*connection),
		index:  make(map[string]*connection),
	}
}

// RegisterAdmin adds or replaces an admin connection. Re-registering the
// same id replaces the entry, latest channel wins.
func (r *Registry) RegisterAdmin(connID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.index[connID]; ok {
		r.dropLocked(old)
	}
	c := &connection{id: connID, audience: AudienceAdmin, ch: ch, establishedAt: time.Now().UTC(), status: statusActive}
	r.admins[connID] = c
	r.index[connID] = c
	ConnectionsActive.WithLabelValues(AudienceAdmin).Inc()
	r.lg.Debug("admin_connection_registered", map[string]any{"connection_id": connID, "admins": len(r.admins)})
}

// RegisterUser inserts a connection into the user's group, creating the
// group on first use. A user may hold several connections at once.
func (r *Registry) RegisterUser(userID, connID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.index[connID]; ok {
		r.dropLocked(old)
	}
	group, ok := r.users[userID]
	if !ok {
		group = make(map[string]*connection)
		r.users[userID] = group
	}
	c := &connection{id: connID, audience: AudienceUser, key: userID, ch: ch, establishedAt: time.Now().UTC(), status: statusActive}
	group[connID] = c
	r.index[connID] = c
	ConnectionsActive.WithLabelValues(AudienceUser).Inc()
	r.lg.Debug("user_connection_registered", map[string]any{"connection_id": connID, "user_id": userID, "tabs": len(group)})
}

// RegisterGuest is RegisterUser keyed by order id instead of identity.
func (r *Registry) RegisterGuest(orderID, connID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.index[connID]; ok {
		r.dropLocked(old)
	}
	group, ok := r.guests[orderID]
	if !ok {
		group = make(map[string]*connection)
		r.guests[orderID] = group
	}
	c := &connection{id: connID, audience: AudienceGuest, key: orderID, ch: ch, establishedAt: time.Now().UTC(), status: statusActive}
	group[connID] = c
	r.index[connID] = c
	ConnectionsActive.WithLabelValues(AudienceGuest).Inc()
	r.lg.Debug("guest_connection_registered", map[string]any{"connection_id": connID, "order_id": orderID})
}

// UnregisterAdmin removes an admin connection. Unknown ids are a no-op.
func (r *Registry) UnregisterAdmin(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.admins[connID]
	if !ok {
		r.lg.Debug("unregister_unknown_connection", map[string]any{"connection_id": connID, "audience": AudienceAdmin})
		return
	}
	r.dropLocked(c)
}

// UnregisterUser removes one of the user's connections; the group is
// deleted when its last connection goes.
func (r *Registry) UnregisterUser(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.users[userID]
	if !ok {
		r.lg.Debug("unregister_unknown_connection", map[string]any{"connection_id": connID, "user_id": userID})
		return
	}
	c, ok := group[connID]
	if !ok {
		r.lg.Debug("unregister_unknown_connection", map[string]any{"connection_id": connID, "user_id": userID})
		return
	}
	r.dropLocked(c)
}

// UnregisterGuest removes one of an order's tracking connections.
func (r *Registry) UnregisterGuest(orderID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.guests[orderID]
	if !ok {
		r.lg.Debug("unregister_unknown_connection", map[string]any{"connection_id": connID, "order_id": orderID})
		return
	}
	c, ok := group[connID]
	if !ok {
		r.lg.Debug("unregister_unknown_connection", map[string]any{"connection_id": connID, "order_id": orderID})
		return
	}
	r.dropLocked(c)
}

// IsActive reports whether the connection is known and may receive
// pushes. Keepalive senders gate on this so dead transports are never
// written to.
func (r *Registry) IsActive(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.index[connID]
	return ok && c.status == statusActive
}

// dropLocked removes a connection from its group and the index. The
// caller holds r.mu.
func (r *Registry) dropLocked(c *connection) {
	if _, ok := r.index[c.id]; !ok {
		return
	}
	if c.status == statusActive {
		c.status = statusClosed
	}
	delete(r.index, c.id)
	switch c.audience {
	case AudienceAdmin:
		delete(r.admins, c.id)
	case AudienceUser:
		if group, ok := r.users[c.key]; ok {
			delete(group, c.id)
			if len(group) == 0 {
				delete(r.users, c.key)
			}
		}
	case AudienceGuest:
		if group, ok := r.guests[c.key]; ok {
			delete(group, c.id)
			if len(group) == 0 {
				delete(r.guests, c.key)
			}
		}
	}
	ConnectionsActive.WithLabelValues(c.audience).Dec()
	r.lg.Debug("connection_dropped", map[string]any{"connection_id": c.id, "audience": c.audience})
}

// collectAdmins copies the active admin connections so callers can send
// without holding the registry lock.
func (r *Registry) collectAdmins() []*connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*connection, 0, len(r.admins))
	for _, c := range r.admins {
		if c.status == statusActive {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) collectUser(userID string) []*connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	group := r.users[userID]
	out := make([]*connection, 0, len(group))
	for _, c := range group {
		if c.status == statusActive {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) collectGuest(orderID string) []*connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	group := r.guests[orderID]
	out := make([]*connection, 0, len(group))
	for _, c := range group {
		if c.status == statusActive {
			out = append(out, c)
		}
	}
	return out
}

// collectAll copies every active connection across all audiences.
func (r *Registry) collectAll() []*connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*connection, 0, len(r.index))
	for _, c := range r.index {
		if c.status == statusActive {
			out = append(out, c)
		}
	}
	return out
}

// markError flags a connection whose channel failed; it stops receiving
// pushes immediately and is pruned after the sweep.
func (r *Registry) markError(c *connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.status == statusActive {
		c.status = statusError
	}
}

// prune removes connections previously marked as failed. Removal happens
// after iteration completes, never during a sweep.
func (r *Registry) prune(failed []*connection) {
	if len(failed) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range failed {
		r.dropLocked(c)
	}
}
