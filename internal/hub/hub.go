package hub

import (
	"context"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-messenger/internal/config"
	"github.com/weiawesome/wes-io-messenger/internal/metrics"
	"github.com/weiawesome/wes-io-messenger/pkg/log"
)

// Entry is one registered user in a snapshot.
type Entry struct {
	UserID string
	Client *Client
}

// Hub tracks open connections and the single routable connection per user.
type Hub struct {
	clients map[string]*Client // clientID -> client, authenticated or not
	users   map[string]*Client // userID -> routable client
	mu      sync.RWMutex
	config  config.WebSocketConfig

	stopOnce sync.Once
	done     chan struct{}
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		users:   make(map[string]*Client),
		config:  cfg,
		done:    make(chan struct{}),
	}
}

// Register tracks a freshly upgraded connection.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	n := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectionsActive.Set(float64(n))
	l := log.L()
	l.Debug().Str(log.FieldClientID, client.ID).Msg("client registered")
}

// Unregister forgets a connection. It does not touch the user routing table;
// that is Remove's job.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if cur, ok := h.clients[client.ID]; ok && cur == client {
		delete(h.clients, client.ID)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectionsActive.Set(float64(n))
	l := log.L()
	l.Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")
}

// Put makes client the routable connection for userID, replacing any
// previous one. The replaced client stays open but is no longer routable.
func (h *Hub) Put(userID string, client *Client) (replaced *Client) {
	h.mu.Lock()
	prev := h.users[userID]
	h.users[userID] = client
	n := len(h.users)
	h.mu.Unlock()

	metrics.UsersOnline.Set(float64(n))
	if prev != nil && prev != client {
		return prev
	}
	return nil
}

// Remove deletes userID's entry only if it still points at client, so a
// stale connection closing late cannot evict a newer one. It reports whether
// an entry was removed.
func (h *Hub) Remove(userID string, client *Client) bool {
	h.mu.Lock()
	cur, ok := h.users[userID]
	removed := ok && cur == client
	if removed {
		delete(h.users, userID)
	}
	n := len(h.users)
	h.mu.Unlock()

	if removed {
		metrics.UsersOnline.Set(float64(n))
	}
	return removed
}

// Get returns the routable client for userID.
func (h *Hub) Get(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.users[userID]
	return c, ok
}

// IsOnline reports whether userID has a routable connection.
func (h *Hub) IsOnline(userID string) bool {
	_, ok := h.Get(userID)
	return ok
}

// Snapshot copies the routing table at one point in time.
func (h *Hub) Snapshot() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Entry, 0, len(h.users))
	for userID, c := range h.users {
		out = append(out, Entry{UserID: userID, Client: c})
	}
	return out
}

// OnlineUserIDs returns the ids of every routable user.
func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	return ids
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run closes connections idle for longer than the configured timeout until
// ctx is done or Stop is called.
func (h *Hub) Run(ctx context.Context) {
	if h.config.IdleTimeout <= 0 {
		return
	}
	interval := h.config.SweepInterval
	if interval <= 0 {
		interval = h.config.IdleTimeout / 2
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case now := <-ticker.C:
			h.sweepIdle(now)
		}
	}
}

// sweepIdle closes every connection idle past the timeout and returns how
// many it closed.
func (h *Hub) sweepIdle(now time.Time) int {
	h.mu.RLock()
	var idle []*Client
	for _, c := range h.clients {
		if c.Session.IdleSince(now) > h.config.IdleTimeout {
			idle = append(idle, c)
		}
	}
	h.mu.RUnlock()

	l := log.L()
	for _, c := range idle {
		l.Info().Str(log.FieldClientID, c.ID).Str(log.FieldUserID, c.Session.GetUserID()).Msg("closing idle connection")
		metrics.ClientsDropped.WithLabelValues("idle").Inc()
		c.Close()
	}
	return len(idle)
}

// Stop ends Run and closes every open connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.RLock()
		clients := make([]*Client, 0, len(h.clients))
		for _, c := range h.clients {
			clients = append(clients, c)
		}
		h.mu.RUnlock()

		for _, c := range clients {
			metrics.ClientsDropped.WithLabelValues("shutdown").Inc()
			c.Close()
		}
	})
}
