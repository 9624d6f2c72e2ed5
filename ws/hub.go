package ws

import (
	"context"
	"log/slog"
	"sync"
)

// Hub tracks live gateway connections per bot.
type Hub struct {
	register   chan *Conn
	unregister chan *Conn
	stopped    chan struct{}

	mu    sync.RWMutex
	conns map[string]map[*Conn]bool
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		stopped:    make(chan struct{}),
		conns:      make(map[string]map[*Conn]bool),
	}
}

// Run serves registrations until ctx is done, then closes every
// connection still open.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.conns[c.Bot] == nil {
				h.conns[c.Bot] = make(map[*Conn]bool)
			}
			h.conns[c.Bot][c] = true
			h.mu.Unlock()
			slog.Info("gateway registered", "bot", c.Bot, "conn", c.ID, "self_id", c.SelfID)

		case c := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.conns[c.Bot]; ok && set[c] {
				delete(set, c)
				if len(set) == 0 {
					delete(h.conns, c.Bot)
				}
				c.shutdown()
				slog.Info("gateway unregistered", "bot", c.Bot, "conn", c.ID)
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for bot, set := range h.conns {
				for c := range set {
					c.shutdown()
				}
				delete(h.conns, bot)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds c. It returns false when the hub is no longer running.
func (h *Hub) Register(c *Conn) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		c.shutdown()
		return false
	}
}

func (h *Hub) Unregister(c *Conn) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
		c.shutdown()
	}
}

// Counts returns live connections for every bot that has any.
func (h *Hub) Counts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.conns))
	for bot, set := range h.conns {
		out[bot] = len(set)
	}
	return out
}
