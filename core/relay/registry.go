package relay

import (
	"log/slog"
	"sync"

	"github.com/dmitrymomot/chatrelay/core/logger"
)

// Registry tracks the set of connections currently eligible to receive
// broadcasts. It holds non-owning references: each client owns its own
// teardown and the registry only records membership.
//
// Safe for concurrent use by every connection's lifecycle goroutines plus
// the fan-out loop.
type Registry struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Registry{
		clients: make(map[*Client]struct{}),
		log:     log,
	}
}

// Add registers a client for broadcast delivery. Adding an already
// registered client is a no-op.
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = struct{}{}
}

// Remove deregisters a client. Removing an absent client is a no-op, so
// concurrent teardown paths may race on it safely.
func (r *Registry) Remove(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
}

// Len reports the current number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast delivers one payload to every registered client. Membership is
// snapshotted first, so clients joining mid-broadcast catch the next round.
// A client that cannot accept the payload (send buffer full, already
// draining) is torn down and logged; its failure never reaches the caller
// or the remaining clients.
func (r *Registry) Broadcast(payload []byte) {
	r.mu.RLock()
	snapshot := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		if !c.enqueue(payload) {
			r.log.Warn("dropping unresponsive client",
				logger.Component("relay.registry"),
				logger.ID("client_id", c.ID()))
			c.abandon()
		}
	}
	broadcastsTotal.Inc()
}

// CloseAll initiates shutdown of every registered client with the given
// close code and reason, then blocks until each one has fully closed.
func (r *Registry) CloseAll(code int, reason string) {
	r.mu.RLock()
	snapshot := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	r.log.Info("closing all client connections",
		logger.Component("relay.registry"),
		logger.Count("clients", len(snapshot)))

	var wg sync.WaitGroup
	for _, c := range snapshot {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			c.shutdown(code, reason)
			c.wait()
		}(c)
	}
	wg.Wait()
}
