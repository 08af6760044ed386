package gateway

import (
	"sort"
	"sync"
	"time"

	"github.com/harun/mcplink/internal/observability"
)

// idleAfter is how long without a frame before a connection is reported idle.
const idleAfter = 5 * time.Minute

// ClientRegistry tracks open connections. Snapshots are ordered by connect time.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
	}
}

func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	r.clients[client.ID] = client
	count := len(r.clients)
	r.mu.Unlock()

	observability.SetGatewayConnections(count)
}

// Remove drops a connection and reports whether it was present.
func (r *ClientRegistry) Remove(clientID string) bool {
	r.mu.Lock()
	_, ok := r.clients[clientID]
	delete(r.clients, clientID)
	count := len(r.clients)
	r.mu.Unlock()

	if ok {
		observability.SetGatewayConnections(count)
	}
	return ok
}

func (r *ClientRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Snapshot returns the open connections, oldest first.
func (r *ClientRegistry) Snapshot() []*Client {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	r.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool {
		if clients[i].ConnectedAt.Equal(clients[j].ConnectedAt) {
			return clients[i].ID < clients[j].ID
		}
		return clients[i].ConnectedAt.Before(clients[j].ConnectedAt)
	})
	return clients
}

// Describe reports every connection, oldest first.
func (r *ClientRegistry) Describe(now time.Time) []ClientInfo {
	clients := r.Snapshot()

	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]ClientInfo, 0, len(clients))
	for _, client := range clients {
		infos = append(infos, ClientInfo{
			ID:           client.ID,
			ConnectedAt:  client.ConnectedAt,
			LastActivity: client.LastActivity,
			IPAddress:    client.IPAddress,
			Idle:         now.Sub(client.LastActivity) > idleAfter,
		})
	}
	return infos
}

// Touch records inbound activity on a connection.
func (r *ClientRegistry) Touch(clientID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[clientID]; ok {
		client.LastActivity = at
	}
}
