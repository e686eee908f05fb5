package core

import (
	"sync"

	"github.com/vovakirdan/wirechat-relay/internal/metrics"
)

// ConnState is the lifecycle stage of a connection.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected
	StateSubscribed
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// topic groups clients subscribed to the same routing key.
type topic struct {
	mu      sync.RWMutex
	members map[string]*Client
}

func newTopic() *topic {
	return &topic{members: make(map[string]*Client)}
}

func (t *topic) add(c *Client) {
	t.mu.Lock()
	t.members[c.ID] = c
	t.mu.Unlock()
}

// remove deletes a client and reports whether the topic is now empty.
func (t *topic) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.members, id)
	return len(t.members) == 0
}

func (t *topic) snapshot() []*Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Client, 0, len(t.members))
	for _, c := range t.members {
		out = append(out, c)
	}
	return out
}

// Registry tracks live connections and their subscriptions.
//
// mu guards the connection and topic maps; each topic guards its own member set,
// so broadcasts on different keys only share a brief read lock.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	subs    map[string]map[RoutingKey]struct{}
	topics  map[RoutingKey]*topic
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		subs:    make(map[string]map[RoutingKey]struct{}),
		topics:  make(map[RoutingKey]*topic),
	}
}

// Register adds a connection with no subscriptions.
func (r *Registry) Register(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[c.ID]; exists {
		return ErrAlreadyRegistered
	}
	r.clients[c.ID] = c
	r.subs[c.ID] = make(map[RoutingKey]struct{})
	metrics.ConnectionsActive.Inc()
	return nil
}

// Subscribe adds key to the connection's subscriptions.
// Returns true if newly added; subscribing twice is a no-op.
func (r *Registry) Subscribe(connID string, key RoutingKey) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connID]
	if !ok {
		return false, ErrNotRegistered
	}
	keys := r.subs[connID]
	if _, exists := keys[key]; exists {
		return false, nil
	}
	keys[key] = struct{}{}

	t, ok := r.topics[key]
	if !ok {
		t = newTopic()
		r.topics[key] = t
	}
	t.add(c)
	return true, nil
}

// Unsubscribe removes key from the connection's subscriptions.
// Returns true if the connection was subscribed.
func (r *Registry) Unsubscribe(connID string, key RoutingKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys, ok := r.subs[connID]
	if !ok {
		return false
	}
	if _, exists := keys[key]; !exists {
		return false
	}
	delete(keys, key)
	r.dropFromTopic(connID, key)
	return true
}

// SubscribersOf returns a snapshot of the connections subscribed to key.
func (r *Registry) SubscribersOf(key RoutingKey) []*Client {
	r.mu.RLock()
	t, ok := r.topics[key]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return t.snapshot()
}

// Deregister removes the connection and every subscription it holds, then
// closes its outbound queue. Unknown ids are ignored.
func (r *Registry) Deregister(connID string) *Client {
	r.mu.Lock()
	c, ok := r.clients[connID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	for key := range r.subs[connID] {
		r.dropFromTopic(connID, key)
	}
	delete(r.subs, connID)
	delete(r.clients, connID)
	r.mu.Unlock()

	metrics.ConnectionsActive.Dec()
	c.close()
	return c
}

// dropFromTopic must be called with r.mu held.
func (r *Registry) dropFromTopic(connID string, key RoutingKey) {
	t, ok := r.topics[key]
	if !ok {
		return
	}
	if t.remove(connID) {
		delete(r.topics, key)
	}
}

// Lookup returns the registered client with the given id.
func (r *Registry) Lookup(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Subscriptions returns the keys the connection is subscribed to.
func (r *Registry) Subscriptions(connID string) []RoutingKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := r.subs[connID]
	out := make([]RoutingKey, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	return out
}

// State reports where the connection is in its lifecycle.
func (r *Registry) State(connID string) ConnState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys, ok := r.subs[connID]
	switch {
	case !ok:
		return StateDisconnected
	case len(keys) == 0:
		return StateConnected
	default:
		return StateSubscribed
	}
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// TopicCount returns the number of routing keys with at least one subscriber.
func (r *Registry) TopicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}
