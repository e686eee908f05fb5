package core

import (
	"errors"
	"sync"
)

var (
	errClientClosed = errors.New("client closed")
	errQueueFull    = errors.New("client queue full")
)

// DefaultClientBuffer is the outbound queue length used when none is configured.
const DefaultClientBuffer = 64

// Client is one live connection as seen by the core layer.
type Client struct {
	ID       string
	Identity Identity
	Events   chan *Event

	mu     sync.Mutex
	closed bool
}

// NewClient constructs a client with an initialized outbound queue.
func NewClient(id string, identity Identity, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Client{
		ID:       id,
		Identity: identity,
		Events:   make(chan *Event, buffer),
	}
}

// Name returns the username shown to other clients.
func (c *Client) Name() string {
	return c.Identity.Username
}

// deliver enqueues an event without blocking. A closed client or a full queue
// drops the event for this client only.
func (c *Client) deliver(ev *Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClientClosed
	}
	select {
	case c.Events <- ev:
		return nil
	default:
		return errQueueFull
	}
}

// close ends the outbound stream. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Events)
}
