package core

import (
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/metrics"
)

type publishOptions struct {
	exclude string
}

// PublishOption tweaks a single Publish call.
type PublishOption func(*publishOptions)

// ExcludeConn skips the given connection, typically the originator.
func ExcludeConn(connID string) PublishOption {
	return func(o *publishOptions) {
		o.exclude = connID
	}
}

// Broadcaster fans events out to the subscribers of a routing key.
type Broadcaster struct {
	registry *Registry
	log      *zerolog.Logger
}

// NewBroadcaster builds a broadcaster over the registry.
func NewBroadcaster(registry *Registry, logger *zerolog.Logger) *Broadcaster {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broadcaster{registry: registry, log: logger}
}

// Publish delivers ev to every connection subscribed to key at the time of the
// call and returns how many received it. A failed delivery only affects that
// one subscriber.
func (b *Broadcaster) Publish(key RoutingKey, ev *Event, opts ...PublishOption) int {
	var o publishOptions
	for _, opt := range opts {
		opt(&o)
	}

	delivered := 0
	for _, c := range b.registry.SubscribersOf(key) {
		if o.exclude != "" && c.ID == o.exclude {
			continue
		}
		if err := c.deliver(ev); err != nil {
			metrics.DeliveryFailures.WithLabelValues(failureReason(err)).Inc()
			b.log.Warn().
				Err(err).
				Str("conn_id", c.ID).
				Str("key", key.String()).
				Str("event", ev.Kind.String()).
				Msg("dropped event for subscriber")
			continue
		}
		delivered++
	}

	if delivered > 0 {
		metrics.EventsDelivered.WithLabelValues(ev.Kind.String()).Add(float64(delivered))
	}
	return delivered
}

// Direct delivers ev to a single connection, bypassing subscriptions.
func (b *Broadcaster) Direct(c *Client, ev *Event) bool {
	if err := c.deliver(ev); err != nil {
		metrics.DeliveryFailures.WithLabelValues(failureReason(err)).Inc()
		b.log.Debug().Err(err).Str("conn_id", c.ID).Msg("dropped direct event")
		return false
	}
	metrics.EventsDelivered.WithLabelValues(ev.Kind.String()).Inc()
	return true
}

func failureReason(err error) string {
	switch err {
	case errClientClosed:
		return "closed"
	case errQueueFull:
		return "queue_full"
	default:
		return "other"
	}
}
