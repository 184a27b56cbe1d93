package events

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/amamdouheg90/vrobo-recording/internal/observability"
)

// Event is a single progress notification pushed to subscribed clients.
// The same shape covers the initial hello, heartbeats and pipeline steps.
type Event struct {
	Connected bool   `json:"connected,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
	Heartbeat bool   `json:"heartbeat,omitempty"`
	Step      string `json:"step,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Sink delivers events to one subscribed client. The registry serializes
// sends per connection so events arrive in publish order.
type Sink interface {
	Send(Event) error
}

type connection struct {
	id           string
	sink         Sink
	sendMu       sync.Mutex
	lastActivity atomic.Int64 // unix nanos of the last delivered step event
}

func (c *connection) send(ev Event) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.sink.Send(ev)
}

func (c *connection) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// Options configures the registry's background maintenance.
type Options struct {
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
	SweepInterval     time.Duration
}

// Registry is the process-wide set of open progress connections. It offers
// at-most-once, best-effort delivery: events published with no subscribers
// are dropped, and a failing subscriber is evicted without blocking the rest.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]*connection
	opts    Options
	metrics *observability.Metrics
}

func NewRegistry(opts Options, metrics *observability.Metrics) *Registry {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 2 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 15 * time.Second
	}
	return &Registry{
		conns:   make(map[string]*connection),
		opts:    opts,
		metrics: metrics,
	}
}

// Subscribe registers a sink and immediately sends the hello event carrying
// the assigned client id. The sink is not registered if the hello fails.
func (r *Registry) Subscribe(sink Sink) (string, error) {
	c := &connection{id: uuid.NewString(), sink: sink}
	c.touch()

	if err := c.send(Event{Connected: true, ClientID: c.id, Timestamp: time.Now().UnixMilli()}); err != nil {
		return "", err
	}

	r.mu.Lock()
	r.conns[c.id] = c
	open := len(r.conns)
	r.mu.Unlock()

	r.metrics.ConnectionEvents.WithLabelValues("subscribed").Inc()
	r.metrics.OpenConnections.Set(float64(open))
	return c.id, nil
}

// Unsubscribe removes a connection. Safe to call for ids already evicted.
func (r *Registry) Unsubscribe(id string) {
	r.mu.Lock()
	_, ok := r.conns[id]
	delete(r.conns, id)
	open := len(r.conns)
	r.mu.Unlock()

	if ok {
		r.metrics.ConnectionEvents.WithLabelValues("unsubscribed").Inc()
		r.metrics.OpenConnections.Set(float64(open))
	}
}

// Publish delivers a step event to the connection identified by clientID, or
// to every open connection when clientID is empty or unknown. Publishing with
// zero subscribers is a no-op; the event is dropped.
func (r *Registry) Publish(clientID, step, errMsg string) {
	ev := Event{Step: step, Error: errMsg, Timestamp: time.Now().UnixMilli()}

	targets := r.targets(clientID)
	if len(targets) == 0 {
		r.metrics.EventsPublished.WithLabelValues(step, "dropped").Inc()
		return
	}

	for _, c := range targets {
		if err := c.send(ev); err != nil {
			log.Printf("event send to %s failed, evicting: %v", c.id, err)
			r.evict(c.id, "send_failed")
			r.metrics.EventsPublished.WithLabelValues(step, "send_failed").Inc()
			continue
		}
		c.touch()
		r.metrics.EventsPublished.WithLabelValues(step, "delivered").Inc()
	}
}

func (r *Registry) targets(clientID string) []*connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if clientID != "" {
		if c, ok := r.conns[clientID]; ok {
			return []*connection{c}
		}
	}
	out := make([]*connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Start runs heartbeat and sweep maintenance until ctx is cancelled.
func (r *Registry) Start(ctx context.Context) {
	heartbeat := time.NewTicker(r.opts.HeartbeatInterval)
	sweep := time.NewTicker(r.opts.SweepInterval)
	go func() {
		defer heartbeat.Stop()
		defer sweep.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				r.sendHeartbeats()
			case <-sweep.C:
				r.sweepIdle()
			}
		}
	}()
}

// sendHeartbeats pushes a keep-alive to every open connection so dead sockets
// surface as send errors and intermediary proxies do not drop idle streams.
// Heartbeats do not count as activity for the idle sweep.
func (r *Registry) sendHeartbeats() {
	ev := Event{Heartbeat: true, Timestamp: time.Now().UnixMilli()}
	for _, c := range r.targets("") {
		if err := c.send(ev); err != nil {
			log.Printf("heartbeat to %s failed, evicting: %v", c.id, err)
			r.evict(c.id, "heartbeat_failed")
		}
	}
}

// sweepIdle evicts connections with no delivered step event within the idle
// timeout, bounding registry growth from abandoned tabs.
func (r *Registry) sweepIdle() {
	cutoff := time.Now().Add(-r.opts.IdleTimeout).UnixNano()

	r.mu.RLock()
	var idle []string
	for id, c := range r.conns {
		if c.lastActivity.Load() < cutoff {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range idle {
		log.Printf("evicting idle event connection %s", id)
		r.evict(id, "swept")
	}
}

func (r *Registry) evict(id, reason string) {
	r.mu.Lock()
	_, ok := r.conns[id]
	delete(r.conns, id)
	open := len(r.conns)
	r.mu.Unlock()

	if ok {
		r.metrics.ConnectionEvents.WithLabelValues(reason).Inc()
		r.metrics.OpenConnections.Set(float64(open))
	}
}

// OpenCount reports the number of currently open connections.
func (r *Registry) OpenCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
