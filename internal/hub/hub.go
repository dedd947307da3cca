// Package hub implements the topic router. It keeps the subscriber registry
// for every connected client and fans frames out to topics, preserving
// publish order per subscriber.
package hub

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/splitpot/api/internal/metrics"
	"github.com/splitpot/api/internal/wire"
)

// Subscriber is the hub-side handle for one connected client. Broadcasts
// and private replies arrive interleaved on Frames in publish order; the
// transport's write pump drains it.
type Subscriber struct {
	ID     string
	Frames chan *wire.Frame
	Done   chan struct{}
}

// Hub routes frames between connections and topics.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Subscriber
	topics map[string]map[string]struct{} // topic -> connID set

	buffer    int
	heartbeat *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// New creates a hub. buffer sizes each subscriber's frame channel;
// heartbeatInterval <= 0 disables heartbeats.
func New(buffer int, heartbeatInterval time.Duration, logger *slog.Logger) *Hub {
	h := &Hub{
		conns:  make(map[string]*Subscriber),
		topics: make(map[string]map[string]struct{}),
		buffer: buffer,
		done:   make(chan struct{}),
		logger: logger,
	}
	if heartbeatInterval > 0 {
		h.heartbeat = time.NewTicker(heartbeatInterval)
		go h.sendHeartbeats()
	}
	return h
}

// Register adds a connection and returns its subscriber handle.
func (h *Hub) Register(connID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:     connID,
		Frames: make(chan *wire.Frame, h.buffer),
		Done:   make(chan struct{}),
	}
	h.conns[connID] = sub
	metrics.ConnectedClients.Inc()
	return sub
}

// Deregister removes a connection and every topic membership it holds.
func (h *Hub) Deregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.conns[connID]
	if !ok {
		return
	}
	for topic, members := range h.topics {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
	close(sub.Done)
	close(sub.Frames)
	delete(h.conns, connID)
	metrics.ConnectedClients.Dec()
}

// Subscribe adds the connection to a topic. Subscribing twice to the same
// topic is a no-op. Returns false when the connection is unknown.
func (h *Hub) Subscribe(connID, topic string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return false
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]struct{})
	}
	h.topics[topic][connID] = struct{}{}
	return true
}

// Unsubscribe removes the connection from a topic. Unsubscribing from a
// topic the connection never joined is a no-op.
func (h *Hub) Unsubscribe(connID, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.topics, topic)
	}
}

// Publish encodes the payload once and delivers a MESSAGE frame to every
// subscriber of the topic. Subscribers whose buffer is full are skipped.
func (h *Hub) Publish(topic string, payload interface{}) error {
	frame, err := wire.NewMessage(topic, payload)
	if err != nil {
		return fmt.Errorf("encode frame for %s: %w", topic, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	scope := "event"
	if wire.IsAdminDestination(topic) {
		scope = "admin"
	}
	metrics.BroadcastsTotal.WithLabelValues(scope).Inc()

	for connID := range h.topics[topic] {
		sub, ok := h.conns[connID]
		if !ok {
			continue
		}
		select {
		case sub.Frames <- frame:
		default:
			metrics.DroppedFramesTotal.Inc()
			h.logger.Warn("dropped frame, subscriber buffer full",
				slog.String("conn_id", connID),
				slog.String("topic", topic))
		}
	}
	return nil
}

// Reply delivers a MESSAGE frame on the connection's private reply queue.
// Replies to unknown connections are dropped.
func (h *Hub) Reply(connID string, payload interface{}) error {
	frame, err := wire.NewMessage(wire.ReplyQueue, payload)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sub, ok := h.conns[connID]
	if !ok {
		return nil
	}
	select {
	case sub.Frames <- frame:
	default:
		metrics.DroppedFramesTotal.Inc()
		h.logger.Warn("dropped reply, subscriber buffer full",
			slog.String("conn_id", connID))
	}
	return nil
}

// Send delivers a prebuilt frame to one connection, bypassing topic
// routing. The transport uses it for connection-scoped ERROR frames. Going
// through the hub keeps the send under the registry lock, so it cannot race
// a Deregister or Close that closes the channel.
func (h *Hub) Send(connID string, frame *wire.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sub, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case sub.Frames <- frame:
	default:
		metrics.DroppedFramesTotal.Inc()
		h.logger.Warn("dropped frame, subscriber buffer full",
			slog.String("conn_id", connID))
	}
}

// SubscriberCount returns the number of connections subscribed to a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// TopicsOf returns the topics the connection is subscribed to.
func (h *Hub) TopicsOf(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var topics []string
	for topic, members := range h.topics {
		if _, ok := members[connID]; ok {
			topics = append(topics, topic)
		}
	}
	return topics
}

// HasAdminSubscription reports whether the connection holds at least one
// admin-scoped subscription.
func (h *Hub) HasAdminSubscription(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for topic, members := range h.topics {
		if !strings.HasPrefix(topic, "/topic/admin/") {
			continue
		}
		if _, ok := members[connID]; ok {
			return true
		}
	}
	return false
}

func (h *Hub) sendHeartbeats() {
	for {
		select {
		case <-h.heartbeat.C:
			frame := &wire.Frame{Type: wire.FrameHeartbeat}
			h.mu.RLock()
			for _, sub := range h.conns {
				select {
				case sub.Frames <- frame:
				default:
				}
			}
			h.mu.RUnlock()
		case <-h.done:
			return
		}
	}
}

// Close stops the heartbeat loop and disconnects every subscriber.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		if h.heartbeat != nil {
			h.heartbeat.Stop()
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		for connID, sub := range h.conns {
			close(sub.Done)
			close(sub.Frames)
			delete(h.conns, connID)
			metrics.ConnectedClients.Dec()
		}
		h.topics = make(map[string]map[string]struct{})
	})
}
