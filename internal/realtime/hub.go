package realtime

import (
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/messenger-cosmos-public/bridge/internal/metrics"
	"github.com/messenger-cosmos-public/bridge/internal/presence"
)

// Hub is the websocket fan-out behind presence.Transport. It tracks live
// connections and transport-level group membership. Delivery only enqueues
// onto each connection's bounded send queue; a connection whose queue is
// full is closed rather than waited on.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*Conn
	groups  map[string]map[string]*Conn
	log     *zap.Logger
	metrics *metrics.Metrics
}

var _ presence.Transport = (*Hub)(nil)

func NewHub(log *zap.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		conns:   map[string]*Conn{},
		groups:  map[string]map[string]*Conn{},
		log:     log.Named("hub"),
		metrics: m,
	}
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

// remove forgets c and drops it from every transport group.
func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.id] == c {
		delete(h.conns, c.id)
	}
	for groupID, members := range h.groups {
		if members[c.id] == c {
			delete(members, c.id)
			if len(members) == 0 {
				delete(h.groups, groupID)
			}
		}
	}
}

func (h *Hub) Send(connID string, ev presence.Event) bool {
	frame, ok := h.encode(ev)
	if !ok {
		return false
	}
	h.mu.RLock()
	c, exists := h.conns[connID]
	h.mu.RUnlock()
	if !exists {
		return false
	}
	if !h.deliver(c, frame) {
		return false
	}
	h.count(ev, 1)
	return true
}

func (h *Hub) Broadcast(ev presence.Event, except string) {
	frame, ok := h.encode(ev)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for id, c := range h.conns {
		if id != except && h.deliver(c, frame) {
			n++
		}
	}
	h.count(ev, n)
}

func (h *Hub) SendGroup(groupID string, ev presence.Event, except string) {
	frame, ok := h.encode(ev)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for id, c := range h.groups[groupID] {
		if id != except && h.deliver(c, frame) {
			n++
		}
	}
	h.count(ev, n)
}

func (h *Hub) AddToGroup(connID, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	members, ok := h.groups[groupID]
	if !ok {
		members = map[string]*Conn{}
		h.groups[groupID] = members
	}
	members[connID] = c
}

func (h *Hub) RemoveFromGroup(connID, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[groupID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, groupID)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close shuts every connection down; their read pumps then run the normal
// disconnect path.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.shutdown()
	}
}

func (h *Hub) deliver(c *Conn, frame []byte) bool {
	err := c.enqueue(frame)
	if err == nil {
		return true
	}
	if errors.Is(err, errQueueFull) {
		if h.metrics != nil {
			h.metrics.DroppedFrames.Inc()
		}
		h.log.Warn("send queue full, closing connection", zap.String("connection_id", c.id))
	}
	return false
}

func (h *Hub) encode(ev presence.Event) ([]byte, bool) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encode event", zap.String("event", ev.Name), zap.Error(err))
		return nil, false
	}
	return frame, true
}

func (h *Hub) count(ev presence.Event, n int) {
	if h.metrics != nil && n > 0 {
		h.metrics.EventsSent.WithLabelValues(ev.Name).Add(float64(n))
	}
}
