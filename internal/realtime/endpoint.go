package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/messenger-cosmos-public/bridge/internal/config"
	"github.com/messenger-cosmos-public/bridge/internal/metrics"
	"github.com/messenger-cosmos-public/bridge/internal/presence"
	"github.com/messenger-cosmos-public/bridge/internal/validation"
)

// Endpoint upgrades HTTP requests into hub connections and feeds their
// invocations to the router. Invocations from one connection are handled in
// order on that connection's read goroutine, and its disconnect is reported
// only after the last of them returns.
type Endpoint struct {
	hub       *Hub
	router    *presence.Router
	validator *validation.Validator
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader
	buffer    int
	timings   connTimings
	debug     bool
	log       *zap.Logger
}

type EndpointDeps struct {
	Hub         *Hub
	Router      *presence.Router
	Validator   *validation.Validator
	Metrics     *metrics.Metrics
	Config      config.Config
	CheckOrigin func(*http.Request) bool
	Logger      *zap.Logger
}

func NewEndpoint(deps EndpointDeps) *Endpoint {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Endpoint{
		hub:       deps.Hub,
		router:    deps.Router,
		validator: deps.Validator,
		metrics:   deps.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     deps.CheckOrigin,
		},
		buffer: deps.Config.SendBuffer,
		timings: connTimings{
			writeWait:  deps.Config.WriteWait,
			pongWait:   deps.Config.PongWait,
			pingPeriod: deps.Config.PingPeriod(),
			readLimit:  deps.Config.MaxMessageBytes,
		},
		debug: deps.Config.Debug,
		log:   log.Named("endpoint"),
	}
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		e.log.Warn("websocket upgrade failed", zap.Error(err), zap.String("remote_addr", r.RemoteAddr))
		return
	}

	c := newConn(uuid.NewString(), ws, e.buffer, e.timings, e.log)
	e.hub.add(c)
	if e.metrics != nil {
		e.metrics.Connections.Inc()
	}
	go c.writePump()

	defer func() {
		e.hub.remove(c)
		c.shutdown()
		e.router.Disconnect(c.id)
	}()

	e.router.Connect(c.id)
	c.readPump(func(frame []byte) {
		if !e.handle(c, frame) {
			c.shutdown()
		}
	})
}

// handle runs one frame. It reports false when the connection should be
// dropped because the invocation panicked.
func (e *Endpoint) handle(c *Conn, frame []byte) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			if e.debug {
				panic(rec)
			}
			e.log.Error("invocation panicked", zap.String("connection_id", c.id), zap.Any("panic", rec))
			ok = false
		}
	}()

	var inv Invocation
	if err := json.Unmarshal(frame, &inv); err != nil {
		e.router.Fail(c.id, presence.CodeBadFrame, fmt.Errorf("decode frame: %w", err))
		e.observe("", "bad_frame")
		return true
	}
	outcome := invoke(e.router, e.validator, c.id, inv)
	e.observe(inv.Method, outcome)
	return true
}

func (e *Endpoint) observe(method, outcome string) {
	if e.metrics == nil {
		return
	}
	if outcome == "unknown" || outcome == "bad_frame" {
		method = "_"
	}
	e.metrics.Invocations.WithLabelValues(method, outcome).Inc()
}
