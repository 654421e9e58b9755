package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	errClosed    = errors.New("connection closed")
	errQueueFull = errors.New("send queue full")
)

type connTimings struct {
	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
	readLimit  int64
}

// Conn is one websocket client. The read pump runs on the goroutine that
// accepted the upgrade; the write pump drains send on its own goroutine so a
// slow browser never stalls a sender.
type Conn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	timings   connTimings
	log       *zap.Logger
}

func newConn(id string, ws *websocket.Conn, buffer int, timings connTimings, log *zap.Logger) *Conn {
	return &Conn{
		id:      id,
		ws:      ws,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
		timings: timings,
		log:     log.With(zap.String("connection_id", id)),
	}
}

func (c *Conn) ID() string { return c.id }

// enqueue never blocks. A full queue closes the connection.
func (c *Conn) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.shutdown()
		return errQueueFull
	}
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *Conn) readPump(handle func(frame []byte)) {
	c.ws.SetReadLimit(c.timings.readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.timings.pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.timings.pongWait))
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		handle(frame)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.timings.pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.timings.writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("websocket write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.timings.writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
