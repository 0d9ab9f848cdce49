package signaling

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendQueueSize  = 32
)

var (
	ErrPeerClosed = errors.New("peer closed")
	ErrQueueFull  = errors.New("peer send queue full")
)

// wsConn is the subset of *websocket.Conn a Conn uses.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Conn is a websocket-backed Peer. Outbound frames go through a bounded
// queue drained by writePump; Send never blocks the caller.
type Conn struct {
	id   string
	role Role
	ws   wsConn
	log  *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewConn(id string, ws wsConn, l *slog.Logger) *Conn {
	return &Conn{
		id:   id,
		role: RoleOf(id),
		ws:   ws,
		log:  l.With("client_id", id),
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Role() Role { return c.role }

func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrPeerClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrPeerClosed
	default:
		return ErrQueueFull
	}
}

// Close stops the write pump and closes the socket. Safe to call repeatedly.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Reject sends a close frame with reason and closes the socket. Used before
// the peer has been registered.
func (c *Conn) Reject(code int, reason string) {
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	c.Close()
}

// Serve runs the read loop until the socket fails, dispatching each frame to
// relay. The write pump runs alongside it. On return the disconnect cascade
// has been applied.
func (c *Conn) Serve(relay *Relay) {
	go c.writePump()
	defer func() {
		relay.Disconnect(c)
		c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read failed", "err", err)
			}
			return
		}
		relay.Handle(c, Decode(raw))
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("write failed", "err", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
