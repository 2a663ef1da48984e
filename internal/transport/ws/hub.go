package ws

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrConnectionClosed = errors.New("connection closed")
)

// Connection is the outbound side of one websocket. The write pump is the
// only goroutine writing to the socket; everyone else goes through Send.
type Connection struct {
	UserID    string
	SessionID string

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

func newConnection(userID string, buffer int) *Connection {
	if buffer < 1 {
		buffer = 1
	}
	return &Connection{
		UserID: userID,
		send:   make(chan []byte, buffer),
	}
}

// Send enqueues a frame without blocking. A full buffer drops the frame.
func (c *Connection) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the write pump after it drains what is queued.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub keeps track of open connections so they can be closed on shutdown.
type Hub struct {
	mu      sync.Mutex
	conns   map[*Connection]struct{}
	closing bool
	idle    chan struct{} // closed when the last connection is removed
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		conns: make(map[*Connection]struct{}),
	}
}

// add registers a connection. It returns false once CloseAll was called.
func (h *Hub) add(c *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
	if len(h.conns) == 0 && h.idle != nil {
		close(h.idle)
		h.idle = nil
	}
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll sends a going-away close frame to every connection and refuses
// new ones. Their read pumps then fail and run the normal disconnect path.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closing = true
	conns := make([]*Connection, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// Wait blocks until every connection finished its disconnect path or ctx
// is done.
func (h *Hub) Wait(ctx context.Context) error {
	for {
		h.mu.Lock()
		if len(h.conns) == 0 {
			h.mu.Unlock()
			return nil
		}
		if h.idle == nil {
			h.idle = make(chan struct{})
		}
		idle := h.idle
		h.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
