package livefeed

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	// The bridge emits on every meter chunk, silence this long means a dead feed.
	readTimeout  = 30 * time.Second
	pingInterval = 10 * time.Second
)

// wsConn is the part of *websocket.Conn the hub writes through.
type wsConn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// client serializes writes to one websocket connection.
type client struct {
	mu   sync.Mutex
	conn wsConn
}

func (c *client) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(msg)
}

// writeLocked must be called with mu held.
func (c *client) writeLocked(msg []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}
