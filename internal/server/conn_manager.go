package server

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsConn is one upgraded WebSocket connection. Replies for a connection are
// written one message at a time.
type wsConn struct {
	ID     string
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

// WriteLine sends line as a single text message.
func (c *wsConn) WriteLine(line []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, line)
}

// ConnManager tracks open WebSocket connections so shutdown can cancel
// their in-flight work.
type ConnManager struct {
	mu    sync.Mutex
	conns map[string]*wsConn
}

// NewConnManager creates a new ConnManager.
func NewConnManager() *ConnManager {
	return &ConnManager{conns: make(map[string]*wsConn)}
}

// Add registers conn under a fresh id. Its context is cancelled by Remove
// or CloseAll.
func (cm *ConnManager) Add(parent context.Context, conn *websocket.Conn) *wsConn {
	ctx, cancel := context.WithCancel(parent)
	c := &wsConn{
		ID:     uuid.NewString(),
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}

	cm.mu.Lock()
	cm.conns[c.ID] = c
	cm.mu.Unlock()
	return c
}

// Remove cancels and forgets a connection.
func (cm *ConnManager) Remove(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if c, ok := cm.conns[id]; ok {
		c.cancel()
		delete(cm.conns, id)
	}
}

// Count reports the number of open connections.
func (cm *ConnManager) Count() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.conns)
}

// CloseAll cancels and closes every connection.
func (cm *ConnManager) CloseAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for id, c := range cm.conns {
		c.cancel()
		if c.conn != nil {
			c.conn.Close()
		}
		delete(cm.conns, id)
	}
}
