package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// LiveConn is an open websocket client.
type LiveConn struct {
	ID   string
	conn *websocket.Conn
	wmu  sync.Mutex // serializes writes; output chunks arrive from two goroutines
}

// WriteJSON sends v as a single text frame.
func (lc *LiveConn) WriteJSON(v any) error {
	lc.wmu.Lock()
	defer lc.wmu.Unlock()
	return lc.conn.WriteJSON(v)
}

// ConnManager tracks open websocket clients so they can be closed on
// shutdown.
type ConnManager struct {
	mu    sync.RWMutex
	conns map[string]*LiveConn
}

func NewConnManager() *ConnManager {
	return &ConnManager{
		conns: make(map[string]*LiveConn),
	}
}

// Add registers a connection and returns its handle.
func (cm *ConnManager) Add(conn *websocket.Conn) *LiveConn {
	lc := &LiveConn{ID: uuid.New().String(), conn: conn}
	cm.mu.Lock()
	cm.conns[lc.ID] = lc
	cm.mu.Unlock()
	return lc
}

func (cm *ConnManager) Len() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns)
}

// Remove forgets a connection. It does not close it.
func (cm *ConnManager) Remove(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.conns, id)
}

// CloseAll sends a going-away frame to every client and closes it.
func (cm *ConnManager) CloseAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for id, lc := range cm.conns {
		lc.wmu.Lock()
		lc.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		lc.wmu.Unlock()
		lc.conn.Close()
		delete(cm.conns, id)
	}
}
