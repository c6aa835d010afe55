package stream

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is one open console page.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan interface{} // frames waiting to be written
	Done chan struct{}    // closed when the client is removed
}

// ConnectionManager tracks the open console websockets.
type ConnectionManager struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*Client),
	}
}

// AddClient registers conn under a fresh id. When hello is non-nil its
// result is queued first, under the same lock a Broadcast must take to
// see the client, so no broadcast frame can overtake it.
func (cm *ConnectionManager) AddClient(conn *websocket.Conn, hello func() interface{}) *Client {
	client := &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Send: make(chan interface{}, 16),
		Done: make(chan struct{}),
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if hello != nil {
		client.Send <- hello()
	}
	cm.clients[client.ID] = client
	return client
}

// RemoveClient unregisters a client; removing twice is a no-op.
func (cm *ConnectionManager) RemoveClient(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if client, ok := cm.clients[id]; ok {
		close(client.Done)
		delete(cm.clients, id)
	}
}

func (cm *ConnectionManager) GetClient(id string) *Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return cm.clients[id]
}

// Count returns the number of connected consoles.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return len(cm.clients)
}

// Broadcast queues message for every client and returns how many took it.
// A client whose queue is full misses the message; the next state frame
// supersedes it anyway.
func (cm *ConnectionManager) Broadcast(message interface{}) int {
	cm.mu.RLock()
	clients := make([]*Client, 0, len(cm.clients))
	for _, c := range cm.clients {
		clients = append(clients, c)
	}
	cm.mu.RUnlock()

	delivered := 0
	for _, client := range clients {
		select {
		case <-client.Done:
		case client.Send <- message:
			delivered++
		default:
		}
	}
	return delivered
}
