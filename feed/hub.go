// Package feed pushes room, task and report changes to connected front-desk screens.
package feed

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/roomturn/utils"
)

// Event types
const (
	EventRoomStatus   = "room_status"
	EventTaskUpdate   = "task_update"
	EventReportUpdate = "report_update"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
	At    time.Time   `json:"at"`
}

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
)

// client owns one connection. Only writePump writes to conn.
type client struct {
	remote string
	send   chan []byte
}

// Hub holds the connected feed clients keyed by connection.
type Hub struct {
	clients map[*websocket.Conn]*client
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

// Register adds the connection and starts its writer.
func (h *Hub) Register(conn *websocket.Conn, remote string) {
	c := &client{remote: remote, send: make(chan []byte, sendBuffer)}
	h.mutex.Lock()
	h.clients[conn] = c
	h.mutex.Unlock()
	go h.writePump(conn, c)
}

// Unregister removes the connection. Its writer closes the socket once the queue drains.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.remove(conn)
}

// remove must be called with the mutex held.
func (h *Hub) remove(conn *websocket.Conn) {
	if c, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(c.send)
	}
}

func (h *Hub) writePump(conn *websocket.Conn, c *client) {
	defer conn.Close()
	for payload := range c.send {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			utils.ErrorLogger.WithField("remote", c.remote).Warnf("Dropping feed client: %v", err)
			h.Unregister(conn)
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// RoomStatus announces a room status write.
func (h *Hub) RoomStatus(roomID uint, status string) {
	h.Publish(EventRoomStatus, map[string]interface{}{
		"room_id": roomID,
		"status":  status,
	})
}

// TaskUpdate announces a cleaning task transition.
func (h *Hub) TaskUpdate(taskID, roomID uint, status string) {
	h.Publish(EventTaskUpdate, map[string]interface{}{
		"task_id": taskID,
		"room_id": roomID,
		"status":  status,
	})
}

// ReportUpdate announces a maintenance report transition.
func (h *Hub) ReportUpdate(reportID, roomID uint, status string) {
	h.Publish(EventReportUpdate, map[string]interface{}{
		"report_id": reportID,
		"room_id":   roomID,
		"status":    status,
	})
}

// Publish queues the event for every client without waiting on the network. A client whose
// queue is full is dropped. A nil hub is a no-op so callers without a feed need no checks.
func (h *Hub) Publish(event string, data interface{}) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(Message{Event: event, Data: data, At: time.Now().UTC()})
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling feed message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			utils.ErrorLogger.WithFields(logrus.Fields{"remote": c.remote, "event": event}).
				Warn("Dropping slow feed client")
			h.remove(conn)
		}
	}
}
