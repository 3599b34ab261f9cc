package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"shopfloor/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Hub broadcasts engine events to connected dashboard clients. It
// implements scheduler.Notifier; slow clients drop messages rather than
// block the engine.
type Hub struct {
	mu    sync.Mutex
	conns map[*wsConnection]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*wsConnection]bool)}
}

// Notify broadcasts an engine event to all connected clients.
func (h *Hub) Notify(ev scheduler.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		select {
		case conn.send <- data:
		default:
			log.Println("WebSocket buffer full, dropping event")
		}
	}
}

// HandleWebSocket upgrades the connection and registers the client for the
// event feed.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	wsConn := &wsConnection{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.mu.Lock()
	h.conns[wsConn] = true
	h.mu.Unlock()

	// Start the read and write pumps
	go wsConn.writePump()
	go wsConn.readPump()
}

func (h *Hub) unregister(c *wsConnection) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// wsConnection maintains one WebSocket connection with a client
type wsConnection struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// readPump drains client messages; the feed is one-way, so input is
// discarded and the pump only watches for the connection closing.
func (c *wsConnection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump pumps events from the hub to the WebSocket connection
func (c *wsConnection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The channel was closed
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
