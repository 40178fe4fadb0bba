package hub

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait bounds a single event or ping write.
	writeWait = 10 * time.Second

	// pongWait is how long a subscriber may stay silent before it is dropped.
	pongWait = 60 * time.Second

	// pingPeriod keeps idle subscribers alive between scans; it must be
	// shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound frames. Event subscribers only answer pings.
	maxMessageSize = 4 * 1024

	// sendBuffer is how many events a subscriber may lag before the hub drops it.
	sendBuffer = 256
)

// Client is one /ws/events subscriber
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient registers a subscriber with the hub. If the hub has stopped,
// the client's queue is closed at once and Run only sends a close frame.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		close(client.send)
	}
	return client
}

// Handler returns a fiber handler that upgrades and subscribes the connection.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		NewClient(h, conn).Run()
	})
}

// Run serves the subscriber until it disconnects or is dropped.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump only watches the connection: pongs extend the deadline and any
// read error unsubscribes the client.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the connection's only writer. It forwards queued events as
// text frames and pings between them.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Dropped by the hub, or the hub stopped.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, event.Data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
