package server

import (
	"sync"
	"sync/atomic"
	"time"

	"trade-gateway/src/session"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024 // 1MB for larger JSON messages
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

// Client is one websocket connection; it feeds inbound frames to its
// session and drains the session's outbound queue.
type Client struct {
	gateway *Gateway
	conn    *websocket.Conn
	token   string
	session *session.Session

	send   chan string
	done   chan struct{}
	once   sync.Once
	closed atomic.Bool
}

func newClient(g *Gateway, conn *websocket.Conn, token string) *Client {
	return &Client{
		gateway: g,
		conn:    conn,
		token:   token,
		// Buffered so session emissions never block on a slow link
		send: make(chan string, 256),
		done: make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------
// ITransport
// -----------------------------------------------------------------------------

// Send queues one outbound frame; a client too slow to drain its buffer is
// disconnected so it cannot stall the session strand.
func (c *Client) Send(text string) {
	if c.closed.Load() {
		return
	}
	select {
	case c.send <- text:
	default:
		c.gateway.Logger.Warning("Client %s too slow, disconnecting", c.RemoteAddress())
		c.Close()
	}
}

func (c *Client) Stateless() bool {
	return false
}

func (c *Client) RemoteAddress() string {
	return c.conn.RemoteAddr().String()
}

func (c *Client) Close() {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// Act as a Watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		c.gateway.onClientGone(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.gateway.Logger.Info("WebSocket error: %v", err)
			}
			break
		}
		c.session.OnMessageAsync(string(message), c.token)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				c.gateway.Logger.Info("Write error: %v", err)
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
