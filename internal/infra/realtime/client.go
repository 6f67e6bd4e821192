package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mentalspace/internal/domain/model"
)

const maxFrameBytes = 16 * 1024

// Client is one websocket connection. Room membership is guarded by the
// hub's mutex.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	principal model.Principal
	rooms     map[string]struct{}

	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, p model.Principal, buffer int) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		principal: p,
		rooms:     map[string]struct{}{},
		send:      make(chan []byte, buffer),
		closed:    make(chan struct{}),
	}
}

// enqueue hands msg to the writer without blocking.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// writePump owns all writes to conn.
func (c *Client) writePump(writeTimeout, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump decodes frames until the peer goes away, calling handle for each.
func (c *Client) readPump(pongWait time.Duration, handle func(Frame)) {
	defer c.close()
	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil || f.Event == "" {
			c.enqueueError("invalid frame payload", "validation")
			continue
		}
		handle(f)
	}
}

func (c *Client) enqueueError(message, kind string) bool {
	msg, ok := c.hub.encode("error", errorPayload{Message: message, Kind: kind})
	if !ok {
		return false
	}
	return c.enqueue(msg)
}

type errorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}
