package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

// Envelope is the wire format for every websocket frame, both ways.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is one live websocket connection. It satisfies presence.Conn:
// Send enqueues without blocking and the write pump owns the socket.
type Client struct {
	conn   *websocket.Conn
	mobile string
	send   chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, mobile string) *Client {
	return &Client{
		conn:   conn,
		mobile: mobile,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
	}
}

// Send marshals the event and enqueues it for the writer. A full queue
// drops the event rather than blocking the caller; the client will
// reconcile on its next fetch.
func (c *Client) Send(event string, payload any) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	frame, err := json.Marshal(Envelope{Type: event, Payload: raw})
	if err != nil {
		return false
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump is the only goroutine writing to the socket. It drains the
// send queue and keeps the connection alive with pings.
func (c *Client) writePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
