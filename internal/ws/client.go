package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 64
)

// MessageHandler is called for every inbound frame other than ping.
type MessageHandler func(c *Client, in Inbound)

type Client struct {
	UserID    string
	SessionID string

	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Serve runs a connection until either side closes it. initial is queued
// right after the ready handshake.
func (h *Hub) Serve(userID, sid string, conn *websocket.Conn, initial *Frame, onMessage MessageHandler) {
	c := &Client{
		UserID:    userID,
		SessionID: sid,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		hub:       h,
	}
	if !h.register(c) {
		_ = conn.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()

	h.sendTo(c, Frame{Type: MsgReady})
	if initial != nil {
		h.sendTo(c, *initial)
	}

	c.readPump(onMessage)
	h.unregister(c)
	<-done
}

// Push queues f on this connection only.
func (c *Client) Push(f Frame) {
	c.hub.sendTo(c, f)
}

func (c *Client) readPump(onMessage MessageHandler) {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("read error", "user_id", c.UserID, "error", err)
			}
			return
		}
		var in Inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			c.Push(Frame{Type: MsgError, Data: ErrorPayload{Message: "invalid message"}})
			continue
		}
		if in.Type == MsgPing {
			c.Push(Frame{Type: MsgPong})
			continue
		}
		if onMessage != nil {
			onMessage(c, in)
		}
	}
}

// writePump owns all writes to the connection. It exits when the hub
// closes the send queue or a write fails, and closes the socket so the
// read side unblocks too.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.log.Debug("write error", "user_id", c.UserID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
