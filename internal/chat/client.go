package chat

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mdmrafi/vartalap/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 5120
)

// Client is one live connection: the presence handle for its user.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string

	// joined is owned by the hub's Run goroutine.
	joined bool

	mu     sync.Mutex
	closed bool
}

// Push queues a payload without blocking. A slow or closed client
// drops the payload; it will catch up on next poll/reconnect.
func (c *Client) Push(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- payload:
	default:
		log.Printf("[hub] dropped payload for slow client %s", c.UserID)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
	c.mu.Unlock()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.pushEvent(EventError, errorPayload{Message: "malformed event"})
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	ctx := context.Background()
	switch env.Event {
	case EventUserJoin:
		var uid string
		_ = json.Unmarshal(env.Data, &uid)
		if uid != "" && uid != c.UserID {
			c.pushEvent(EventError, errorPayload{Message: "join identity mismatch"})
			return
		}
		c.Hub.register <- c

	case EventUserTyping:
		var p typingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ToUserID == "" {
			c.pushEvent(EventError, errorPayload{Message: "invalid typing payload"})
			return
		}
		c.Hub.Typing(c.UserID, p.ToUserID)

	case EventSendMessage:
		var p sendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.pushEvent(EventMessageError, errorPayload{Message: "invalid message payload"})
			return
		}
		if _, err := c.Hub.SendMessage(ctx, c.UserID, p.ToUserID, p.Text, p.MediaURL, model.MessageKind(p.MessageType)); err != nil {
			c.pushEvent(EventMessageError, errorPayload{Message: err.Error()})
		}

	case EventMessageRead:
		var id string
		if err := json.Unmarshal(env.Data, &id); err != nil || id == "" {
			c.pushEvent(EventError, errorPayload{Message: "invalid message id"})
			return
		}
		if _, err := c.Hub.MarkRead(ctx, id, c.UserID); err != nil {
			c.pushEvent(EventError, errorPayload{Message: err.Error()})
		}

	case EventConversationRead:
		var p conversationReadPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.UserID == "" {
			c.pushEvent(EventError, errorPayload{Message: "invalid conversation payload"})
			return
		}
		if _, err := c.Hub.MarkConversationRead(ctx, p.UserID, c.UserID); err != nil {
			c.pushEvent(EventError, errorPayload{Message: err.Error()})
		}

	case EventUserStatus:
		var p userStatusPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.Status == "" {
			c.pushEvent(EventError, errorPayload{Message: "invalid status payload"})
			return
		}
		c.Hub.UserStatus(ctx, c.UserID, p.Status)

	default:
		c.pushEvent(EventError, errorPayload{Message: "unknown event " + env.Event})
	}
}

func (c *Client) pushEvent(event string, data any) {
	payload, err := marshalEvent(event, data)
	if err != nil {
		log.Printf("[client] marshal %s: %v", event, err)
		return
	}
	c.Push(payload)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
