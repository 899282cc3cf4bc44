package chat

import (
	"encoding/json"
	"time"
)

// Wire envelope for the live channel. Every frame carries an event
// name and a payload shaped per event; payloads are validated at this
// boundary before reaching the router.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound events.
const (
	EventUserJoin         = "user-join"
	EventUserTyping       = "user-typing"
	EventSendMessage      = "send-message"
	EventMessageRead      = "message-read"
	EventConversationRead = "conversation-read"
	EventUserStatus       = "user-status"
)

// Outbound events.
const (
	EventUserStatusChanged = "user-status-changed"
	EventMessageReceived   = "message-received"
	EventMessageSent       = "message-sent"
	EventMessageError      = "message-error"
	EventMessageReadNotif  = "message-read-notification"
	EventMessageEdited     = "message-edited"
	EventError             = "error"
)

type typingPayload struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	IsTyping   bool   `json:"isTyping"`
}

type sendMessagePayload struct {
	ToUserID    string `json:"to_user_id"`
	Text        string `json:"text"`
	MediaURL    string `json:"media_url"`
	MessageType string `json:"message_type"`
}

type conversationReadPayload struct {
	UserID string `json:"userId"`
}

type conversationReadNotif struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

type userStatusPayload struct {
	Status string `json:"status"`
}

type statusChangedPayload struct {
	UserID      string     `json:"userId"`
	Status      string     `json:"status"`
	ActiveUsers []string   `json:"activeUsers"`
	LastSeen    *time.Time `json:"lastSeen,omitempty"`
}

type readNotifPayload struct {
	MessageID string    `json:"messageId"`
	ReadAt    time.Time `json:"readAt"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func marshalEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
