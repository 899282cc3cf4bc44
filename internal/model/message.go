package model

import "time"

// MessageKind selects rendering and edit eligibility.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindVideo MessageKind = "video"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo:
		return true
	}
	return false
}

// DeliveryStatus is monotonically non-decreasing over a message's
// lifetime: sent -> delivered -> read.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

func (s DeliveryStatus) Rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	}
	return -1
}

// Message is the unit of communication between two users.
type Message struct {
	ID           string         `json:"id"`
	FromUserID   string         `json:"from_user_id"`
	ToUserID     string         `json:"to_user_id"`
	Text         string         `json:"text"`
	MediaURL     string         `json:"media_url"`
	Kind         MessageKind    `json:"message_type"`
	Status       DeliveryStatus `json:"status"`
	IsRead       bool           `json:"isRead"`
	ReadAt       *time.Time     `json:"readAt"`
	IsDeleted    bool           `json:"isDeleted"`
	DeletedFor   []string       `json:"deletedFor"`
	EditedAt     *time.Time     `json:"editedAt"`
	OriginalText string         `json:"originalText"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// DeletedBy reports whether a user has soft-deleted this message.
func (m *Message) DeletedBy(userID string) bool {
	for _, id := range m.DeletedFor {
		if id == userID {
			return true
		}
	}
	return false
}
