package model

import "time"

type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
	LastSeen time.Time `json:"lastSeen"`
	Created  time.Time `json:"createdAt"`
}

// ConversationSummary is a derived view, never stored: one entry per
// conversation partner of the requesting user.
type ConversationSummary struct {
	PartnerID   string   `json:"partner_id"`
	User        *User    `json:"user"`
	LastMessage *Message `json:"lastMessage"`
	UnreadCount int      `json:"unreadCount"`
}
