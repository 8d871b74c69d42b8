package domain

import "time"

// ChatMessage is broadcast to a whole room and never persisted.
type ChatMessage struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	SenderUserID UserID    `json:"senderUserId"`
	SenderName   string    `json:"senderName"`
	SenderAvatar string    `json:"senderAvatar"`
	Timestamp    time.Time `json:"timestamp"`
	Type         string    `json:"type"`
}
