package domain

import "time"

// Participant is one user's presence in a room, keyed by user id.
// Rejoining replaces the prior entry, so the connection id always points
// at the most recent transport channel for that user.
type Participant struct {
	UserID       UserID    `json:"userId"`
	ConnectionID string    `json:"connectionId"`
	Name         string    `json:"name"`
	PhotoURL     string    `json:"photoURL"`
	JoinedAt     time.Time `json:"joinedAt"`
}
