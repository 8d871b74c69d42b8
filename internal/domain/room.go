package domain

import "time"

type RoomID string

// RoomRecord is the externally stored room document. Only the fields the
// relay touches are modeled; the store owns everything else.
type RoomRecord struct {
	ID        RoomID    `db:"id"`
	Name      string    `db:"name"`
	UpdatedAt time.Time `db:"updated_at"`
}
