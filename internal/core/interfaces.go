package core

import (
	"context"
	"errors"
	"time"

	"github.com/seenuaaa/casmi/internal/domain"
)

// Frame is an encoded outbound event, ready for the wire.
type Frame []byte

// ConnID identifies one live transport channel. Assigned by the adapter,
// opaque to everything else.
type ConnID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// ErrRoomNotFound is returned by RoomStore when a room document is absent.
// The mirror path treats it as "nothing to update", not a failure.
var ErrRoomNotFound = errors.New("room not found")

// RoomStore is the external document store the engine mirrors presence into.
// Every write is best-effort: the in-memory registry is ground truth and a
// failed mirror is only logged.
type RoomStore interface {
	FetchRoom(ctx context.Context, roomID domain.RoomID) (*domain.RoomRecord, error)
	UpdateParticipants(ctx context.Context, roomID domain.RoomID, participants []domain.Participant, updatedAt time.Time) error
}

// RoomInfo is a read-only presence view for APIs (no transport fields).
type RoomInfo struct {
	RoomID           domain.RoomID `json:"roomId"`
	ParticipantCount int           `json:"participantCount"`
}
