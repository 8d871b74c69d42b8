package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seenuaaa/casmi/internal/core"
	"github.com/seenuaaa/casmi/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

type fakeStore struct {
	exists    bool
	fetchErr  error
	updateErr error
	updates   chan []domain.Participant
}

func newFakeStore(exists bool) *fakeStore {
	return &fakeStore{exists: exists, updates: make(chan []domain.Participant, 8)}
}

func (s *fakeStore) FetchRoom(_ context.Context, roomID domain.RoomID) (*domain.RoomRecord, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if !s.exists {
		return nil, core.ErrRoomNotFound
	}
	return &domain.RoomRecord{ID: roomID}, nil
}

func (s *fakeStore) UpdateParticipants(_ context.Context, _ domain.RoomID, participants []domain.Participant, _ time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates <- participants
	return nil
}

func waitForUpdate(t *testing.T, s *fakeStore) []domain.Participant {
	t.Helper()
	select {
	case ps := <-s.updates:
		return ps
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for store mirror update")
		return nil
	}
}

func TestEngine_Join_LastJoinWins(t *testing.T) {
	req := require.New(t)
	e := NewEngine(nil, 0, 0)

	// Given a user joined from one connection
	_, _, err := e.Join("conn-1", &fakeConn{}, "r1", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)

	// When the same user joins again from a new connection
	snapshot, _, err := e.Join("conn-2", &fakeConn{}, "r1", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)

	// Then the room holds exactly one entry, routing to the new connection
	req.Len(snapshot, 1)
	req.Equal(domain.UserID("u1"), snapshot[0].UserID)
	req.Equal("conn-2", snapshot[0].ConnectionID)
}

func TestEngine_Join_SnapshotContainsAllJoiners(t *testing.T) {
	req := require.New(t)
	e := NewEngine(nil, 0, 0)

	var snapshot []domain.Participant
	for _, id := range []string{"u1", "u2", "u3"} {
		var err error
		snapshot, _, err = e.Join(core.ConnID("conn-"+id), &fakeConn{}, "r1", domain.UserID(id), domain.UserInfo{Name: id})
		req.NoError(err)
	}

	req.Len(snapshot, 3)
	req.Equal(domain.UserID("u1"), snapshot[0].UserID)
	req.Equal(domain.UserID("u3"), snapshot[2].UserID)
}

func TestEngine_Join_EmptyIDsRejected(t *testing.T) {
	req := require.New(t)
	e := NewEngine(nil, 0, 0)

	_, _, err := e.Join("conn-1", &fakeConn{}, "", "u1", domain.UserInfo{})
	req.ErrorIs(err, ErrEmptyRoomID)

	_, _, err = e.Join("conn-1", &fakeConn{}, "r1", "", domain.UserInfo{})
	req.ErrorIs(err, ErrEmptyUserID)

	req.Empty(e.Rooms())
}

func TestEngine_Join_AnonymousDefault(t *testing.T) {
	req := require.New(t)
	e := NewEngine(nil, 0, 0)

	snapshot, _, err := e.Join("conn-1", &fakeConn{}, "r1", "u1", domain.UserInfo{})
	req.NoError(err)
	req.Equal(domain.DefaultDisplayName, snapshot[0].Name)
}

func TestEngine_Remove_LastParticipantRemovesRoom(t *testing.T) {
	req := require.New(t)
	e := NewEngine(nil, 0, 0)

	_, _, err := e.Join("conn-1", &fakeConn{}, "r1", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)

	removal, ok := e.Remove("conn-1")
	req.True(ok)
	req.Equal(domain.RoomID("r1"), removal.RoomID)
	req.Equal(domain.UserID("u1"), removal.UserID)
	req.Equal("Alice", removal.Info.Name)

	req.Empty(e.Participants("r1"))
	req.Empty(e.Rooms())
}

func TestEngine_Remove_UnknownConnection(t *testing.T) {
	req := require.New(t)
	e := NewEngine(nil, 0, 0)

	_, ok := e.Remove("nope")
	req.False(ok)
}

func TestEngine_Remove_StaleConnectionKeepsFreshEntry(t *testing.T) {
	req := require.New(t)
	e := NewEngine(nil, 0, 0)

	// Given a user who rejoined on a new connection without leaving first
	_, _, err := e.Join("conn-old", &fakeConn{}, "r1", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)
	_, _, err = e.Join("conn-new", &fakeConn{}, "r1", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)

	// When the old transport finally disconnects
	_, ok := e.Remove("conn-old")

	// Then presence is unchanged and no departure is reported
	req.False(ok)
	participants := e.Participants("r1")
	req.Len(participants, 1)
	req.Equal("conn-new", participants[0].ConnectionID)
}

func TestEngine_Join_MirrorsParticipants(t *testing.T) {
	req := require.New(t)
	store := newFakeStore(true)
	e := NewEngine(store, 0, 0)

	_, _, err := e.Join("conn-1", &fakeConn{}, "r1", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)

	mirrored := waitForUpdate(t, store)
	req.Len(mirrored, 1)
	req.Equal(domain.UserID("u1"), mirrored[0].UserID)
}

func TestEngine_Remove_MirrorsParticipants(t *testing.T) {
	req := require.New(t)
	store := newFakeStore(true)
	e := NewEngine(store, 0, 0)

	_, _, err := e.Join("conn-1", &fakeConn{}, "r1", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)
	waitForUpdate(t, store)

	_, ok := e.Remove("conn-1")
	req.True(ok)

	mirrored := waitForUpdate(t, store)
	req.Empty(mirrored)
}

func TestEngine_Join_RoomMissingFromStore(t *testing.T) {
	req := require.New(t)
	store := newFakeStore(false)
	e := NewEngine(store, 0, 0)

	snapshot, _, err := e.Join("conn-1", &fakeConn{}, "r1", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)
	req.Len(snapshot, 1)

	select {
	case <-store.updates:
		t.Fatal("no mirror update expected for an unknown room")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngine_Join_StoreFailureDoesNotAffectPresence(t *testing.T) {
	req := require.New(t)
	store := newFakeStore(true)
	store.fetchErr = errors.New("store down")
	e := NewEngine(store, 0, 0)

	snapshot, _, err := e.Join("conn-1", &fakeConn{}, "r1", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)
	req.Len(snapshot, 1)
	req.Len(e.Participants("r1"), 1)
}

func TestEngine_Sweep_EvictsStaleAndKeepsFresh(t *testing.T) {
	req := require.New(t)
	e := NewEngine(nil, 50*time.Millisecond, 0)

	_, _, err := e.Join("conn-1", &fakeConn{}, "r1", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)
	time.Sleep(60 * time.Millisecond)
	_, _, err = e.Join("conn-2", &fakeConn{}, "r1", "u2", domain.UserInfo{Name: "Bob"})
	req.NoError(err)

	removed := e.Sweep(time.Now())
	req.Equal(1, removed)

	participants := e.Participants("r1")
	req.Len(participants, 1)
	req.Equal(domain.UserID("u2"), participants[0].UserID)
}

func TestEngine_Sweep_RemovesEmptyRoom(t *testing.T) {
	req := require.New(t)
	e := NewEngine(nil, time.Hour, 0)

	_, _, err := e.Join("conn-1", &fakeConn{}, "r1", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)

	removed := e.Sweep(time.Now().Add(2 * time.Hour))
	req.Equal(1, removed)
	req.Empty(e.Rooms())
}

func TestEngine_Sweep_NothingStale(t *testing.T) {
	req := require.New(t)
	e := NewEngine(nil, time.Hour, 0)

	_, _, err := e.Join("conn-1", &fakeConn{}, "r1", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)

	req.Zero(e.Sweep(time.Now()))
	req.Len(e.Participants("r1"), 1)
}

func TestEngine_Rooms(t *testing.T) {
	req := require.New(t)
	e := NewEngine(nil, 0, 0)

	_, _, err := e.Join("conn-1", &fakeConn{}, "r1", "u1", domain.UserInfo{})
	req.NoError(err)
	_, _, err = e.Join("conn-2", &fakeConn{}, "r1", "u2", domain.UserInfo{})
	req.NoError(err)
	_, _, err = e.Join("conn-3", &fakeConn{}, "r2", "u3", domain.UserInfo{})
	req.NoError(err)

	rooms := e.Rooms()
	req.Len(rooms, 2)
	req.Equal(domain.RoomID("r1"), rooms[0].RoomID)
	req.Equal(2, rooms[0].ParticipantCount)
	req.Equal(domain.RoomID("r2"), rooms[1].RoomID)
	req.Equal(1, rooms[1].ParticipantCount)
}

func TestEngine_Join_SwitchingRoomsLeavesOldRoom(t *testing.T) {
	req := require.New(t)
	e := NewEngine(nil, 0, 0)

	_, _, err := e.Join("conn-1", &fakeConn{}, "r1", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)

	_, prior, err := e.Join("conn-1", &fakeConn{}, "r2", "u1", domain.UserInfo{Name: "Alice"})
	req.NoError(err)
	req.NotNil(prior)
	req.Equal(domain.RoomID("r1"), prior.RoomID)

	req.Empty(e.Participants("r1"))
	req.Len(e.Participants("r2"), 1)
}
