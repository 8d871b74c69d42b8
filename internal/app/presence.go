package app

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/seenuaaa/casmi/internal/core"
	"github.com/seenuaaa/casmi/internal/domain"
)

var (
	ErrEmptyRoomID = errors.New("empty room id")
	ErrEmptyUserID = errors.New("empty user id")
)

type connEntry struct {
	userID domain.UserID
	roomID domain.RoomID
	info   domain.UserInfo
	conn   core.SignalConnection
}

// Identity is what the relay needs to attribute an event to its sender.
type Identity struct {
	UserID domain.UserID
	RoomID domain.RoomID
	Info   domain.UserInfo
}

// Removal describes a membership that was just torn down, with the user
// info captured at join time so departures can still be attributed.
type Removal struct {
	RoomID domain.RoomID
	UserID domain.UserID
	Info   domain.UserInfo
}

// Engine owns the presence registry: one map of live connections and one
// map of room membership. All mutation goes through its mutex; the maps
// are never handed out. Process restart loses everything, clients rejoin.
type Engine struct {
	mu          sync.RWMutex
	connections map[core.ConnID]*connEntry
	rooms       map[domain.RoomID]map[domain.UserID]*domain.Participant

	store        core.RoomStore
	storeTimeout time.Duration
	staleAfter   time.Duration
}

func NewEngine(store core.RoomStore, staleAfter, storeTimeout time.Duration) *Engine {
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Engine{
		connections:  make(map[core.ConnID]*connEntry),
		rooms:        make(map[domain.RoomID]map[domain.UserID]*domain.Participant),
		store:        store,
		storeTimeout: storeTimeout,
		staleAfter:   staleAfter,
	}
}

// Join registers the connection in a room and upserts the participant
// entry for its user id. Rejoining with the same user id replaces the
// prior entry, so a user never appears twice in one room. The returned
// snapshot includes the join just applied. If the connection was already
// in another room, that membership is removed first and returned so the
// caller can notify the old room.
func (e *Engine) Join(
	connID core.ConnID,
	conn core.SignalConnection,
	roomID domain.RoomID,
	userID domain.UserID,
	info domain.UserInfo,
) ([]domain.Participant, *Removal, error) {
	if roomID == "" {
		return nil, nil, ErrEmptyRoomID
	}
	if userID == "" {
		return nil, nil, ErrEmptyUserID
	}
	info = info.Normalized()

	e.mu.Lock()
	var prior *Removal
	if old, ok := e.connections[connID]; ok && (old.roomID != roomID || old.userID != userID) {
		if r := e.removeLocked(connID); r != nil {
			prior = r
		}
	}
	e.connections[connID] = &connEntry{userID: userID, roomID: roomID, info: info, conn: conn}

	members, ok := e.rooms[roomID]
	if !ok {
		members = make(map[domain.UserID]*domain.Participant)
		e.rooms[roomID] = members
	}
	members[userID] = &domain.Participant{
		UserID:       userID,
		ConnectionID: string(connID),
		Name:         info.Name,
		PhotoURL:     info.PhotoURL,
		JoinedAt:     time.Now(),
	}
	snapshot := e.participantsLocked(roomID)
	var priorSnapshot []domain.Participant
	if prior != nil {
		priorSnapshot = e.participantsLocked(prior.RoomID)
	}
	e.mu.Unlock()

	log.Info().Str("module", "app.presence").
		Str("conn", string(connID)).Str("room", string(roomID)).Str("user", string(userID)).
		Msg("joined room")

	if prior != nil {
		e.mirror(prior.RoomID, priorSnapshot)
	}
	e.mirror(roomID, snapshot)
	return snapshot, prior, nil
}

// Remove tears down the membership of a connection, deleting the room
// entry when it was the last participant. Used for both explicit leave
// and transport disconnect; both paths push a mirror update.
func (e *Engine) Remove(connID core.ConnID) (*Removal, bool) {
	e.mu.Lock()
	removal := e.removeLocked(connID)
	var snapshot []domain.Participant
	if removal != nil {
		snapshot = e.participantsLocked(removal.RoomID)
	}
	e.mu.Unlock()

	if removal == nil {
		return nil, false
	}
	log.Info().Str("module", "app.presence").
		Str("conn", string(connID)).Str("room", string(removal.RoomID)).Str("user", string(removal.UserID)).
		Msg("left room")
	e.mirror(removal.RoomID, snapshot)
	return removal, true
}

// removeLocked deletes the connection and its participant entry. The
// participant is only dropped if it still routes to this connection: a
// stale disconnect arriving after a rejoin must not evict the fresh
// entry, and in that case presence is unchanged and nil is returned.
func (e *Engine) removeLocked(connID core.ConnID) *Removal {
	entry, ok := e.connections[connID]
	if !ok {
		return nil
	}
	delete(e.connections, connID)

	members, ok := e.rooms[entry.roomID]
	if !ok {
		return nil
	}
	p, ok := members[entry.userID]
	if !ok || p.ConnectionID != string(connID) {
		return nil
	}
	delete(members, entry.userID)
	if len(members) == 0 {
		delete(e.rooms, entry.roomID)
	}
	return &Removal{RoomID: entry.roomID, UserID: entry.userID, Info: entry.info}
}

// Sender returns the identity bound to a connection, if it has joined.
func (e *Engine) Sender(connID core.ConnID) (Identity, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.connections[connID]
	if !ok {
		return Identity{}, false
	}
	return Identity{UserID: entry.userID, RoomID: entry.roomID, Info: entry.info}, true
}

// Connection resolves a connection id to its transport channel, for
// point-to-point signal relay. Unknown ids mean the target is gone and
// the signal is dropped by the caller.
func (e *Engine) Connection(connID core.ConnID) (core.SignalConnection, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.connections[connID]
	if !ok || entry.conn == nil {
		return nil, false
	}
	return entry.conn, true
}

// RoomConnections lists the live channels of a room, excluding except
// when non-empty. Snapshot semantics: sends happen outside the lock.
func (e *Engine) RoomConnections(roomID domain.RoomID, except core.ConnID) []core.SignalConnection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]core.SignalConnection, 0, len(e.connections))
	for id, entry := range e.connections {
		if entry.roomID != roomID || id == except || entry.conn == nil {
			continue
		}
		out = append(out, entry.conn)
	}
	return out
}

// Participants returns the room's membership snapshot, oldest join first.
func (e *Engine) Participants(roomID domain.RoomID) []domain.Participant {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.participantsLocked(roomID)
}

func (e *Engine) participantsLocked(roomID domain.RoomID) []domain.Participant {
	members, ok := e.rooms[roomID]
	if !ok {
		return []domain.Participant{}
	}
	out := lo.Map(lo.Values(members), func(p *domain.Participant, _ int) domain.Participant {
		return *p
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// Rooms reports live presence counts for every known room.
func (e *Engine) Rooms() []core.RoomInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(e.rooms))
	for id, members := range e.rooms {
		out = append(out, core.RoomInfo{RoomID: id, ParticipantCount: len(members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// Sweep evicts participants whose join is older than the staleness
// threshold and drops rooms left empty. Safety net for connections that
// vanished without a disconnect; no user-left is emitted for these.
func (e *Engine) Sweep(now time.Time) int {
	cutoff := now.Add(-e.staleAfter)
	changed := make(map[domain.RoomID][]domain.Participant)
	removed := 0

	e.mu.Lock()
	for roomID, members := range e.rooms {
		for userID, p := range members {
			if p.JoinedAt.After(cutoff) {
				continue
			}
			delete(members, userID)
			delete(e.connections, core.ConnID(p.ConnectionID))
			removed++
			log.Info().Str("module", "app.presence").
				Str("room", string(roomID)).Str("user", string(userID)).
				Msg("swept stale participant")
			changed[roomID] = nil
		}
		if len(members) == 0 {
			delete(e.rooms, roomID)
			if _, ok := changed[roomID]; ok {
				changed[roomID] = []domain.Participant{}
			}
			log.Info().Str("module", "app.presence").Str("room", string(roomID)).Msg("swept empty room")
			continue
		}
		if _, ok := changed[roomID]; ok {
			changed[roomID] = e.participantsLocked(roomID)
		}
	}
	e.mu.Unlock()

	for roomID, snapshot := range changed {
		e.mirror(roomID, snapshot)
	}
	return removed
}
