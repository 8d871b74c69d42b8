package signal

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/seenuaaa/casmi/internal/app"
	"github.com/seenuaaa/casmi/internal/core"
	"github.com/seenuaaa/casmi/internal/domain"
)

var validate = validator.New()

type joinRoomPayload struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId" validate:"required"`
	UserID   string          `json:"userId" validate:"required"`
	UserInfo domain.UserInfo `json:"userInfo"`
}

type userJoinedEvent struct {
	Type     string          `json:"type"`
	UserID   domain.UserID   `json:"userId"`
	UserInfo domain.UserInfo `json:"userInfo"`
}

type roomParticipantsEvent struct {
	Type         string               `json:"type"`
	Participants []domain.Participant `json:"participants"`
}

type userLeftEvent struct {
	Type     string          `json:"type"`
	UserID   domain.UserID   `json:"userId"`
	UserInfo domain.UserInfo `json:"userInfo"`
}

func (ctl *Controller) handleJoinRoom(connID core.ConnID, c core.SignalConnection, data []byte) {
	if !ctl.joins.Allow(connID) {
		log.Warn().Str("module", "signal").Str("conn", string(connID)).Msg("join rate limited")
		ctl.sendError(c, "too many join attempts")
		return
	}

	var p joinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(c, "failed to join room")
		return
	}
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("invalid join payload")
		ctl.sendError(c, "failed to join room")
		return
	}

	roomID := domain.RoomID(p.RoomID)
	userID := domain.UserID(p.UserID)

	snapshot, prior, err := ctl.engine.Join(connID, c, roomID, userID, p.UserInfo)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("join rejected")
		ctl.sendError(c, "failed to join room")
		return
	}

	// Switching rooms on a live connection: the old room sees a departure.
	if prior != nil {
		ctl.broadcastRoom(prior.RoomID, userLeftEvent{
			Type:     "user-left",
			UserID:   prior.UserID,
			UserInfo: prior.Info,
		})
	}

	ctl.broadcastOthers(roomID, connID, userJoinedEvent{
		Type:     "user-joined",
		UserID:   userID,
		UserInfo: p.UserInfo.Normalized(),
	})
	ctl.sendJSON(c, roomParticipantsEvent{
		Type:         "room-participants",
		Participants: snapshot,
	})
}

func (ctl *Controller) handleLeaveRoom(connID core.ConnID) {
	ctl.removeAndNotify(connID)
}

// handleDisconnect runs when the transport channel dies. Same bookkeeping
// and same store mirroring as an explicit leave, plus the connection's
// rate-limit history is released since its id will never be seen again.
func (ctl *Controller) handleDisconnect(connID core.ConnID) {
	ctl.joins.Forget(connID)
	ctl.removeAndNotify(connID)
}

func (ctl *Controller) removeAndNotify(connID core.ConnID) {
	removal, ok := ctl.engine.Remove(connID)
	if !ok {
		return
	}
	ctl.notifyLeft(removal)
}

func (ctl *Controller) notifyLeft(removal *app.Removal) {
	ctl.broadcastRoom(removal.RoomID, userLeftEvent{
		Type:     "user-left",
		UserID:   removal.UserID,
		UserInfo: removal.Info,
	})
}
