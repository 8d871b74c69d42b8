package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/seenuaaa/casmi/internal/core"
	"github.com/seenuaaa/casmi/internal/domain"
)

// Media state is not tracked: toggles and screen-share are pure
// notifications to the rest of the room.

type toggleVideoPayload struct {
	Type           string `json:"type"`
	IsVideoEnabled bool   `json:"isVideoEnabled"`
}

type toggleAudioPayload struct {
	Type           string `json:"type"`
	IsAudioEnabled bool   `json:"isAudioEnabled"`
}

func (ctl *Controller) handleToggleVideo(connID core.ConnID, data []byte) {
	sender, ok := ctl.engine.Sender(connID)
	if !ok {
		return
	}
	var p toggleVideoPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad toggle-video payload")
		return
	}
	ctl.broadcastOthers(sender.RoomID, connID, struct {
		Type           string        `json:"type"`
		UserID         domain.UserID `json:"userId"`
		IsVideoEnabled bool          `json:"isVideoEnabled"`
	}{"user-video-toggle", sender.UserID, p.IsVideoEnabled})
}

func (ctl *Controller) handleToggleAudio(connID core.ConnID, data []byte) {
	sender, ok := ctl.engine.Sender(connID)
	if !ok {
		return
	}
	var p toggleAudioPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad toggle-audio payload")
		return
	}
	ctl.broadcastOthers(sender.RoomID, connID, struct {
		Type           string        `json:"type"`
		UserID         domain.UserID `json:"userId"`
		IsAudioEnabled bool          `json:"isAudioEnabled"`
	}{"user-audio-toggle", sender.UserID, p.IsAudioEnabled})
}

func (ctl *Controller) handleScreenShare(connID core.ConnID, starting bool) {
	sender, ok := ctl.engine.Sender(connID)
	if !ok {
		return
	}
	kind := "user-stopped-screen-share"
	if starting {
		kind = "user-started-screen-share"
	}
	ctl.broadcastOthers(sender.RoomID, connID, struct {
		Type   string        `json:"type"`
		UserID domain.UserID `json:"userId"`
	}{kind, sender.UserID})
}
