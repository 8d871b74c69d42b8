package signal

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/seenuaaa/casmi/internal/core"
	"github.com/seenuaaa/casmi/internal/domain"
)

type chatMessagePayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type chatMessageEvent struct {
	Type    string             `json:"type"`
	Message domain.ChatMessage `json:"message"`
}

// handleChatMessage broadcasts to the sender's whole room, sender
// included. Messages from connections that never joined are dropped.
// Nothing is persisted; a client not connected when the broadcast runs
// never sees the message.
func (ctl *Controller) handleChatMessage(connID core.ConnID, data []byte) {
	sender, ok := ctl.engine.Sender(connID)
	if !ok {
		log.Debug().Str("module", "signal").Str("conn", string(connID)).Msg("chat from unjoined connection, dropping")
		return
	}

	var p chatMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad chat payload")
		return
	}

	msg := domain.ChatMessage{
		ID:           uuid.NewString(),
		Text:         p.Message,
		SenderUserID: sender.UserID,
		SenderName:   sender.Info.Name,
		SenderAvatar: sender.Info.PhotoURL,
		Timestamp:    time.Now(),
		Type:         "text",
	}
	ctl.broadcastRoom(sender.RoomID, chatMessageEvent{Type: "chat-message", Message: msg})
}
