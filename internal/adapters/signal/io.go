package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/seenuaaa/casmi/internal/core"
	"github.com/seenuaaa/casmi/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, connID core.ConnID, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("readPump closing")
		ctl.handleDisconnect(connID)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("readPump read error")
				return
			}
			ctl.handleFrame(connID, c, data)
		}
	}
}

// handleFrame dispatches one inbound event. Panics inside a handler are
// contained here so a single bad event cannot take the pump, or any other
// room's state, down with it.
func (ctl *Controller) handleFrame(connID core.ConnID, c core.SignalConnection, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("conn", string(connID)).
				Interface("panic", r).Msg("event handler panicked")
		}
	}()

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "join-room":
		ctl.handleJoinRoom(connID, c, data)
	case "leave-room":
		ctl.handleLeaveRoom(connID)
	case "webrtc-offer":
		ctl.handleOffer(connID, data)
	case "webrtc-answer":
		ctl.handleAnswer(connID, data)
	case "webrtc-ice-candidate":
		ctl.handleCandidate(connID, data)
	case "chat-message":
		ctl.handleChatMessage(connID, data)
	case "toggle-video":
		ctl.handleToggleVideo(connID, data)
	case "toggle-audio":
		ctl.handleToggleAudio(connID, data)
	case "start-screen-share":
		ctl.handleScreenShare(connID, true)
	case "stop-screen-share":
		ctl.handleScreenShare(connID, false)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c core.SignalConnection, message string) {
	ctl.sendJSON(c, map[string]any{"type": "error", "message": message})
}

// broadcastOthers fans an event out to every connection in the room
// except the sender's.
func (ctl *Controller) broadcastOthers(roomID domain.RoomID, except core.ConnID, v any) {
	for _, conn := range ctl.engine.RoomConnections(roomID, except) {
		ctl.sendJSON(conn, v)
	}
}

// broadcastRoom fans an event out to the whole room, sender included.
func (ctl *Controller) broadcastRoom(roomID domain.RoomID, v any) {
	ctl.broadcastOthers(roomID, "", v)
}
