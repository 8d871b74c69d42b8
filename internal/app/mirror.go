package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seenuaaa/casmi/internal/core"
	"github.com/seenuaaa/casmi/internal/domain"
)

// mirror pushes the participant snapshot to the external store in the
// background. Fire-and-forget: it must never block event handling and a
// failure never rolls back in-memory state. The list is written wholesale,
// so any divergence heals on the next successful write.
func (e *Engine) mirror(roomID domain.RoomID, participants []domain.Participant) {
	if e.store == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("module", "app.presence").Str("room", string(roomID)).
					Interface("panic", r).Msg("mirror panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), e.storeTimeout)
		defer cancel()

		if _, err := e.store.FetchRoom(ctx, roomID); err != nil {
			if errors.Is(err, core.ErrRoomNotFound) {
				log.Debug().Str("module", "app.presence").Str("room", string(roomID)).
					Msg("room not in store, skipping mirror")
				return
			}
			log.Warn().Err(err).Str("module", "app.presence").Str("room", string(roomID)).
				Msg("mirror fetch failed")
			return
		}
		if err := e.store.UpdateParticipants(ctx, roomID, participants, time.Now()); err != nil {
			log.Warn().Err(err).Str("module", "app.presence").Str("room", string(roomID)).
				Msg("mirror update failed")
		}
	}()
}
