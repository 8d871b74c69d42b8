package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/seenuaaa/casmi/internal/core"
	"github.com/seenuaaa/casmi/internal/domain"
)

// Session negotiation payloads are opaque to the relay: SDP and ICE
// content passes through as raw JSON and is never inspected.

type offerPayload struct {
	Type  string          `json:"type"`
	To    string          `json:"to" validate:"required"`
	From  domain.UserID   `json:"from"`
	Offer json.RawMessage `json:"offer" validate:"required"`
}

type answerPayload struct {
	Type   string          `json:"type"`
	To     string          `json:"to" validate:"required"`
	From   domain.UserID   `json:"from"`
	Answer json.RawMessage `json:"answer" validate:"required"`
}

type candidatePayload struct {
	Type      string          `json:"type"`
	To        string          `json:"to" validate:"required"`
	From      domain.UserID   `json:"from"`
	Candidate json.RawMessage `json:"candidate" validate:"required"`
}

func (ctl *Controller) handleOffer(connID core.ConnID, data []byte) {
	var p offerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad offer payload")
		return
	}
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("invalid offer payload")
		return
	}
	ctl.relay(connID, "webrtc-offer", core.ConnID(p.To), p.From, "offer", p.Offer)
}

func (ctl *Controller) handleAnswer(connID core.ConnID, data []byte) {
	var p answerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad answer payload")
		return
	}
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("invalid answer payload")
		return
	}
	ctl.relay(connID, "webrtc-answer", core.ConnID(p.To), p.From, "answer", p.Answer)
}

func (ctl *Controller) handleCandidate(connID core.ConnID, data []byte) {
	var p candidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("invalid candidate payload")
		return
	}
	ctl.relay(connID, "webrtc-ice-candidate", core.ConnID(p.To), p.From, "candidate", p.Candidate)
}

// relay delivers a signaling payload to exactly one target connection.
// At-most-once: a target that is no longer live means a silent drop, the
// sender is never told. Targets resolve through the presence registry,
// which only holds joined connections; that covers every reachable id,
// since connection ids are advertised to peers exclusively through
// room-participants snapshots, never before a join.
func (ctl *Controller) relay(
	from core.ConnID,
	kind string,
	to core.ConnID,
	fromUser domain.UserID,
	field string,
	payload json.RawMessage,
) {
	target, ok := ctl.engine.Connection(to)
	if !ok {
		log.Debug().Str("module", "signal").Str("kind", kind).Str("to", string(to)).
			Msg("relay target gone, dropping")
		return
	}
	ctl.sendJSON(target, map[string]any{
		"type":       kind,
		"from":       from,
		"fromUserId": fromUser,
		field:        payload,
	})
}
