package service

import (
	"context"
	"encoding/json"

	"github.com/splitpot/api/internal/model"
	"github.com/splitpot/api/internal/wire"
)

// handleInvolvedUpdate applies a batch of involved-record updates,
// typically settle-flag flips for one expense. Both referenced entities of
// every record are checked before anything is written, so a bad record
// rejects the whole batch.
func (s *SyncService) handleInvolvedUpdate(ctx context.Context, body json.RawMessage) *model.StatusEntity {
	var involveds []*model.Involved
	if err := decodeStrict(body, &involveds); err != nil {
		return model.BadRequest("payload should be an involved list", true)
	}
	if len(involveds) == 0 {
		return model.BadRequest("involved list is empty", false)
	}

	code := involveds[0].InvitationCode
	if code == "" {
		return model.BadRequest("invitation code is required", false)
	}

	for _, inv := range involveds {
		if inv.ID == "" {
			return model.BadRequest("involved id is required", false)
		}
		expenseExists, err := s.expenses.Exists(ctx, inv.ExpenseID)
		if err != nil {
			return s.internalFailure(wire.CmdInvolvedUpdate, err)
		}
		if !expenseExists {
			return model.NotFound("expense not found")
		}
		participantExists, err := s.participants.Exists(ctx, inv.ParticipantID)
		if err != nil {
			return s.internalFailure(wire.CmdInvolvedUpdate, err)
		}
		if !participantExists {
			return model.NotFound("participant not found")
		}
	}

	for _, inv := range involveds {
		if err := s.involveds.Save(ctx, inv); err != nil {
			return s.internalFailure(wire.CmdInvolvedUpdate, err)
		}
	}

	s.broadcast(wire.EventTopic(code, wire.EntityInvolved, wire.OpUpdate), involveds)
	s.bump(code)
	return model.Ok(wire.CmdInvolvedUpdate + " " + involveds[0].ExpenseID)
}
