package service

import (
	"context"
	"encoding/json"

	"github.com/splitpot/api/internal/model"
	"github.com/splitpot/api/internal/wire"
)

// handleParticipantCreate validates and stores a new participant, then
// broadcasts it on the event's participant-create topic.
func (s *SyncService) handleParticipantCreate(ctx context.Context, body json.RawMessage) *model.StatusEntity {
	var p model.Participant
	if err := decodeStrict(body, &p); err != nil {
		return model.BadRequest("payload should be a participant", true)
	}

	if p.FirstName == "" || p.LastName == "" {
		return model.BadRequest("first and last name are required", false)
	}
	if p.InvitationCode == "" {
		return model.BadRequest("invitation code is required", false)
	}

	exists, err := s.events.Exists(ctx, p.InvitationCode)
	if err != nil {
		return s.internalFailure(wire.CmdParticipantCreate, err)
	}
	if !exists {
		return model.NotFound("event not found")
	}

	p.ID = s.newID()
	if err := s.participants.Save(ctx, &p); err != nil {
		return s.internalFailure(wire.CmdParticipantCreate, err)
	}

	s.broadcast(wire.EventTopic(p.InvitationCode, wire.EntityParticipant, wire.OpCreate), &p)
	s.bump(p.InvitationCode)
	return model.Ok(wire.CmdParticipantCreate + " " + p.ID)
}

// handleParticipantUpdate overwrites a stored participant's mutable fields.
// The owning event never changes.
func (s *SyncService) handleParticipantUpdate(ctx context.Context, body json.RawMessage) *model.StatusEntity {
	var p model.Participant
	if err := decodeStrict(body, &p); err != nil {
		return model.BadRequest("payload should be a participant", true)
	}

	if p.FirstName == "" || p.LastName == "" {
		return model.BadRequest("first and last name are required", false)
	}

	stored, err := s.participants.Get(ctx, p.ID)
	if err != nil {
		return s.internalFailure(wire.CmdParticipantUpdate, err)
	}
	if stored == nil {
		return model.NotFound("participant not found")
	}

	stored.ApplyFrom(&p)
	if err := s.participants.Save(ctx, stored); err != nil {
		return s.internalFailure(wire.CmdParticipantUpdate, err)
	}

	s.broadcast(wire.EventTopic(stored.InvitationCode, wire.EntityParticipant, wire.OpUpdate), stored)
	s.bump(stored.InvitationCode)
	return model.Ok(wire.CmdParticipantUpdate + " " + stored.ID)
}

// handleParticipantDelete removes a participant and every expense they
// paid. Clients cascade the expense removal locally from the participant
// broadcast alone.
func (s *SyncService) handleParticipantDelete(ctx context.Context, body json.RawMessage) *model.StatusEntity {
	var p model.Participant
	if err := decodeStrict(body, &p); err != nil {
		return model.BadRequest("payload should be a participant", true)
	}

	stored, err := s.participants.Get(ctx, p.ID)
	if err != nil {
		return s.internalFailure(wire.CmdParticipantDelete, err)
	}
	if stored == nil {
		return model.NotFound("participant not found")
	}

	paid, err := s.expenses.GetByPayer(ctx, stored.ID)
	if err != nil {
		return s.internalFailure(wire.CmdParticipantDelete, err)
	}
	for _, e := range paid {
		if err := s.involveds.DeleteByExpense(ctx, e.ID); err != nil {
			return s.internalFailure(wire.CmdParticipantDelete, err)
		}
	}
	if err := s.expenses.DeleteByPayer(ctx, stored.ID); err != nil {
		return s.internalFailure(wire.CmdParticipantDelete, err)
	}
	if err := s.participants.Delete(ctx, stored.ID); err != nil {
		return s.internalFailure(wire.CmdParticipantDelete, err)
	}

	s.broadcast(wire.EventTopic(stored.InvitationCode, wire.EntityParticipant, wire.OpDelete), stored)
	s.bump(stored.InvitationCode)
	return model.Ok(wire.CmdParticipantDelete + " " + stored.ID)
}
