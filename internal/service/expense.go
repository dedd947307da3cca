package service

import (
	"context"
	"encoding/json"

	"github.com/splitpot/api/internal/model"
	"github.com/splitpot/api/internal/wire"
)

// validateExpense runs the shared field checks. Field problems are
// solvable, the user can correct the form and resubmit.
func validateExpense(e *model.Expense) *model.StatusEntity {
	if e.Title == "" {
		return model.BadRequest("title is required", false)
	}
	if e.PayerID == "" {
		return model.BadRequest("payer is required", false)
	}
	if e.Amount <= 0 {
		return model.BadRequest("Amount should be positive", false)
	}
	return nil
}

// handleExpenseCreate validates and stores a new expense together with its
// involved-records, then broadcasts the canonical entity.
func (s *SyncService) handleExpenseCreate(ctx context.Context, body json.RawMessage) *model.StatusEntity {
	var e model.Expense
	if err := decodeStrict(body, &e); err != nil {
		return model.BadRequest("payload should be an expense", true)
	}

	if status := validateExpense(&e); status != nil {
		return status
	}
	if e.InvitationCode == "" {
		return model.BadRequest("invitation code is required", false)
	}

	exists, err := s.events.Exists(ctx, e.InvitationCode)
	if err != nil {
		return s.internalFailure(wire.CmdExpenseCreate, err)
	}
	if !exists {
		return model.NotFound("event not found")
	}

	payerExists, err := s.participants.Exists(ctx, e.PayerID)
	if err != nil {
		return s.internalFailure(wire.CmdExpenseCreate, err)
	}
	if !payerExists {
		return model.NotFound("payer not found")
	}

	for _, inv := range e.Involveds {
		ok, err := s.participants.Exists(ctx, inv.ParticipantID)
		if err != nil {
			return s.internalFailure(wire.CmdExpenseCreate, err)
		}
		if !ok {
			return model.NotFound("involved participant not found")
		}
	}

	e.ID = s.newID()
	if err := s.expenses.Save(ctx, &e); err != nil {
		return s.internalFailure(wire.CmdExpenseCreate, err)
	}
	for _, inv := range e.Involveds {
		inv.ID = s.newID()
		inv.ExpenseID = e.ID
		inv.InvitationCode = e.InvitationCode
		if err := s.involveds.Save(ctx, inv); err != nil {
			return s.internalFailure(wire.CmdExpenseCreate, err)
		}
	}

	s.broadcast(wire.EventTopic(e.InvitationCode, wire.EntityExpense, wire.OpCreate), &e)
	s.bump(e.InvitationCode)
	return model.Ok(wire.CmdExpenseCreate + " " + e.ID)
}

// handleExpenseUpdate overwrites a stored expense's mutable fields and
// replaces its involved-records when the payload carries any.
func (s *SyncService) handleExpenseUpdate(ctx context.Context, body json.RawMessage) *model.StatusEntity {
	var e model.Expense
	if err := decodeStrict(body, &e); err != nil {
		return model.BadRequest("payload should be an expense", true)
	}

	if status := validateExpense(&e); status != nil {
		return status
	}

	stored, err := s.expenses.Get(ctx, e.ID)
	if err != nil {
		return s.internalFailure(wire.CmdExpenseUpdate, err)
	}
	if stored == nil {
		return model.NotFound("expense not found")
	}

	payerExists, err := s.participants.Exists(ctx, e.PayerID)
	if err != nil {
		return s.internalFailure(wire.CmdExpenseUpdate, err)
	}
	if !payerExists {
		return model.NotFound("payer not found")
	}

	stored.ApplyFrom(&e)
	if err := s.expenses.Save(ctx, stored); err != nil {
		return s.internalFailure(wire.CmdExpenseUpdate, err)
	}

	if e.Involveds != nil {
		if err := s.involveds.DeleteByExpense(ctx, stored.ID); err != nil {
			return s.internalFailure(wire.CmdExpenseUpdate, err)
		}
		for _, inv := range stored.Involveds {
			inv.ID = s.newID()
			inv.ExpenseID = stored.ID
			inv.InvitationCode = stored.InvitationCode
			if err := s.involveds.Save(ctx, inv); err != nil {
				return s.internalFailure(wire.CmdExpenseUpdate, err)
			}
		}
	} else {
		// ApplyFrom nilled the involved slice. The stored records are
		// untouched, and the broadcast must carry the canonical entity,
		// so reload them.
		if stored.Involveds, err = s.involveds.GetByExpense(ctx, stored.ID); err != nil {
			return s.internalFailure(wire.CmdExpenseUpdate, err)
		}
	}

	s.broadcast(wire.EventTopic(stored.InvitationCode, wire.EntityExpense, wire.OpUpdate), stored)
	s.bump(stored.InvitationCode)
	return model.Ok(wire.CmdExpenseUpdate + " " + stored.ID)
}

// handleExpenseDelete removes an expense and its involved-records.
func (s *SyncService) handleExpenseDelete(ctx context.Context, body json.RawMessage) *model.StatusEntity {
	var e model.Expense
	if err := decodeStrict(body, &e); err != nil {
		return model.BadRequest("payload should be an expense", true)
	}

	stored, err := s.expenses.Get(ctx, e.ID)
	if err != nil {
		return s.internalFailure(wire.CmdExpenseDelete, err)
	}
	if stored == nil {
		return model.NotFound("expense not found")
	}

	if err := s.involveds.DeleteByExpense(ctx, stored.ID); err != nil {
		return s.internalFailure(wire.CmdExpenseDelete, err)
	}
	if err := s.expenses.Delete(ctx, stored.ID); err != nil {
		return s.internalFailure(wire.CmdExpenseDelete, err)
	}

	s.broadcast(wire.EventTopic(stored.InvitationCode, wire.EntityExpense, wire.OpDelete), stored)
	s.bump(stored.InvitationCode)
	return model.Ok(wire.CmdExpenseDelete + " " + stored.ID)
}
