package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/splitpot/api/internal/model"
	"github.com/splitpot/api/internal/wire"
)

// handleAdminEventsRead answers "admin/events:read" with every stored
// event. The passcode was already checked by the dispatcher.
func (s *SyncService) handleAdminEventsRead(ctx context.Context, _ json.RawMessage) *model.StatusEntity {
	events, err := s.events.GetAll(ctx)
	if err != nil {
		return s.internalFailure(wire.CmdAdminEventsRead, err)
	}
	return model.OkEventList(events)
}

// handleAdminDump answers "admin/event:dump" with one event's full subtree,
// suitable for writing to a file and importing later.
func (s *SyncService) handleAdminDump(ctx context.Context, body json.RawMessage) *model.StatusEntity {
	code, ok := decodeCode(body)
	if !ok {
		return model.BadRequest("payload should be an invitation code", true)
	}

	ev, err := s.events.Get(ctx, code)
	if err != nil {
		return s.internalFailure(wire.CmdAdminDump, err)
	}
	if ev == nil {
		return model.NotFound("event not found")
	}

	if ev.Participants, err = s.participants.GetByEvent(ctx, code); err != nil {
		return s.internalFailure(wire.CmdAdminDump, err)
	}
	if ev.Expenses, err = s.loadExpenses(ctx, code); err != nil {
		return s.internalFailure(wire.CmdAdminDump, err)
	}
	return model.OkEvent(ev)
}

// handleAdminImport replaces an event's whole subtree with an imported one.
// Identifiers from the imported graph are remapped onto fresh ones in
// dependency order: participants, then expenses, then involved-records.
// Every statement runs in one batch transaction, so a half-imported event
// can never be observed.
func (s *SyncService) handleAdminImport(ctx context.Context, body json.RawMessage) *model.StatusEntity {
	var ev model.Event
	if err := decodeStrict(body, &ev); err != nil {
		return model.BadRequest("payload should be an event", true)
	}
	if ev.InvitationCode == "" {
		return model.BadRequest("invitation code is required", false)
	}
	if ev.Title == "" {
		return model.BadRequest("title is required", false)
	}

	code := ev.InvitationCode
	existed, err := s.events.Exists(ctx, code)
	if err != nil {
		return s.internalFailure(wire.CmdAdminImport, err)
	}

	// Remap before touching the store so reference errors reject the
	// import without a partial write.
	participantIDs := make(map[string]string, len(ev.Participants))
	for _, p := range ev.Participants {
		newID := s.newID()
		participantIDs[p.ID] = newID
		p.ID = newID
		p.InvitationCode = code
	}
	for _, e := range ev.Expenses {
		payerID, ok := participantIDs[e.PayerID]
		if !ok {
			return model.NotFound("payer not found in imported event")
		}
		e.ID = s.newID()
		e.PayerID = payerID
		e.InvitationCode = code
		for _, inv := range e.Involveds {
			participantID, ok := participantIDs[inv.ParticipantID]
			if !ok {
				return model.NotFound("involved participant not found in imported event")
			}
			inv.ID = s.newID()
			inv.ExpenseID = e.ID
			inv.ParticipantID = participantID
			inv.InvitationCode = code
		}
	}

	now := s.now()
	if ev.CreatedOn.IsZero() {
		ev.CreatedOn = now
	}
	ev.LastActivity = now

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return s.internalFailure(wire.CmdAdminImport, err)
	}

	if err := s.stageImport(ctx, tx, &ev, existed); err != nil {
		tx.Rollback()
		return s.internalFailure(wire.CmdAdminImport, err)
	}
	if err := tx.Commit(); err != nil {
		return s.internalFailure(wire.CmdAdminImport, err)
	}

	op := wire.OpCreate
	if existed {
		op = wire.OpUpdate
	}
	s.broadcast(wire.AdminTopic(wire.EntityEvent, op), &ev)
	s.updates.Notify(code, &ev)
	return model.Ok(wire.CmdAdminImport + " " + code)
}

// stageImport queues the delete-then-reinsert statements for one event
// subtree. Variable names carry a per-statement prefix because the batch
// transaction merges all bindings into one set.
func (s *SyncService) stageImport(ctx context.Context, tx txExecutor, ev *model.Event, existed bool) error {
	code := ev.InvitationCode
	purge := map[string]interface{}{"purge_code": code}

	for _, table := range []string{"involved", "expense", "participant"} {
		query := fmt.Sprintf(`DELETE FROM %s WHERE invitation_code = $purge_code`, table)
		if err := tx.Execute(ctx, query, purge); err != nil {
			return err
		}
	}

	eventVars := map[string]interface{}{
		"ev_title":   ev.Title,
		"ev_created": ev.CreatedOn,
		"ev_last":    ev.LastActivity,
	}
	var eventQuery string
	if existed {
		eventQuery = `UPDATE event SET title = $ev_title, last_activity = $ev_last WHERE invitation_code = $purge_code`
	} else {
		eventQuery = `CREATE event SET invitation_code = $purge_code, title = $ev_title, created_on = $ev_created, last_activity = $ev_last`
	}
	if err := tx.Execute(ctx, eventQuery, eventVars); err != nil {
		return err
	}

	for i, p := range ev.Participants {
		prefix := fmt.Sprintf("p%d_", i)
		query := fmt.Sprintf(`CREATE participant SET participant_id = $%[1]sid, invitation_code = $purge_code, first_name = $%[1]sfirst, last_name = $%[1]slast, email = $%[1]semail, iban = $%[1]siban, bic = $%[1]sbic`, prefix)
		vars := map[string]interface{}{
			prefix + "id":    p.ID,
			prefix + "first": p.FirstName,
			prefix + "last":  p.LastName,
			prefix + "email": p.Email,
			prefix + "iban":  p.IBAN,
			prefix + "bic":   p.BIC,
		}
		if err := tx.Execute(ctx, query, vars); err != nil {
			return err
		}
	}

	for i, e := range ev.Expenses {
		prefix := fmt.Sprintf("e%d_", i)
		query := fmt.Sprintf(`CREATE expense SET expense_id = $%[1]sid, invitation_code = $purge_code, payer_id = $%[1]spayer, title = $%[1]stitle, amount = $%[1]samount, date = $%[1]sdate`, prefix)
		vars := map[string]interface{}{
			prefix + "id":     e.ID,
			prefix + "payer":  e.PayerID,
			prefix + "title":  e.Title,
			prefix + "amount": e.Amount,
			prefix + "date":   e.Date,
		}
		if err := tx.Execute(ctx, query, vars); err != nil {
			return err
		}

		for j, inv := range e.Involveds {
			invPrefix := fmt.Sprintf("e%di%d_", i, j)
			invQuery := fmt.Sprintf(`CREATE involved SET involved_id = $%[1]sid, expense_id = $%[1]sexpense, participant_id = $%[1]sparticipant, settled = $%[1]ssettled, invitation_code = $purge_code`, invPrefix)
			invVars := map[string]interface{}{
				invPrefix + "id":          inv.ID,
				invPrefix + "expense":     inv.ExpenseID,
				invPrefix + "participant": inv.ParticipantID,
				invPrefix + "settled":     inv.Settled,
			}
			if err := tx.Execute(ctx, invQuery, invVars); err != nil {
				return err
			}
		}
	}
	return nil
}

// txExecutor is the slice of database.Transaction stageImport needs.
type txExecutor interface {
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
}
