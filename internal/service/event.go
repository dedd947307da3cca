package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"fmt"

	"github.com/splitpot/api/internal/model"
	"github.com/splitpot/api/internal/wire"
)

// invitationCodeLength is the public event identifier length. Codes are
// upper-case base32, safe to read out loud.
const invitationCodeLength = 6

// handleEventRead answers "event:read". The body is a bare invitation code.
func (s *SyncService) handleEventRead(ctx context.Context, body json.RawMessage) *model.StatusEntity {
	code, ok := decodeCode(body)
	if !ok {
		return model.BadRequest("payload should be an invitation code", true)
	}

	ev, err := s.events.Get(ctx, code)
	if err != nil {
		return s.internalFailure(wire.CmdEventRead, err)
	}
	if ev == nil {
		return model.NotFound("event not found")
	}

	if ev.Participants, err = s.participants.GetByEvent(ctx, code); err != nil {
		return s.internalFailure(wire.CmdEventRead, err)
	}
	if ev.Expenses, err = s.loadExpenses(ctx, code); err != nil {
		return s.internalFailure(wire.CmdEventRead, err)
	}
	return model.OkEvent(ev)
}

// handleParticipantsRead answers "participants:read" with the full
// participant collection of one event.
func (s *SyncService) handleParticipantsRead(ctx context.Context, body json.RawMessage) *model.StatusEntity {
	code, ok := decodeCode(body)
	if !ok {
		return model.BadRequest("payload should be an invitation code", true)
	}

	exists, err := s.events.Exists(ctx, code)
	if err != nil {
		return s.internalFailure(wire.CmdParticipantsRead, err)
	}
	if !exists {
		return model.NotFound("event not found")
	}

	participants, err := s.participants.GetByEvent(ctx, code)
	if err != nil {
		return s.internalFailure(wire.CmdParticipantsRead, err)
	}
	return model.OkParticipantList(participants)
}

// handleExpensesRead answers "expenses:read" with the full expense
// collection of one event, involved-records attached.
func (s *SyncService) handleExpensesRead(ctx context.Context, body json.RawMessage) *model.StatusEntity {
	code, ok := decodeCode(body)
	if !ok {
		return model.BadRequest("payload should be an invitation code", true)
	}

	exists, err := s.events.Exists(ctx, code)
	if err != nil {
		return s.internalFailure(wire.CmdExpensesRead, err)
	}
	if !exists {
		return model.NotFound("event not found")
	}

	expenses, err := s.loadExpenses(ctx, code)
	if err != nil {
		return s.internalFailure(wire.CmdExpensesRead, err)
	}
	return model.OkExpenseList(expenses)
}

// loadExpenses fetches an event's expenses with their involved-records.
func (s *SyncService) loadExpenses(ctx context.Context, code string) ([]*model.Expense, error) {
	expenses, err := s.expenses.GetByEvent(ctx, code)
	if err != nil {
		return nil, err
	}
	for _, e := range expenses {
		if e.Involveds, err = s.involveds.GetByExpense(ctx, e.ID); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

// decodeCode extracts a bare invitation code payload.
func decodeCode(body json.RawMessage) (string, bool) {
	var code string
	if err := json.Unmarshal(body, &code); err != nil || code == "" {
		return "", false
	}
	return code, true
}

// CreateEvent creates an event from a title, generating its invitation
// code. Backs POST /events.
func (s *SyncService) CreateEvent(ctx context.Context, title string) (*model.Event, error) {
	if title == "" {
		return nil, ErrTitleRequired
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ev := &model.Event{
		InvitationCode: code,
		Title:          title,
		CreatedOn:      now,
		LastActivity:   now,
	}
	if err := s.events.Save(ctx, ev); err != nil {
		return nil, fmt.Errorf("save event: %w", err)
	}

	s.broadcast(wire.AdminTopic(wire.EntityEvent, wire.OpCreate), ev)
	return ev, nil
}

// GetEventTitles resolves invitation codes to titles for the batch title
// refresh. Unknown codes are silently omitted.
func (s *SyncService) GetEventTitles(ctx context.Context, codes []string) ([]*model.EventTitle, error) {
	events, err := s.events.GetByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	titles := make([]*model.EventTitle, 0, len(events))
	for _, ev := range events {
		titles = append(titles, &model.EventTitle{
			InvitationCode: ev.InvitationCode,
			Title:          ev.Title,
		})
	}
	return titles, nil
}

// UpdateEvent renames an event. Backs PUT /events/{code}.
func (s *SyncService) UpdateEvent(ctx context.Context, code, title string) (*model.Event, error) {
	if title == "" {
		return nil, ErrTitleRequired
	}

	ev, err := s.events.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}

	ev.Title = title
	ev.Touch(s.now())
	if err := s.events.Save(ctx, ev); err != nil {
		return nil, fmt.Errorf("save event: %w", err)
	}

	s.broadcast(wire.EventTopic(code, wire.EntityEvent, wire.OpUpdate), ev)
	s.broadcast(wire.AdminTopic(wire.EntityEvent, wire.OpUpdate), ev)
	s.updates.Notify(code, ev)
	return ev, nil
}

// DeleteEvent destroys an event and everything inside it. Backs
// DELETE /events/{code}. The event-delete broadcast is authoritative:
// clients clear their whole mirror without a divergence check.
func (s *SyncService) DeleteEvent(ctx context.Context, code string) error {
	exists, err := s.events.Exists(ctx, code)
	if err != nil {
		return err
	}
	if !exists {
		return ErrEventNotFound
	}

	if err := s.involveds.DeleteByEvent(ctx, code); err != nil {
		return fmt.Errorf("delete involveds: %w", err)
	}
	if err := s.expenses.DeleteByEvent(ctx, code); err != nil {
		return fmt.Errorf("delete expenses: %w", err)
	}
	if err := s.participants.DeleteByEvent(ctx, code); err != nil {
		return fmt.Errorf("delete participants: %w", err)
	}
	if err := s.events.Delete(ctx, code); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	s.broadcast(wire.EventTopic(code, wire.EntityEvent, wire.OpDelete), code)
	s.broadcast(wire.AdminTopic(wire.EntityEvent, wire.OpDelete), code)
	return nil
}

// AwaitUpdates parks the caller until one of the codes sees activity or
// the long-poll timeout elapses. Backs GET /events/updates.
func (s *SyncService) AwaitUpdates(ctx context.Context, codes []string) (*model.Event, bool) {
	return s.updates.Await(ctx, codes, s.longPoll)
}

// InitClient hands a fresh client its identity. Backs POST /init_client.
func (s *SyncService) InitClient(_ *model.InitClientRequest) *model.InitClientResponse {
	return &model.InitClientResponse{
		ClientID:   s.newID(),
		ServerTime: s.now(),
	}
}

// generateCode draws random invitation codes until one is unused.
func (s *SyncService) generateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		raw := make([]byte, 5)
		if _, err := rand.Read(raw); err != nil {
			return "", fmt.Errorf("generate invitation code: %w", err)
		}
		code := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)[:invitationCodeLength]

		exists, err := s.events.Exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeGeneration
}
