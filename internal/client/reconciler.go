package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/splitpot/api/internal/model"
	"github.com/splitpot/api/internal/wire"
)

// RefetchFunc asks the session to reload one entity collection from the
// server. The mirror calls it when a broadcast contradicts local state,
// which means a message was lost or applied out of order.
type RefetchFunc func(entity string)

// RunFunc executes a mirror mutation. UIs inject a function that marshals
// onto their event loop so bound widgets only ever see changes from one
// goroutine.
type RunFunc func(func())

// EventMirror is the local replica of one event: its participants, its
// expenses, and the event header itself. Broadcasts are applied
// incrementally; snapshots replace whole collections.
type EventMirror struct {
	mu sync.Mutex

	event        *model.Event
	participants []*model.Participant
	expenses     []*model.Expense

	refetch RefetchFunc
	run     RunFunc
	logger  *slog.Logger

	// Change hooks, fired after a mutation inside run. Nil hooks are
	// skipped.
	OnParticipantsChanged func()
	OnExpensesChanged     func()
	OnEventChanged        func()
	OnEventDeleted        func()
}

// NewEventMirror builds a mirror. refetch must not be nil; run defaults to
// direct execution.
func NewEventMirror(refetch RefetchFunc, run RunFunc, logger *slog.Logger) *EventMirror {
	if run == nil {
		run = func(f func()) { f() }
	}
	return &EventMirror{refetch: refetch, run: run, logger: logger}
}

// Event returns the mirrored event header, nil before the first snapshot.
func (m *EventMirror) Event() *model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.event
}

// Participants returns a copy of the mirrored participant list.
func (m *EventMirror) Participants() []*model.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Participant, len(m.participants))
	copy(out, m.participants)
	return out
}

// Expenses returns a copy of the mirrored expense list.
func (m *EventMirror) Expenses() []*model.Expense {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Expense, len(m.expenses))
	copy(out, m.expenses)
	return out
}

// SetSnapshot replaces the whole mirror with a full event snapshot.
func (m *EventMirror) SetSnapshot(ev *model.Event) {
	m.run(func() {
		m.mu.Lock()
		m.event = ev
		m.participants = ev.Participants
		m.expenses = ev.Expenses
		m.mu.Unlock()
		m.fire(m.OnEventChanged)
		m.fire(m.OnParticipantsChanged)
		m.fire(m.OnExpensesChanged)
	})
}

// SetParticipants replaces the participant collection.
func (m *EventMirror) SetParticipants(participants []*model.Participant) {
	m.run(func() {
		m.mu.Lock()
		m.participants = participants
		m.mu.Unlock()
		m.fire(m.OnParticipantsChanged)
	})
}

// SetExpenses replaces the expense collection.
func (m *EventMirror) SetExpenses(expenses []*model.Expense) {
	m.run(func() {
		m.mu.Lock()
		m.expenses = expenses
		m.mu.Unlock()
		m.fire(m.OnExpensesChanged)
	})
}

// Clear empties the mirror. Used on unsubscribe and on event deletion.
func (m *EventMirror) Clear() {
	m.run(func() {
		m.mu.Lock()
		m.event = nil
		m.participants = nil
		m.expenses = nil
		m.mu.Unlock()
		m.fire(m.OnEventChanged)
		m.fire(m.OnParticipantsChanged)
		m.fire(m.OnExpensesChanged)
	})
}

// Apply reconciles one broadcast into the mirror. Unknown entity/op pairs
// are an error; a payload that contradicts local state triggers a single
// refetch of the affected collection instead of being applied.
func (m *EventMirror) Apply(entity, op string, body json.RawMessage) error {
	switch entity + ":" + op {
	case wire.EntityParticipant + ":" + wire.OpCreate:
		return m.applyParticipant(op, body)
	case wire.EntityParticipant + ":" + wire.OpUpdate:
		return m.applyParticipant(op, body)
	case wire.EntityParticipant + ":" + wire.OpDelete:
		return m.applyParticipant(op, body)
	case wire.EntityExpense + ":" + wire.OpCreate:
		return m.applyExpense(op, body)
	case wire.EntityExpense + ":" + wire.OpUpdate:
		return m.applyExpense(op, body)
	case wire.EntityExpense + ":" + wire.OpDelete:
		return m.applyExpense(op, body)
	case wire.EntityInvolved + ":" + wire.OpUpdate:
		return m.applyInvolveds(body)
	case wire.EntityEvent + ":" + wire.OpUpdate:
		return m.applyEventUpdate(body)
	case wire.EntityEvent + ":" + wire.OpDelete:
		// The deletion hook runs on the injected executor like every
		// other mutation side effect, before the clear it announces.
		m.run(func() { m.fire(m.OnEventDeleted) })
		m.Clear()
		return nil
	default:
		return fmt.Errorf("unexpected broadcast %s:%s", entity, op)
	}
}

func (m *EventMirror) applyParticipant(op string, body json.RawMessage) error {
	var p model.Participant
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("decoding participant %s: %w", op, err)
	}

	m.run(func() {
		m.mu.Lock()
		idx := m.participantIndex(p.ID)

		switch op {
		case wire.OpCreate:
			if idx >= 0 {
				m.mu.Unlock()
				m.diverged(wire.EntityParticipant, "create for known id "+p.ID)
				return
			}
			m.participants = append(m.participants, &p)
			m.mu.Unlock()
			m.fire(m.OnParticipantsChanged)

		case wire.OpUpdate:
			if idx < 0 {
				m.mu.Unlock()
				m.diverged(wire.EntityParticipant, "update for unknown id "+p.ID)
				return
			}
			m.participants[idx].ApplyFrom(&p)
			m.mu.Unlock()
			m.fire(m.OnParticipantsChanged)

		case wire.OpDelete:
			if idx < 0 {
				m.mu.Unlock()
				m.diverged(wire.EntityParticipant, "delete for unknown id "+p.ID)
				return
			}
			m.participants = append(m.participants[:idx], m.participants[idx+1:]...)
			// Expenses paid by the removed participant die with them. The
			// server broadcasts only the participant deletion.
			kept := m.expenses[:0]
			for _, e := range m.expenses {
				if e.PayerID != p.ID {
					kept = append(kept, e)
				}
			}
			m.expenses = kept
			m.mu.Unlock()
			m.fire(m.OnParticipantsChanged)
			m.fire(m.OnExpensesChanged)
		}
	})
	return nil
}

func (m *EventMirror) applyExpense(op string, body json.RawMessage) error {
	var e model.Expense
	if err := json.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("decoding expense %s: %w", op, err)
	}

	m.run(func() {
		m.mu.Lock()
		idx := m.expenseIndex(e.ID)

		switch op {
		case wire.OpCreate:
			if idx >= 0 {
				m.mu.Unlock()
				m.diverged(wire.EntityExpense, "create for known id "+e.ID)
				return
			}
			m.expenses = append(m.expenses, &e)

		case wire.OpUpdate:
			if idx < 0 {
				m.mu.Unlock()
				m.diverged(wire.EntityExpense, "update for unknown id "+e.ID)
				return
			}
			m.expenses[idx].ApplyFrom(&e)

		case wire.OpDelete:
			if idx < 0 {
				m.mu.Unlock()
				m.diverged(wire.EntityExpense, "delete for unknown id "+e.ID)
				return
			}
			m.expenses = append(m.expenses[:idx], m.expenses[idx+1:]...)
		}
		m.mu.Unlock()
		m.fire(m.OnExpensesChanged)
	})
	return nil
}

func (m *EventMirror) applyInvolveds(body json.RawMessage) error {
	var involveds []*model.Involved
	if err := json.Unmarshal(body, &involveds); err != nil {
		return fmt.Errorf("decoding involved update: %w", err)
	}
	if len(involveds) == 0 {
		return nil
	}

	// Regroup the flat batch by owning expense before touching the mirror.
	byExpense := make(map[string][]*model.Involved)
	for _, inv := range involveds {
		byExpense[inv.ExpenseID] = append(byExpense[inv.ExpenseID], inv)
	}

	m.run(func() {
		m.mu.Lock()
		for expenseID, batch := range byExpense {
			idx := m.expenseIndex(expenseID)
			if idx < 0 {
				m.mu.Unlock()
				m.diverged(wire.EntityInvolved, "update for unknown expense "+expenseID)
				return
			}
			m.expenses[idx].Involveds = batch
		}
		m.mu.Unlock()
		m.fire(m.OnExpensesChanged)
	})
	return nil
}

func (m *EventMirror) applyEventUpdate(body json.RawMessage) error {
	var ev model.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decoding event update: %w", err)
	}

	m.run(func() {
		m.mu.Lock()
		if m.event == nil {
			m.mu.Unlock()
			m.diverged(wire.EntityEvent, "update before snapshot")
			return
		}
		m.event.Title = ev.Title
		m.event.Touch(ev.LastActivity)
		m.mu.Unlock()
		m.fire(m.OnEventChanged)
	})
	return nil
}

// diverged logs the contradiction and asks the session to reload the
// affected collection. Called without the lock held.
func (m *EventMirror) diverged(entity, detail string) {
	m.logger.Warn("mirror diverged, refetching", "entity", entity, "detail", detail)
	m.refetch(entity)
}

func (m *EventMirror) fire(hook func()) {
	if hook != nil {
		hook()
	}
}

func (m *EventMirror) participantIndex(id string) int {
	for i, p := range m.participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (m *EventMirror) expenseIndex(id string) int {
	for i, e := range m.expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// AdminMirror replicates the server's event catalogue for an admin session.
// It only tracks event headers; drilling into one event goes through a dump
// command.
type AdminMirror struct {
	mu     sync.Mutex
	events []*model.Event

	refetch RefetchFunc
	run     RunFunc
	logger  *slog.Logger

	OnEventsChanged func()
}

// NewAdminMirror builds an admin catalogue mirror.
func NewAdminMirror(refetch RefetchFunc, run RunFunc, logger *slog.Logger) *AdminMirror {
	if run == nil {
		run = func(f func()) { f() }
	}
	return &AdminMirror{refetch: refetch, run: run, logger: logger}
}

// Events returns a copy of the mirrored catalogue.
func (m *AdminMirror) Events() []*model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Event, len(m.events))
	copy(out, m.events)
	return out
}

// SetEvents replaces the catalogue, normally from an "admin/events:read"
// reply.
func (m *AdminMirror) SetEvents(events []*model.Event) {
	m.run(func() {
		m.mu.Lock()
		m.events = events
		m.mu.Unlock()
		m.fire()
	})
}

// Clear empties the catalogue on admin unsubscribe.
func (m *AdminMirror) Clear() {
	m.SetEvents(nil)
}

// Apply reconciles one admin broadcast. Event deletions carry the bare
// invitation code; creates and updates carry the event header.
func (m *AdminMirror) Apply(op string, body json.RawMessage) error {
	if op == wire.OpDelete {
		var code string
		if err := json.Unmarshal(body, &code); err != nil {
			return fmt.Errorf("decoding admin event delete: %w", err)
		}
		m.run(func() {
			m.mu.Lock()
			idx := m.index(code)
			if idx < 0 {
				m.mu.Unlock()
				m.diverged("delete for unknown code " + code)
				return
			}
			m.events = append(m.events[:idx], m.events[idx+1:]...)
			m.mu.Unlock()
			m.fire()
		})
		return nil
	}

	var ev model.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decoding admin event %s: %w", op, err)
	}

	m.run(func() {
		m.mu.Lock()
		idx := m.index(ev.InvitationCode)

		switch op {
		case wire.OpCreate:
			if idx >= 0 {
				m.mu.Unlock()
				m.diverged("create for known code " + ev.InvitationCode)
				return
			}
			m.events = append(m.events, &ev)

		case wire.OpUpdate:
			if idx < 0 {
				m.mu.Unlock()
				m.diverged("update for unknown code " + ev.InvitationCode)
				return
			}
			m.events[idx].Title = ev.Title
			m.events[idx].Touch(ev.LastActivity)

		default:
			m.mu.Unlock()
			m.logger.Warn("unexpected admin broadcast", "op", op)
			return
		}
		m.mu.Unlock()
		m.fire()
	})
	return nil
}

func (m *AdminMirror) diverged(detail string) {
	m.logger.Warn("admin mirror diverged, refetching", "detail", detail)
	m.refetch(wire.EntityEvent)
}

func (m *AdminMirror) fire() {
	if m.OnEventsChanged != nil {
		m.OnEventsChanged()
	}
}

func (m *AdminMirror) index(code string) int {
	for i, ev := range m.events {
		if ev.InvitationCode == code {
			return i
		}
	}
	return -1
}
