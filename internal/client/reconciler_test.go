package client

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/splitpot/api/internal/model"
	"github.com/splitpot/api/internal/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func encode(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func snapshotMirror(t *testing.T, refetched *[]string) *EventMirror {
	t.Helper()
	m := NewEventMirror(func(entity string) {
		*refetched = append(*refetched, entity)
	}, nil, testLogger())
	m.SetSnapshot(&model.Event{
		InvitationCode: "ABC123",
		Title:          "Ski Trip",
		Participants: []*model.Participant{
			{ID: "p1", InvitationCode: "ABC123", FirstName: "John"},
			{ID: "p2", InvitationCode: "ABC123", FirstName: "Jane"},
		},
		Expenses: []*model.Expense{
			{ID: "e1", InvitationCode: "ABC123", PayerID: "p1", Title: "Lift tickets", Amount: 90},
			{ID: "e2", InvitationCode: "ABC123", PayerID: "p2", Title: "Dinner", Amount: 60},
		},
	})
	return m
}

func TestParticipantUpdateIsIdempotent(t *testing.T) {
	var refetched []string
	m := snapshotMirror(t, &refetched)

	update := encode(t, &model.Participant{ID: "p1", InvitationCode: "ABC123", FirstName: "Johnny"})
	for i := 0; i < 2; i++ {
		if err := m.Apply(wire.EntityParticipant, wire.OpUpdate, update); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	participants := m.Participants()
	if len(participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(participants))
	}
	if participants[0].FirstName != "Johnny" {
		t.Errorf("update not applied: %q", participants[0].FirstName)
	}
	if len(refetched) != 0 {
		t.Errorf("no refetch expected, got %v", refetched)
	}
}

func TestParticipantUpdatePreservesIdentity(t *testing.T) {
	var refetched []string
	m := snapshotMirror(t, &refetched)
	before := m.Participants()[0]

	update := encode(t, &model.Participant{ID: "p1", FirstName: "Johnny", LastName: "Doe"})
	if err := m.Apply(wire.EntityParticipant, wire.OpUpdate, update); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// UI bindings hold the pointer; updates must mutate in place.
	if m.Participants()[0] != before {
		t.Error("update replaced the participant instead of mutating it")
	}
}

func TestDuplicateCreateTriggersSingleRefetch(t *testing.T) {
	var refetched []string
	m := snapshotMirror(t, &refetched)

	create := encode(t, &model.Participant{ID: "p1", InvitationCode: "ABC123", FirstName: "John"})
	if err := m.Apply(wire.EntityParticipant, wire.OpCreate, create); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(m.Participants()) != 2 {
		t.Errorf("duplicate must not be appended, got %d participants", len(m.Participants()))
	}
	if len(refetched) != 1 || refetched[0] != wire.EntityParticipant {
		t.Errorf("expected one participant refetch, got %v", refetched)
	}
}

func TestUpdateForUnknownExpenseRefetches(t *testing.T) {
	var refetched []string
	m := snapshotMirror(t, &refetched)

	update := encode(t, &model.Expense{ID: "ghost", Title: "Phantom", Amount: 1})
	if err := m.Apply(wire.EntityExpense, wire.OpUpdate, update); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(refetched) != 1 || refetched[0] != wire.EntityExpense {
		t.Errorf("expected one expense refetch, got %v", refetched)
	}
	if len(m.Expenses()) != 2 {
		t.Errorf("mirror must be untouched, got %d expenses", len(m.Expenses()))
	}
}

func TestParticipantDeleteCascadesPaidExpenses(t *testing.T) {
	var refetched []string
	m := snapshotMirror(t, &refetched)

	var participantsFired, expensesFired int
	m.OnParticipantsChanged = func() { participantsFired++ }
	m.OnExpensesChanged = func() { expensesFired++ }

	del := encode(t, &model.Participant{ID: "p1"})
	if err := m.Apply(wire.EntityParticipant, wire.OpDelete, del); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(m.Participants()) != 1 || m.Participants()[0].ID != "p2" {
		t.Errorf("participant not removed: %+v", m.Participants())
	}
	expenses := m.Expenses()
	if len(expenses) != 1 || expenses[0].ID != "e2" {
		t.Errorf("expenses paid by p1 must cascade, got %+v", expenses)
	}
	if participantsFired != 1 || expensesFired != 1 {
		t.Errorf("each hook must fire exactly once, got %d/%d", participantsFired, expensesFired)
	}
	if len(refetched) != 0 {
		t.Errorf("no refetch expected, got %v", refetched)
	}
}

func TestInvolvedUpdateReplacesBatch(t *testing.T) {
	var refetched []string
	m := snapshotMirror(t, &refetched)

	batch := []*model.Involved{
		{ID: "i1", ExpenseID: "e1", ParticipantID: "p1", Settled: true, InvitationCode: "ABC123"},
		{ID: "i2", ExpenseID: "e1", ParticipantID: "p2", InvitationCode: "ABC123"},
	}
	if err := m.Apply(wire.EntityInvolved, wire.OpUpdate, encode(t, batch)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	expenses := m.Expenses()
	if len(expenses[0].Involveds) != 2 {
		t.Fatalf("expected 2 involveds on e1, got %d", len(expenses[0].Involveds))
	}
	if !expenses[0].Involveds[0].Settled {
		t.Error("settled flag lost")
	}
}

func TestInvolvedUpdateForUnknownExpenseRefetches(t *testing.T) {
	var refetched []string
	m := snapshotMirror(t, &refetched)

	batch := []*model.Involved{{ID: "i1", ExpenseID: "ghost", ParticipantID: "p1"}}
	if err := m.Apply(wire.EntityInvolved, wire.OpUpdate, encode(t, batch)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(refetched) != 1 || refetched[0] != wire.EntityInvolved {
		t.Errorf("expected one involved refetch, got %v", refetched)
	}
}

func TestEventUpdateKeepsActivityMonotonic(t *testing.T) {
	var refetched []string
	m := snapshotMirror(t, &refetched)

	later := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	update := encode(t, &model.Event{InvitationCode: "ABC123", Title: "Ski Trip 2025", LastActivity: later})
	if err := m.Apply(wire.EntityEvent, wire.OpUpdate, update); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if m.Event().Title != "Ski Trip 2025" {
		t.Errorf("title not applied: %q", m.Event().Title)
	}
	if !m.Event().LastActivity.Equal(later) {
		t.Errorf("last activity not applied: %v", m.Event().LastActivity)
	}

	earlier := encode(t, &model.Event{InvitationCode: "ABC123", Title: "Ski Trip 2025", LastActivity: later.Add(-time.Hour)})
	if err := m.Apply(wire.EntityEvent, wire.OpUpdate, earlier); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !m.Event().LastActivity.Equal(later) {
		t.Error("last activity moved backwards")
	}
}

func TestEventDeleteClearsMirror(t *testing.T) {
	var refetched []string
	m := snapshotMirror(t, &refetched)

	var deleted int
	m.OnEventDeleted = func() { deleted++ }

	if err := m.Apply(wire.EntityEvent, wire.OpDelete, encode(t, "ABC123")); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if m.Event() != nil || len(m.Participants()) != 0 || len(m.Expenses()) != 0 {
		t.Error("mirror not cleared")
	}
	if deleted != 1 {
		t.Errorf("delete hook fired %d times", deleted)
	}
}

func TestEventDeleteHooksRunOnInjectedExecutor(t *testing.T) {
	var queued []func()
	drain := func() {
		for len(queued) > 0 {
			next := queued[0]
			queued = queued[1:]
			next()
		}
	}
	m := NewEventMirror(func(string) {}, func(f func()) { queued = append(queued, f) }, testLogger())

	m.SetSnapshot(&model.Event{InvitationCode: "ABC123", Title: "Ski Trip"})
	drain()

	var deleted, eventChanged int
	m.OnEventDeleted = func() { deleted++ }
	m.OnEventChanged = func() { eventChanged++ }

	if err := m.Apply(wire.EntityEvent, wire.OpDelete, encode(t, "ABC123")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if deleted != 0 {
		t.Fatal("delete hook must wait for the executor, not fire on the network goroutine")
	}

	drain()
	if deleted != 1 {
		t.Errorf("delete hook fired %d times", deleted)
	}
	if eventChanged != 1 {
		t.Errorf("clearing the event header must announce it, hook fired %d times", eventChanged)
	}
	if m.Event() != nil {
		t.Error("mirror not cleared")
	}
}

func TestUnknownBroadcastIsAnError(t *testing.T) {
	var refetched []string
	m := snapshotMirror(t, &refetched)

	if err := m.Apply("budget", wire.OpCreate, encode(t, "x")); err == nil {
		t.Error("expected an error for an unknown entity")
	}
}

func TestAdminMirrorCatalogue(t *testing.T) {
	var refetches int
	m := NewAdminMirror(func(string) { refetches++ }, nil, testLogger())
	m.SetEvents([]*model.Event{
		{InvitationCode: "ABC123", Title: "Ski Trip"},
	})

	create := encode(t, &model.Event{InvitationCode: "DEF456", Title: "Dinner"})
	if err := m.Apply(wire.OpCreate, create); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(m.Events()) != 2 {
		t.Fatalf("expected 2 events, got %d", len(m.Events()))
	}

	update := encode(t, &model.Event{InvitationCode: "ABC123", Title: "Ski Trip 2025"})
	if err := m.Apply(wire.OpUpdate, update); err != nil {
		t.Fatalf("update: %v", err)
	}
	if m.Events()[0].Title != "Ski Trip 2025" {
		t.Errorf("title not applied: %q", m.Events()[0].Title)
	}

	if err := m.Apply(wire.OpDelete, encode(t, "DEF456")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(m.Events()) != 1 {
		t.Errorf("expected 1 event after delete, got %d", len(m.Events()))
	}
	if refetches != 0 {
		t.Errorf("no refetch expected, got %d", refetches)
	}
}

func TestAdminMirrorDivergenceRefetchesCatalogue(t *testing.T) {
	var refetches int
	m := NewAdminMirror(func(string) { refetches++ }, nil, testLogger())

	update := encode(t, &model.Event{InvitationCode: "GHOST1", Title: "Phantom"})
	if err := m.Apply(wire.OpUpdate, update); err != nil {
		t.Fatalf("update: %v", err)
	}
	if refetches != 1 {
		t.Errorf("expected one catalogue refetch, got %d", refetches)
	}
}
