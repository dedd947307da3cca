// Package fixtures provides test data factories for integration testing.
//
// Each factory method persists an entity with sensible defaults through the
// repositories and returns the populated model. Customization goes through
// option structs.
//
// Usage:
//
//	f := fixtures.New(tdb.DB)
//	ev := f.CreateEvent(t, fixtures.EventOpts{})
//	payer := f.CreateParticipant(t, ev, fixtures.ParticipantOpts{})
//	f.CreateExpense(t, ev, payer, fixtures.ExpenseOpts{})
package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/splitpot/api/internal/database"
	"github.com/splitpot/api/internal/model"
	"github.com/splitpot/api/internal/repository"
)

// Factory creates test entities in the database.
type Factory struct {
	events       *repository.EventRepository
	participants *repository.ParticipantRepository
	expenses     *repository.ExpenseRepository
	involveds    *repository.InvolvedRepository
}

// New creates a fixture factory over a database connection.
func New(db database.Database) *Factory {
	return &Factory{
		events:       repository.NewEventRepository(db),
		participants: repository.NewParticipantRepository(db),
		expenses:     repository.NewExpenseRepository(db),
		involveds:    repository.NewInvolvedRepository(db),
	}
}

// randomID generates a random hex ID.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func ctx() context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	_ = cancel
	return c
}

// EventOpts customizes event creation.
type EventOpts struct {
	Code  string
	Title string
}

// CreateEvent persists an event. The invitation code defaults to a random
// value.
func (f *Factory) CreateEvent(t *testing.T, opts EventOpts) *model.Event {
	t.Helper()

	code := opts.Code
	if code == "" {
		code = randomID()[:6]
	}
	title := opts.Title
	if title == "" {
		title = "Event " + code
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	ev := &model.Event{
		InvitationCode: code,
		Title:          title,
		CreatedOn:      now,
		LastActivity:   now,
	}
	if err := f.events.Save(ctx(), ev); err != nil {
		t.Fatalf("fixtures: create event: %v", err)
	}
	return ev
}

// ParticipantOpts customizes participant creation.
type ParticipantOpts struct {
	FirstName string
	LastName  string
	Email     string
}

// CreateParticipant persists a participant inside an event.
func (f *Factory) CreateParticipant(t *testing.T, ev *model.Event, opts ParticipantOpts) *model.Participant {
	t.Helper()

	p := &model.Participant{
		ID:             randomID(),
		InvitationCode: ev.InvitationCode,
		FirstName:      opts.FirstName,
		LastName:       opts.LastName,
		Email:          opts.Email,
	}
	if p.FirstName == "" {
		p.FirstName = "Test"
	}
	if p.LastName == "" {
		p.LastName = "Person " + p.ID[:4]
	}
	if err := f.participants.Save(ctx(), p); err != nil {
		t.Fatalf("fixtures: create participant: %v", err)
	}
	return p
}

// ExpenseOpts customizes expense creation.
type ExpenseOpts struct {
	Title  string
	Amount float64
	Date   time.Time
}

// CreateExpense persists an expense paid by payer.
func (f *Factory) CreateExpense(t *testing.T, ev *model.Event, payer *model.Participant, opts ExpenseOpts) *model.Expense {
	t.Helper()

	e := &model.Expense{
		ID:             randomID(),
		InvitationCode: ev.InvitationCode,
		PayerID:        payer.ID,
		Title:          opts.Title,
		Amount:         opts.Amount,
		Date:           opts.Date,
	}
	if e.Title == "" {
		e.Title = "Expense " + e.ID[:4]
	}
	if e.Amount == 0 {
		e.Amount = 25
	}
	if e.Date.IsZero() {
		e.Date = time.Now().UTC().Truncate(time.Millisecond)
	}
	if err := f.expenses.Save(ctx(), e); err != nil {
		t.Fatalf("fixtures: create expense: %v", err)
	}
	return e
}

// CreateInvolved records a participant's share of an expense.
func (f *Factory) CreateInvolved(t *testing.T, e *model.Expense, p *model.Participant, settled bool) *model.Involved {
	t.Helper()

	inv := &model.Involved{
		ID:             randomID(),
		ExpenseID:      e.ID,
		ParticipantID:  p.ID,
		Settled:        settled,
		InvitationCode: e.InvitationCode,
	}
	if err := f.involveds.Save(ctx(), inv); err != nil {
		t.Fatalf("fixtures: create involved: %v", err)
	}
	return inv
}
