package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/splitpot/api/internal/database"
	"github.com/splitpot/api/internal/metrics"
	"github.com/splitpot/api/internal/model"
	"github.com/splitpot/api/internal/wire"
)

// EventRepository defines the interface for event storage
type EventRepository interface {
	Exists(ctx context.Context, code string) (bool, error)
	Get(ctx context.Context, code string) (*model.Event, error)
	GetAll(ctx context.Context) ([]*model.Event, error)
	GetByCodes(ctx context.Context, codes []string) ([]*model.Event, error)
	Save(ctx context.Context, ev *model.Event) error
	Delete(ctx context.Context, code string) error
}

// ParticipantRepository defines the interface for participant storage
type ParticipantRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*model.Participant, error)
	GetByEvent(ctx context.Context, code string) ([]*model.Participant, error)
	Save(ctx context.Context, p *model.Participant) error
	Delete(ctx context.Context, id string) error
	DeleteByEvent(ctx context.Context, code string) error
}

// ExpenseRepository defines the interface for expense storage
type ExpenseRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*model.Expense, error)
	GetByEvent(ctx context.Context, code string) ([]*model.Expense, error)
	GetByPayer(ctx context.Context, payerID string) ([]*model.Expense, error)
	Save(ctx context.Context, e *model.Expense) error
	Delete(ctx context.Context, id string) error
	DeleteByEvent(ctx context.Context, code string) error
	DeleteByPayer(ctx context.Context, payerID string) error
}

// InvolvedRepository defines the interface for involved-record storage
type InvolvedRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*model.Involved, error)
	GetByExpense(ctx context.Context, expenseID string) ([]*model.Involved, error)
	Save(ctx context.Context, inv *model.Involved) error
	Delete(ctx context.Context, id string) error
	DeleteByExpense(ctx context.Context, expenseID string) error
	DeleteByEvent(ctx context.Context, code string) error
}

// Broadcaster abstracts the topic router.
type Broadcaster interface {
	Publish(topic string, payload interface{}) error
	Reply(connID string, payload interface{}) error
}

// handlerFunc processes one command body and produces the reply envelope.
type handlerFunc func(ctx context.Context, body json.RawMessage) *model.StatusEntity

// SyncService validates and applies realtime commands and owns the
// REST-facing event operations.
type SyncService struct {
	events       EventRepository
	participants ParticipantRepository
	expenses     ExpenseRepository
	involveds    InvolvedRepository
	db           database.Database
	hub          Broadcaster
	passcode     *Passcode
	updates      *UpdateRegistry
	logger       *slog.Logger

	longPoll time.Duration
	now      func() time.Time
	newID    func() string
	bump     func(code string)
	handlers map[string]handlerFunc
}

// SyncServiceConfig holds configuration for the sync service
type SyncServiceConfig struct {
	Events       EventRepository
	Participants ParticipantRepository
	Expenses     ExpenseRepository
	Involveds    InvolvedRepository
	DB           database.Database
	Hub          Broadcaster
	Passcode     *Passcode
	Logger       *slog.Logger

	// LongPollTimeout bounds GET /events/updates waiters.
	LongPollTimeout time.Duration
}

// NewSyncService creates the service and registers every command handler.
func NewSyncService(cfg SyncServiceConfig) *SyncService {
	s := &SyncService{
		events:       cfg.Events,
		participants: cfg.Participants,
		expenses:     cfg.Expenses,
		involveds:    cfg.Involveds,
		db:           cfg.DB,
		hub:          cfg.Hub,
		passcode:     cfg.Passcode,
		updates:      NewUpdateRegistry(),
		logger:       cfg.Logger,
		longPoll:     cfg.LongPollTimeout,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	s.bump = s.bumpActivity

	s.handlers = map[string]handlerFunc{
		wire.CmdEventRead:        s.handleEventRead,
		wire.CmdParticipantsRead: s.handleParticipantsRead,
		wire.CmdExpensesRead:     s.handleExpensesRead,

		wire.CmdParticipantCreate: s.handleParticipantCreate,
		wire.CmdParticipantUpdate: s.handleParticipantUpdate,
		wire.CmdParticipantDelete: s.handleParticipantDelete,

		wire.CmdExpenseCreate: s.handleExpenseCreate,
		wire.CmdExpenseUpdate: s.handleExpenseUpdate,
		wire.CmdExpenseDelete: s.handleExpenseDelete,

		wire.CmdInvolvedUpdate: s.handleInvolvedUpdate,

		wire.CmdAdminEventsRead: s.handleAdminEventsRead,
		wire.CmdAdminDump:       s.handleAdminDump,
		wire.CmdAdminImport:     s.handleAdminImport,
	}
	return s
}

// Dispatch runs the handler for a command and replies on the sender's
// private queue. Validation failures are part of the reply, never errors.
func (s *SyncService) Dispatch(ctx context.Context, connID, cmd, passcode string, body json.RawMessage) {
	status := s.handle(ctx, cmd, passcode, body)
	metrics.CommandsTotal.WithLabelValues(cmd, string(status.Status)).Inc()
	if err := s.hub.Reply(connID, status); err != nil {
		s.logger.Error("failed to send reply",
			slog.String("conn_id", connID),
			slog.String("command", cmd),
			slog.String("error", err.Error()))
	}
}

func (s *SyncService) handle(ctx context.Context, cmd, passcode string, body json.RawMessage) *model.StatusEntity {
	// Admin commands recheck the passcode on every message, beyond the
	// subscribe-time guard. The reply does not say which part failed.
	if wire.IsAdminCommand(cmd) && !s.passcode.Check(passcode) {
		return model.BadRequest("access denied", true)
	}

	handler, ok := s.handlers[cmd]
	if !ok {
		return model.BadRequest("unknown command "+cmd, true)
	}
	return handler(ctx, body)
}

// broadcast publishes to a topic, logging delivery failures.
func (s *SyncService) broadcast(topic string, payload interface{}) {
	if err := s.hub.Publish(topic, payload); err != nil {
		s.logger.Error("broadcast failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()))
	}
}

// internalFailure logs a gateway error and turns it into an unsolvable
// reply.
func (s *SyncService) internalFailure(cmd string, err error) *model.StatusEntity {
	s.logger.Error("command failed",
		slog.String("command", cmd),
		slog.String("error", err.Error()))
	return model.BadRequest("internal error", true)
}

// decodeStrict decodes a payload rejecting unknown fields, so a payload of
// the wrong entity type fails instead of half-filling the target.
func decodeStrict(body json.RawMessage, target interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
