package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/splitpot/api/internal/model"
	"github.com/splitpot/api/internal/wire"
)

var (
	// ErrEventActive is returned when a second event subscription is
	// attempted. A session mirrors at most one event; switch by
	// unsubscribing first.
	ErrEventActive = errors.New("an event subscription is already active")

	// ErrAdminActive is returned when the admin slice is subscribed twice.
	ErrAdminActive = errors.New("the admin subscription is already active")
)

// SessionManager owns one server connection: which topics it is subscribed
// to, the event mirror fed by those topics, and the optional admin slice.
// Transport failures are fatal to the session; the caller reconnects with a
// fresh SessionManager.
type SessionManager struct {
	transport Transport
	logger    *slog.Logger

	// Mirror replicates the currently subscribed event.
	Mirror *EventMirror
	// Admin replicates the event catalogue while the admin slice is
	// subscribed.
	Admin *AdminMirror

	// OnReply receives command replies that carry no mirror payload, such
	// as confirmations and validation failures.
	OnReply func(*model.StatusEntity)

	mu            sync.Mutex
	activeCode    string
	adminActive   bool
	adminPasscode string
}

// NewSessionManager wires a session over an established transport. run
// marshals mirror mutations (nil runs them inline).
func NewSessionManager(transport Transport, run RunFunc, logger *slog.Logger) *SessionManager {
	s := &SessionManager{transport: transport, logger: logger}
	s.Mirror = NewEventMirror(s.refetchEvent, run, logger)
	s.Admin = NewAdminMirror(s.refetchAdmin, run, logger)
	return s
}

// eventTopics lists every broadcast destination of one event, deletion
// first. Subscribing to the delete topic before anything else guarantees
// the session cannot load a snapshot of an event and then miss its removal.
func eventTopics(code string) []string {
	return []string{
		wire.EventTopic(code, wire.EntityEvent, wire.OpDelete),
		wire.EventTopic(code, wire.EntityEvent, wire.OpUpdate),
		wire.EventTopic(code, wire.EntityParticipant, wire.OpCreate),
		wire.EventTopic(code, wire.EntityParticipant, wire.OpUpdate),
		wire.EventTopic(code, wire.EntityParticipant, wire.OpDelete),
		wire.EventTopic(code, wire.EntityExpense, wire.OpCreate),
		wire.EventTopic(code, wire.EntityExpense, wire.OpUpdate),
		wire.EventTopic(code, wire.EntityExpense, wire.OpDelete),
		wire.EventTopic(code, wire.EntityInvolved, wire.OpUpdate),
	}
}

func adminTopics() []string {
	return []string{
		wire.AdminTopic(wire.EntityEvent, wire.OpCreate),
		wire.AdminTopic(wire.EntityEvent, wire.OpUpdate),
		wire.AdminTopic(wire.EntityEvent, wire.OpDelete),
	}
}

// SubscribeToEvent joins one event: subscribes all of its topics and
// requests the initial snapshot. At most one event is active per session.
func (s *SessionManager) SubscribeToEvent(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeCode != "" {
		return fmt.Errorf("subscribing to %s: %w", code, ErrEventActive)
	}

	for _, topic := range eventTopics(code) {
		if err := s.transport.Subscribe(topic, nil); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	if err := s.transport.Send(wire.CmdEventRead, nil, code); err != nil {
		return fmt.Errorf("requesting snapshot of %s: %w", code, err)
	}

	s.activeCode = code
	return nil
}

// UnsubscribeFromEvent leaves the active event and clears the mirror. Safe
// to call when no event is active.
func (s *SessionManager) UnsubscribeFromEvent() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeCode == "" {
		return nil
	}

	for _, topic := range eventTopics(s.activeCode) {
		if err := s.transport.Unsubscribe(topic); err != nil {
			return fmt.Errorf("unsubscribing from %s: %w", topic, err)
		}
	}
	s.activeCode = ""
	s.Mirror.Clear()
	return nil
}

// ActiveEvent returns the invitation code of the subscribed event, or "".
func (s *SessionManager) ActiveEvent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCode
}

// SubscribeToAdmin joins the admin slice with the operator passcode and
// requests the event catalogue. Independent of the event subscription.
func (s *SessionManager) SubscribeToAdmin(passcode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.adminActive {
		return ErrAdminActive
	}

	headers := map[string]string{wire.HeaderPasscode: passcode}
	for _, topic := range adminTopics() {
		if err := s.transport.Subscribe(topic, headers); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	if err := s.transport.Send(wire.CmdAdminEventsRead, headers, nil); err != nil {
		return fmt.Errorf("requesting event catalogue: %w", err)
	}

	s.adminActive = true
	s.adminPasscode = passcode
	return nil
}

// UnsubscribeFromAdmin leaves the admin slice. Safe to call when not
// subscribed.
func (s *SessionManager) UnsubscribeFromAdmin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.adminActive {
		return nil
	}

	for _, topic := range adminTopics() {
		if err := s.transport.Unsubscribe(topic); err != nil {
			return fmt.Errorf("unsubscribing from %s: %w", topic, err)
		}
	}
	s.adminActive = false
	s.adminPasscode = ""
	s.Admin.Clear()
	return nil
}

// Send submits a non-admin command. The reply is routed through the mirror
// or OnReply when it arrives.
func (s *SessionManager) Send(cmd string, payload interface{}) error {
	if err := s.transport.Send(cmd, nil, payload); err != nil {
		return fmt.Errorf("sending %s: %w", cmd, err)
	}
	return nil
}

// SendAdmin submits an admin command with the passcode of the active admin
// subscription.
func (s *SessionManager) SendAdmin(cmd string, payload interface{}) error {
	s.mu.Lock()
	if !s.adminActive {
		s.mu.Unlock()
		return errors.New("no admin subscription")
	}
	headers := map[string]string{wire.HeaderPasscode: s.adminPasscode}
	s.mu.Unlock()

	if err := s.transport.Send(cmd, headers, payload); err != nil {
		return fmt.Errorf("sending %s: %w", cmd, err)
	}
	return nil
}

// Run pumps inbound frames until the connection dies or ctx is cancelled.
// It returns the fatal session error, or nil on clean cancellation.
func (s *SessionManager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-s.transport.Frames():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("connection closed by server")
			}
			if err := s.handleFrame(frame); err != nil {
				return err
			}
		}
	}
}

func (s *SessionManager) handleFrame(frame *wire.Frame) error {
	switch frame.Type {
	case wire.FrameError:
		var msg string
		_ = json.Unmarshal(frame.Body, &msg)
		return fmt.Errorf("server error: %s", msg)

	case wire.FrameMessage:
		if frame.Destination == wire.ReplyQueue {
			s.handleReply(frame.Body)
			return nil
		}
		s.handleBroadcast(frame)
		return nil

	default:
		s.logger.Warn("unexpected frame", "type", frame.Type)
		return nil
	}
}

// handleReply routes a command reply: snapshot payloads feed the mirrors,
// everything else goes to OnReply.
func (s *SessionManager) handleReply(body json.RawMessage) {
	var status model.StatusEntity
	if err := json.Unmarshal(body, &status); err != nil {
		s.logger.Warn("undecodable reply", "error", err)
		return
	}

	switch {
	case status.ParticipantList != nil:
		s.Mirror.SetParticipants(status.ParticipantList)
	case status.ExpenseList != nil:
		s.Mirror.SetExpenses(status.ExpenseList)
	case status.EventList != nil:
		s.Admin.SetEvents(status.EventList)
	case status.Event != nil && status.Event.InvitationCode == s.ActiveEvent():
		s.Mirror.SetSnapshot(status.Event)
	default:
		if s.OnReply != nil {
			s.OnReply(&status)
		}
	}
}

func (s *SessionManager) handleBroadcast(frame *wire.Frame) {
	code, entity, op, ok := wire.ParseTopic(frame.Destination)
	if !ok {
		s.logger.Warn("broadcast on unparseable destination", "destination", frame.Destination)
		return
	}

	if wire.IsAdminDestination(frame.Destination) {
		if err := s.Admin.Apply(op, frame.Body); err != nil {
			s.logger.Warn("dropping admin broadcast", "error", err)
		}
		return
	}

	// A broadcast for a stale topic can arrive between an unsubscribe and
	// the server processing it.
	if code != s.ActiveEvent() {
		return
	}
	if err := s.Mirror.Apply(entity, op, frame.Body); err != nil {
		s.logger.Warn("dropping broadcast", "destination", frame.Destination, "error", err)
	}
}

// refetchEvent reloads one collection of the active event after the mirror
// detected divergence.
func (s *SessionManager) refetchEvent(entity string) {
	code := s.ActiveEvent()
	if code == "" {
		return
	}

	var cmd string
	switch entity {
	case wire.EntityParticipant:
		cmd = wire.CmdParticipantsRead
	case wire.EntityExpense, wire.EntityInvolved:
		cmd = wire.CmdExpensesRead
	default:
		cmd = wire.CmdEventRead
	}

	if err := s.transport.Send(cmd, nil, code); err != nil {
		s.logger.Error("refetch failed", "command", cmd, "error", err)
	}
}

// refetchAdmin reloads the event catalogue after the admin mirror detected
// divergence.
func (s *SessionManager) refetchAdmin(string) {
	s.mu.Lock()
	active, headers := s.adminActive, map[string]string{wire.HeaderPasscode: s.adminPasscode}
	s.mu.Unlock()
	if !active {
		return
	}

	if err := s.transport.Send(wire.CmdAdminEventsRead, headers, nil); err != nil {
		s.logger.Error("catalogue refetch failed", "error", err)
	}
}
