// Package wire defines the STOMP-like frame protocol spoken over the
// websocket connection, and the destination naming shared by server and
// client.
//
// Clients send commands to "/app/<entity>:<op>" destinations and receive
// broadcasts on "/topic/<invitationCode>/<entity>:<op>" or
// "/topic/admin/<entity>:<op>". Every command is answered with a
// StatusEntity on the sender's private reply queue "/user/queue/reply".
package wire

import (
	"encoding/json"
	"strings"
)

// FrameType discriminates wire frames.
type FrameType string

const (
	// Client to server.
	FrameSubscribe   FrameType = "SUBSCRIBE"
	FrameUnsubscribe FrameType = "UNSUBSCRIBE"
	FrameSend        FrameType = "SEND"

	// Server to client.
	FrameMessage   FrameType = "MESSAGE"
	FrameError     FrameType = "ERROR"
	FrameHeartbeat FrameType = "HEARTBEAT"
)

// HeaderPasscode carries the admin passcode on SUBSCRIBE frames for
// admin-scoped topics and on admin SEND frames.
const HeaderPasscode = "passcode"

// Frame is one unit on the wire.
type Frame struct {
	Type        FrameType         `json:"type"`
	ID          string            `json:"id,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        json.RawMessage   `json:"body,omitempty"`
}

// NewMessage builds a MESSAGE frame for a destination, encoding the payload
// as JSON.
func NewMessage(destination string, payload interface{}) (*Frame, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Frame{Type: FrameMessage, Destination: destination, Body: body}, nil
}

// NewError builds an ERROR frame. The server sends one immediately before
// aborting a connection.
func NewError(message string) *Frame {
	body, _ := json.Marshal(message)
	return &Frame{Type: FrameError, Body: body}
}

// Passcode returns the passcode header, or "" when absent.
func (f *Frame) Passcode() string {
	return f.Headers[HeaderPasscode]
}

// Entities and operations.
const (
	EntityEvent       = "event"
	EntityParticipant = "participant"
	EntityExpense     = "expense"
	EntityInvolved    = "involved"

	OpCreate = "create"
	OpRead   = "read"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Commands understood by the server (the part after "/app/").
const (
	CmdEventRead        = "event:read"
	CmdParticipantsRead = "participants:read"
	CmdExpensesRead     = "expenses:read"

	CmdParticipantCreate = "participant:create"
	CmdParticipantUpdate = "participant:update"
	CmdParticipantDelete = "participant:delete"

	CmdExpenseCreate = "expense:create"
	CmdExpenseUpdate = "expense:update"
	CmdExpenseDelete = "expense:delete"

	CmdInvolvedUpdate = "involved:update"

	CmdAdminEventsRead = "admin/events:read"
	CmdAdminDump       = "admin/event:dump"
	CmdAdminImport     = "admin/event:import"
)

const (
	appPrefix   = "/app/"
	topicPrefix = "/topic/"
	adminSpace  = "admin/"

	// ReplyQueue is the per-connection private reply destination. It is
	// never subscribable through a SUBSCRIBE frame; the server delivers to
	// it directly.
	ReplyQueue = "/user/queue/reply"
)

// CommandDestination returns the destination for a command, e.g.
// "/app/expense:create".
func CommandDestination(cmd string) string {
	return appPrefix + cmd
}

// ParseCommand extracts the command from an "/app/..." destination.
func ParseCommand(destination string) (string, bool) {
	if !strings.HasPrefix(destination, appPrefix) {
		return "", false
	}
	return strings.TrimPrefix(destination, appPrefix), true
}

// EventTopic names the broadcast topic for one entity operation inside one
// event, e.g. "/topic/ABC123/expense:create".
func EventTopic(code, entity, op string) string {
	return topicPrefix + code + "/" + entity + ":" + op
}

// AdminTopic names an admin-scoped broadcast topic, e.g.
// "/topic/admin/event:update".
func AdminTopic(entity, op string) string {
	return topicPrefix + adminSpace + entity + ":" + op
}

// ParseTopic splits a "/topic/<code>/<entity>:<op>" destination. For admin
// topics the returned code is "admin". ok is false for anything that is not
// a well-formed topic.
func ParseTopic(destination string) (code, entity, op string, ok bool) {
	rest, found := strings.CutPrefix(destination, topicPrefix)
	if !found {
		return "", "", "", false
	}
	code, action, found := strings.Cut(rest, "/")
	if !found {
		return "", "", "", false
	}
	entity, op, found = strings.Cut(action, ":")
	if !found || code == "" || entity == "" || op == "" {
		return "", "", "", false
	}
	return code, entity, op, true
}

// IsAdminDestination reports whether the destination is admin-scoped (a
// subscription to it must pass the passcode guard).
func IsAdminDestination(destination string) bool {
	return strings.HasPrefix(destination, topicPrefix+adminSpace)
}

// IsAdminCommand reports whether the command requires the per-message
// passcode check.
func IsAdminCommand(cmd string) bool {
	return strings.HasPrefix(cmd, adminSpace)
}
