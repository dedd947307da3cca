package model

import "time"

// Event is a shared-expense group (a trip, a household). Its invitation code
// is the public identifier and the routing key for all of its topics.
type Event struct {
	InvitationCode string    `json:"invitation_code"`
	Title          string    `json:"title"`
	CreatedOn      time.Time `json:"created_on"`
	// LastActivity is bumped by any mutation inside the event and is
	// monotonically non-decreasing.
	LastActivity time.Time `json:"last_activity"`

	// Participants and Expenses are populated only on snapshot reads and
	// admin dumps; durable state lives behind the repositories.
	Participants []*Participant `json:"participants,omitempty"`
	Expenses     []*Expense     `json:"expenses,omitempty"`
}

// Touch bumps LastActivity, never moving it backwards.
func (e *Event) Touch(now time.Time) {
	if now.After(e.LastActivity) {
		e.LastActivity = now
	}
}

// CreateEventRequest is the body of POST /events.
type CreateEventRequest struct {
	Title string `json:"title"`
}

// UpdateEventRequest is the body of PUT /events/{code}.
type UpdateEventRequest struct {
	Title string `json:"title"`
}

// EventTitle is one element of the batch title-refresh response.
type EventTitle struct {
	InvitationCode string `json:"invitation_code"`
	Title          string `json:"title"`
}

// InitClientRequest is the body of POST /init_client.
type InitClientRequest struct {
	DisplayName string `json:"display_name,omitempty"`
}

// InitClientResponse is the client profile bootstrap reply.
type InitClientResponse struct {
	ClientID   string    `json:"client_id"`
	ServerTime time.Time `json:"server_time"`
}
