package model

// Status is the outcome of a realtime command.
type Status string

const (
	StatusOK         Status = "OK"
	StatusBadRequest Status = "BAD_REQUEST"
	StatusNotFound   Status = "NOT_FOUND"
)

// StatusEntity is the reply envelope for every realtime command. It is never
// persisted. Exactly one payload slot is populated. Unsolvable signals that
// the client cannot fix the problem by correcting input and resubmitting: it
// must refetch or prompt the user.
type StatusEntity struct {
	Status     Status `json:"status"`
	Unsolvable bool   `json:"unsolvable"`

	Message         string         `json:"message,omitempty"`
	Event           *Event         `json:"event,omitempty"`
	EventList       []*Event       `json:"event_list,omitempty"`
	ParticipantList []*Participant `json:"participant_list,omitempty"`
	ExpenseList     []*Expense     `json:"expense_list,omitempty"`
}

// Ok builds an OK reply carrying a short machine-readable confirmation,
// e.g. "expense:create 42".
func Ok(message string) *StatusEntity {
	return &StatusEntity{Status: StatusOK, Message: message}
}

// OkEvent builds an OK reply carrying a single event snapshot.
func OkEvent(event *Event) *StatusEntity {
	return &StatusEntity{Status: StatusOK, Event: event}
}

// OkEventList builds an OK reply carrying an event collection.
func OkEventList(events []*Event) *StatusEntity {
	return &StatusEntity{Status: StatusOK, EventList: events}
}

// OkParticipantList builds an OK reply carrying a participant collection.
func OkParticipantList(participants []*Participant) *StatusEntity {
	return &StatusEntity{Status: StatusOK, ParticipantList: participants}
}

// OkExpenseList builds an OK reply carrying an expense collection.
func OkExpenseList(expenses []*Expense) *StatusEntity {
	return &StatusEntity{Status: StatusOK, ExpenseList: expenses}
}

// BadRequest builds a BAD_REQUEST reply. Solvable failures (missing or
// invalid fields) leave unsolvable false so the UI can show inline
// validation and let the user resubmit.
func BadRequest(message string, unsolvable bool) *StatusEntity {
	return &StatusEntity{Status: StatusBadRequest, Unsolvable: unsolvable, Message: message}
}

// NotFound builds a NOT_FOUND reply. A missing referenced entity is always
// unsolvable: retrying the same command cannot succeed.
func NotFound(message string) *StatusEntity {
	return &StatusEntity{Status: StatusNotFound, Unsolvable: true, Message: message}
}
