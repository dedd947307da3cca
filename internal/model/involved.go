package model

// Involved records one participant's (possibly settled) share of one
// expense. The invitation code is denormalized so the routing layer can
// address the owning event without a lookup.
type Involved struct {
	ID             string `json:"id"`
	ExpenseID      string `json:"expense_id"`
	ParticipantID  string `json:"participant_id"`
	Settled        bool   `json:"settled"`
	InvitationCode string `json:"invitation_code"`
}
