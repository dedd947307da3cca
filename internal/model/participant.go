package model

// Participant belongs to exactly one event for its lifetime. Deleting a
// participant cascades: every expense they paid is removed with them.
type Participant struct {
	ID             string `json:"id"`
	InvitationCode string `json:"invitation_code"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email,omitempty"`
	IBAN           string `json:"iban,omitempty"`
	BIC            string `json:"bic,omitempty"`
}

// ApplyFrom overwrites every mutable field from src, preserving identity.
// The client mirror relies on this to keep UI bindings attached to the same
// object across updates.
func (p *Participant) ApplyFrom(src *Participant) {
	p.FirstName = src.FirstName
	p.LastName = src.LastName
	p.Email = src.Email
	p.IBAN = src.IBAN
	p.BIC = src.BIC
}
