package model

import "time"

// Expense is a payment made by one participant on behalf of several.
type Expense struct {
	ID             string      `json:"id"`
	InvitationCode string      `json:"invitation_code"`
	PayerID        string      `json:"payer_id"`
	Title          string      `json:"title"`
	Amount         float64     `json:"amount"`
	Date           time.Time   `json:"date"`
	Involveds      []*Involved `json:"involveds,omitempty"`
}

// ApplyFrom overwrites every mutable field from src, preserving identity.
func (e *Expense) ApplyFrom(src *Expense) {
	e.PayerID = src.PayerID
	e.Title = src.Title
	e.Amount = src.Amount
	e.Date = src.Date
	e.Involveds = src.Involveds
}
