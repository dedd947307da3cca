package service

import "errors"

// Centralized service layer errors.
// These are returned by the REST-facing methods; realtime command handlers
// answer with a StatusEntity instead and never return errors to the caller.

var (
	ErrEventNotFound  = errors.New("event not found")
	ErrTitleRequired  = errors.New("title is required")
	ErrCodeGeneration = errors.New("could not generate a unique invitation code")
)
